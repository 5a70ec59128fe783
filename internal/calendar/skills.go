package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/youmna-rabie/line-assistant/internal/flex"
	"github.com/youmna-rabie/line-assistant/internal/normalize"
	"github.com/youmna-rabie/line-assistant/internal/skill"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// Skill names.
const (
	SkillCreate      = "create_event"
	SkillBatchCreate = "batch_create"
	SkillList        = "list_events"
	SkillDelete      = "delete_event"
	SkillReschedule  = "reschedule_event"
)

// Skills returns the calendar skill table. delete_event is also
// registered as delete_event_by_query.
func Skills(svc *Service) skill.Table {
	t := skill.NewTable(
		&createSkill{svc},
		&batchCreateSkill{svc},
		&listSkill{svc},
		&deleteSkill{svc},
		&rescheduleSkill{svc},
	)
	t.Alias("delete_event_by_query", SkillDelete)
	return t
}

// BatchCreated summarizes a batch_create call.
type BatchCreated struct {
	Total   int
	Created []Event
}

// backendOutcome maps a backend error to an outcome. Cancellation is an
// execution failure; anything else is a failed result.
func backendOutcome(err error, data any) skill.Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return skill.Broken(err)
	}
	return skill.Failed(err.Error(), data)
}

func eventCard(svc *Service, headline string, ev Event, notice string) *messaging_api.FlexBubble {
	return flex.EventCard(headline, ev.Title, ev.Start, svc.Location(), notice)
}

type createSkill struct{ svc *Service }

func (s *createSkill) Name() string { return SkillCreate }

func (s *createSkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	ev, err := eventArgs(args, "title", "start_time", "end_time", s.svc.Location())
	if err != nil {
		return skill.BadParams(err)
	}
	created, err := s.svc.CreateEvent(ctx, ev)
	if err != nil {
		return backendOutcome(err, nil)
	}
	return skill.Succeeded(created)
}

func (s *createSkill) Present(res skill.Result) []types.Message {
	if !res.Success {
		return []types.Message{types.TextMessage("❌ Creation failed: " + res.Message)}
	}
	ev := res.Data.(Event)
	return []types.Message{types.FlexMessage("Event created", eventCard(s.svc, "✅ Event created", ev, ""))}
}

type batchCreateSkill struct{ svc *Service }

func (s *batchCreateSkill) Name() string { return SkillBatchCreate }

func (s *batchCreateSkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	items, err := args.List("events")
	if err != nil {
		return skill.BadParams(err)
	}

	out := BatchCreated{Total: len(items)}
	for i, item := range items {
		ev, err := eventArgs(normalize.Normalize(item), "title", "start_time", "end_time", s.svc.Location())
		if err != nil {
			s.svc.logger.Warn("batch_create: skipping event", "index", i, "error", err)
			continue
		}
		created, err := s.svc.CreateEvent(ctx, ev)
		if err != nil {
			if ctx.Err() != nil {
				return skill.Broken(err)
			}
			s.svc.logger.Warn("batch_create: event not created", "index", i, "title", ev.Title, "error", err)
			continue
		}
		out.Created = append(out.Created, created)
	}
	return skill.Succeeded(out)
}

func (s *batchCreateSkill) Present(res skill.Result) []types.Message {
	b, _ := res.Data.(BatchCreated)
	return []types.Message{types.TextMessage(fmt.Sprintf("✅ Batch create done! Created %d of %d events", len(b.Created), b.Total))}
}

type listSkill struct{ svc *Service }

func (s *listSkill) Name() string { return SkillList }

func (s *listSkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	from, _, err := timeArg(args, "time_min", s.svc.Location())
	if err != nil {
		return skill.BadParams(err)
	}
	to, err := optTimeArg(args, "time_max", s.svc.Location())
	if err != nil {
		return skill.BadParams(err)
	}
	events, err := s.svc.ListEvents(ctx, from, to)
	if err != nil {
		return backendOutcome(err, nil)
	}
	return skill.Succeeded(events)
}

func (s *listSkill) Present(res skill.Result) []types.Message {
	if !res.Success {
		return []types.Message{types.TextMessage("❌ Query failed: " + res.Message)}
	}
	events, _ := res.Data.([]Event)
	return []types.Message{types.FlexMessage("Schedule overview", Overview("Upcoming events", events, s.svc.Location()))}
}

type deleteSkill struct{ svc *Service }

func (s *deleteSkill) Name() string { return SkillDelete }

func (s *deleteSkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	from, _, err := timeArg(args, "time_min", s.svc.Location())
	if err != nil {
		return skill.BadParams(err)
	}
	keyword, err := args.OptString("keyword", "")
	if err != nil {
		return skill.BadParams(err)
	}
	deleted, err := s.svc.DeleteByQuery(ctx, from, keyword)
	if errors.Is(err, ErrNoMatch) {
		return skill.Failed("no matching event to delete", nil)
	}
	if err != nil {
		return backendOutcome(err, nil)
	}
	return skill.Succeeded(deleted)
}

func (s *deleteSkill) Present(res skill.Result) []types.Message {
	if !res.Success {
		return []types.Message{types.TextMessage("❌ Delete failed: " + res.Message)}
	}
	ev := res.Data.(Event)
	title := ev.Title
	if title == "" {
		title = "event"
	}
	return []types.Message{types.TextMessage("🗑️ Deleted event: " + title)}
}

type rescheduleSkill struct{ svc *Service }

func (s *rescheduleSkill) Name() string { return SkillReschedule }

func (s *rescheduleSkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	oldMin, _, err := timeArg(args, "old_time_min", s.svc.Location())
	if err != nil {
		return skill.BadParams(err)
	}
	oldKeyword, err := args.OptString("old_keyword", "")
	if err != nil {
		return skill.BadParams(err)
	}
	next, err := eventArgs(args, "new_title", "new_start_time", "new_end_time", s.svc.Location())
	if err != nil {
		return skill.BadParams(err)
	}

	r := s.svc.Reschedule(ctx, oldMin, oldKeyword, next)
	if r.CreateErr != nil {
		if ctx.Err() != nil {
			return skill.Broken(r.CreateErr)
		}
		return skill.Failed(r.CreateErr.Error(), r)
	}
	return skill.Succeeded(r)
}

func (s *rescheduleSkill) Present(res skill.Result) []types.Message {
	r, _ := res.Data.(Rescheduled)
	if !res.Success {
		if r.DeleteErr == nil {
			return []types.Message{types.TextMessage("🗑️ Old event deleted\n❌ Old deleted, new creation failed: " + res.Message)}
		}
		return []types.Message{types.TextMessage("⚠️ Previous event not found\n❌ New event creation failed: " + res.Message)}
	}

	notice := "🗑️ Old event deleted"
	if r.DeleteErr != nil {
		notice = "⚠️ Previous event not found, created the new event directly"
	}
	return []types.Message{types.FlexMessage("Event rescheduled", eventCard(s.svc, "✅ Event rescheduled", r.Created, notice))}
}

// Overview renders events as a timeline bubble.
func Overview(title string, events []Event, loc *time.Location) *messaging_api.FlexBubble {
	entries := make([]flex.Entry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, flex.Entry{Title: ev.Title, Start: ev.Start, AllDay: ev.AllDay, Location: ev.Location})
	}
	return flex.Overview(title, entries, loc)
}
