// Package report builds calendar digests and pushes them to a fixed
// recipient outside of any conversation.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/youmna-rabie/line-assistant/internal/calendar"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// Kind selects a digest.
type Kind string

const (
	Daily  Kind = "daily"
	Weekly Kind = "weekly"
)

// ErrNoTarget is returned by Send when no recipient is configured.
var ErrNoTarget = errors.New("report target not configured")

// Pusher delivers messages without a reply token. types.Channel satisfies it.
type Pusher interface {
	Push(ctx context.Context, to string, msgs []types.Message) error
}

// Reporter builds digests from the calendar and pushes them.
type Reporter struct {
	cal    *calendar.Service
	pusher Pusher
	target string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Reporter that pushes to target through pusher.
func New(cal *calendar.Service, pusher Pusher, target string, logger *slog.Logger) *Reporter {
	return &Reporter{cal: cal, pusher: pusher, target: target, logger: logger, now: time.Now}
}

// Window returns the span a digest covers, relative to now. Daily is all of
// tomorrow; weekly is the next Monday through Sunday.
func Window(kind Kind, now time.Time, loc *time.Location) (from, to time.Time, err error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch kind {
	case Daily:
		from = today.AddDate(0, 0, 1)
		return from, from.AddDate(0, 0, 1).Add(-time.Second), nil
	case Weekly:
		ahead := (8 - int(today.Weekday())) % 7
		if ahead == 0 {
			ahead = 7
		}
		from = today.AddDate(0, 0, ahead)
		return from, from.AddDate(0, 0, 7).Add(-time.Second), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown report kind %q", kind)
	}
}

// Build lists the window's events and renders the digest message.
func (r *Reporter) Build(ctx context.Context, kind Kind) (types.Message, error) {
	loc := r.cal.Location()
	from, to, err := Window(kind, r.now(), loc)
	if err != nil {
		return types.Message{}, err
	}

	events, err := r.cal.ListEvents(ctx, from, to)
	if err != nil {
		return types.Message{}, fmt.Errorf("listing %s events: %w", kind, err)
	}

	span := from.Format("01/02")
	if kind == Weekly {
		span += " - " + to.Format("01/02")
	}
	if len(events) == 0 {
		return types.TextMessage(fmt.Sprintf("📅 Nothing scheduled for %s (%s)", phrases[kind], span)), nil
	}
	label := fmt.Sprintf("%s (%s)", titles[kind], span)
	return types.FlexMessage("📅 "+label, calendar.Overview(label, events, loc)), nil
}

var (
	titles  = map[Kind]string{Daily: "Tomorrow", Weekly: "Next week"}
	phrases = map[Kind]string{Daily: "tomorrow", Weekly: "next week"}
)

// Send builds the digest and pushes it to the configured target.
func (r *Reporter) Send(ctx context.Context, kind Kind) error {
	if r.target == "" {
		return ErrNoTarget
	}
	msg, err := r.Build(ctx, kind)
	if err != nil {
		return err
	}
	if err := r.pusher.Push(ctx, r.target, []types.Message{msg}); err != nil {
		return fmt.Errorf("pushing %s report: %w", kind, err)
	}
	r.logger.Info("report sent", "kind", kind, "target", r.target, "message", msg.Summary())
	return nil
}
