package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleBackend stores events in a Google Calendar.
type GoogleBackend struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleBackend connects to the calendar API. Without explicit options
// application default credentials are used.
func NewGoogleBackend(ctx context.Context, calendarID string, loc *time.Location, opts ...option.ClientOption) (*GoogleBackend, error) {
	opts = append([]option.ClientOption{option.WithScopes(gcal.CalendarScope)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &GoogleBackend{svc: svc, calendarID: calendarID, loc: loc}, nil
}

func (g *GoogleBackend) Create(ctx context.Context, ev Event) (Event, error) {
	body := &gcal.Event{
		Summary:     ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		Start:       g.eventTime(ev.Start, ev.AllDay),
		End:         g.eventTime(ev.End, ev.AllDay),
	}
	created, err := g.svc.Events.Insert(g.calendarID, body).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("inserting event: %w", err)
	}
	ev.ID = created.Id
	ev.Link = created.HtmlLink
	return ev, nil
}

func (g *GoogleBackend) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	res, err := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	out := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, err := g.fromAPI(item)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *GoogleBackend) Delete(ctx context.Context, id string) error {
	if err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return nil
}

func (g *GoogleBackend) eventTime(t time.Time, allDay bool) *gcal.EventDateTime {
	if allDay {
		return &gcal.EventDateTime{Date: t.In(g.loc).Format(time.DateOnly)}
	}
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: g.loc.String()}
}

func (g *GoogleBackend) fromAPI(item *gcal.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Location:    item.Location,
		Description: item.Description,
		Link:        item.HtmlLink,
	}
	var err error
	if ev.Start, ev.AllDay, err = g.parseEventTime(item.Start); err != nil {
		return Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	if ev.End, _, err = g.parseEventTime(item.End); err != nil {
		return Event{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	return ev, nil
}

func (g *GoogleBackend) parseEventTime(dt *gcal.EventDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if dt.DateTime != "" {
		return ParseTime(dt.DateTime, g.loc)
	}
	return ParseTime(dt.Date, g.loc)
}
