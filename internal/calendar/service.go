package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service runs calendar operations against a backend.
type Service struct {
	backend Backend
	loc     *time.Location
	window  time.Duration
	logger  *slog.Logger
}

// NewService creates a calendar service. window bounds listings that have
// no explicit end.
func NewService(backend Backend, loc *time.Location, window time.Duration, logger *slog.Logger) *Service {
	return &Service{backend: backend, loc: loc, window: window, logger: logger}
}

// Location returns the zone naive timestamps are read in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// CreateEvent stores a new event.
func (s *Service) CreateEvent(ctx context.Context, ev Event) (Event, error) {
	created, err := s.backend.Create(ctx, ev)
	if err != nil {
		return Event{}, err
	}
	s.logger.Info("event created", "id", created.ID, "title", created.Title, "start", created.Start)
	return created, nil
}

// ListEvents returns events between from and to. A zero end means
// the configured window after from.
func (s *Service) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	if to.IsZero() {
		to = from.Add(s.window)
	}
	return s.backend.List(ctx, from, to)
}

// DeleteByQuery deletes the first event at or after from whose title
// contains keyword. An empty keyword matches any event. Matching is
// case-sensitive and candidates are taken in listing order.
func (s *Service) DeleteByQuery(ctx context.Context, from time.Time, keyword string) (Event, error) {
	events, err := s.ListEvents(ctx, from, time.Time{})
	if err != nil {
		return Event{}, fmt.Errorf("searching events: %w", err)
	}

	for _, ev := range events {
		if keyword != "" && !strings.Contains(ev.Title, keyword) {
			continue
		}
		if err := s.backend.Delete(ctx, ev.ID); err != nil {
			return Event{}, err
		}
		s.logger.Info("event deleted", "id", ev.ID, "title", ev.Title, "keyword", keyword)
		return ev, nil
	}
	return Event{}, ErrNoMatch
}

// Rescheduled reports both halves of a reschedule.
type Rescheduled struct {
	Deleted   Event
	DeleteErr error
	Created   Event
	CreateErr error
}

// Reschedule deletes the old event by query, then creates the new one.
// The create runs even when the delete fails. Nothing is rolled back.
func (s *Service) Reschedule(ctx context.Context, oldMin time.Time, oldKeyword string, next Event) Rescheduled {
	var r Rescheduled
	r.Deleted, r.DeleteErr = s.DeleteByQuery(ctx, oldMin, oldKeyword)
	if r.DeleteErr != nil {
		s.logger.Warn("reschedule: old event not deleted", "keyword", oldKeyword, "error", r.DeleteErr)
	}
	r.Created, r.CreateErr = s.CreateEvent(ctx, next)
	if r.CreateErr != nil {
		s.logger.Error("reschedule: new event not created", "title", next.Title, "error", r.CreateErr)
	}
	return r
}
