// Package calendar implements the calendar skills on top of a pluggable
// event backend.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoMatch is returned when delete-by-query finds no candidate event.
var ErrNoMatch = errors.New("no matching event found")

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Link        string    `json:"link,omitempty"`
}

// Backend stores calendar events.
type Backend interface {
	// Create stores ev and returns it with its assigned ID.
	Create(ctx context.Context, ev Event) (Event, error)
	// List returns events overlapping [from, to) ordered by start time.
	List(ctx context.Context, from, to time.Time) ([]Event, error)
	Delete(ctx context.Context, id string) error
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime reads a timestamp produced by the language model. Values
// without an offset are taken to be in loc; a bare date is midnight.
func ParseTime(s string, loc *time.Location) (t time.Time, allDay bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}
