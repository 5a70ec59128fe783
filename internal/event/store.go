// Package event keeps a bounded history of handled webhook messages.
package event

import (
	"github.com/google/uuid"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

// Filter narrows a List call. Zero fields match everything.
type Filter struct {
	ChannelID string
	Status    types.EventStatus
	Limit     int
	Offset    int
}

func (f Filter) match(ev types.Event) bool {
	if f.ChannelID != "" && ev.ChannelID != f.ChannelID {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	return true
}

// Store persists and queries handled events.
type Store interface {
	// Save records an event, evicting the oldest when full.
	Save(event types.Event) error

	// Get retrieves an event by ID. Returns ErrNotFound if absent.
	Get(id uuid.UUID) (types.Event, error)

	// List returns matching events newest-first. f.Offset skips that many
	// matches; a non-positive f.Limit returns nothing.
	List(f Filter) ([]types.Event, error)

	// Update applies fn to the stored event. Returns ErrNotFound if absent.
	Update(id uuid.UUID, fn func(*types.Event)) error

	// Count returns the number of events currently stored.
	Count() int
}
