package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend keeps events in process memory.
type MemoryBackend struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryBackend creates an empty in-memory calendar.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Create(ctx context.Context, ev Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = uuid.New().String()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *MemoryBackend) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, ev := range m.events {
		if ev.End.After(from) && ev.Start.Before(to) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, ev := range m.events {
		if ev.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("event %s not found", id)
}

// Len returns the number of stored events.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
