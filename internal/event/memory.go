package event

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

var (
	ErrNotFound        = errors.New("event not found")
	ErrInvalidCapacity = errors.New("capacity must be greater than zero")
)

// MemoryStore is a ring buffer of events with an ID index. It is safe for
// concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	buf   []types.Event
	index map[uuid.UUID]int // event ID → position in buf
	size  int
	count int
	head  int // next write position
}

// NewMemoryStore creates a MemoryStore holding at most capacity events.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &MemoryStore{
		buf:   make([]types.Event, capacity),
		index: make(map[uuid.UUID]int, capacity),
		size:  capacity,
	}, nil
}

func (s *MemoryStore) Save(event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == s.size {
		delete(s.index, s.buf[s.head].ID)
	}

	s.buf[s.head] = event
	s.index[event.ID] = s.head

	s.head = (s.head + 1) % s.size
	if s.count < s.size {
		s.count++
	}
	return nil
}

func (s *MemoryStore) Get(id uuid.UUID) (types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return s.buf[pos], nil
}

func (s *MemoryStore) List(f Filter) ([]types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.Limit <= 0 {
		return nil, nil
	}

	result := make([]types.Event, 0, min(f.Limit, s.count))
	skipped := 0
	for i := 0; i < s.count; i++ {
		ev := s.buf[(s.head-1-i+s.size)%s.size]
		if !f.match(ev) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		result = append(result, ev)
		if len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) Update(id uuid.UUID, fn func(*types.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	fn(&s.buf[pos])
	// The callback must not change the key.
	s.buf[pos].ID = id
	return nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
