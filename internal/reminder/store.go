package reminder

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Store keeps logical reminders. Implementations must be safe for concurrent use.
type Store interface {
	Create(owner int64, when time.Time, text string) (Reminder, error)
	Get(id ID) (Reminder, error)
	List(owner int64) []Reminder
	Delete(id ID) bool
	Len() int
}

// MemoryStore is a map-backed Store. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[ID]Reminder
	seq   uint64
	now   func() time.Time
	newID func() ID
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithIDFunc overrides ID allocation.
func WithIDFunc(fn func() ID) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithStoreClock sets the clock used for CreatedAt.
func WithStoreClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty store that allocates random UUID ids.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{items: map[ID]Reminder{}, now: time.Now, newID: NewID}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) Create(owner int64, when time.Time, text string) (Reminder, error) {
	if strings.TrimSpace(text) == "" || when.IsZero() {
		return Reminder{}, ErrInvalidSelection
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for tries := 0; ; tries++ {
		if _, taken := s.items[id]; !taken {
			break
		}
		if tries >= 8 {
			return Reminder{}, errIDExhausted
		}
		id = s.newID()
	}
	s.seq++
	r := Reminder{ID: id, Owner: owner, When: when, Text: text, CreatedAt: s.now(), seq: s.seq}
	s.items[id] = r
	return r, nil
}

func (s *MemoryStore) Get(id ID) (Reminder, error) {
	s.mu.RLock()
	r, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

// List returns the owner's reminders by When, then creation order.
func (s *MemoryStore) List(owner int64) []Reminder {
	s.mu.RLock()
	out := make([]Reminder, 0, 8)
	for _, r := range s.items {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].When.Equal(out[j].When) {
			return out[i].When.Before(out[j].When)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Delete removes id and reports whether it existed. Absent ids are a no-op.
func (s *MemoryStore) Delete(id ID) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	n := len(s.items)
	s.mu.RUnlock()
	return n
}
