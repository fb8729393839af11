package keys

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Records are copied on the way in and
// out so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.Mutex
	records []*Record
	next    int64
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// FindActive implements Store.
func (s *MemoryStore) FindActive(_ context.Context, slot string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.active(slot); r != nil {
		return cloneRecord(r), nil
	}
	return nil, nil
}

// FindByVersion implements Store.
func (s *MemoryStore) FindByVersion(_ context.Context, slot string, version int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Version == version && (slot == "" || r.Slot == slot) {
			return cloneRecord(r), nil
		}
	}
	return nil, nil
}

// Replace implements Store.
func (s *MemoryStore) Replace(_ context.Context, prev int64, next *Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.active(next.Slot)
	if current != nil && current.Version != prev {
		return cloneRecord(current), nil
	}
	for _, r := range s.records {
		if r.Slot == next.Slot && r.Active {
			r.Active = false
			r.Status = StatusInactive
		}
	}

	s.next++
	stored := cloneRecord(next)
	stored.Version = s.next
	stored.Active = true
	stored.Status = StatusActive
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.records = append(s.records, stored)
	return cloneRecord(stored), nil
}

// Slots implements Store.
func (s *MemoryStore) Slots(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var slots []string
	for _, r := range s.records {
		if _, ok := seen[r.Slot]; ok {
			continue
		}
		seen[r.Slot] = struct{}{}
		slots = append(slots, r.Slot)
	}
	sort.Strings(slots)
	return slots, nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, slot string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Slot == slot {
			out = append(out, cloneRecord(s.records[i]))
		}
	}
	return out, nil
}

func (s *MemoryStore) active(slot string) *Record {
	var best *Record
	for _, r := range s.records {
		if r.Slot == slot && r.Active && (best == nil || r.Version > best.Version) {
			best = r
		}
	}
	return best
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Material = append([]byte(nil), r.Material...)
	return &c
}
