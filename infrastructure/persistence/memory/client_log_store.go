package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bit-backend/application/ports"
	"bit-backend/domain/clientlog"
)

// InMemoryClientLogStore keeps client logs in a bounded in-memory ring
type InMemoryClientLogStore struct {
	mu         sync.RWMutex
	records    []*clientlog.Record
	maxRecords int
}

var _ ports.ClientLogStore = (*InMemoryClientLogStore)(nil)

// NewInMemoryClientLogStore creates a store that keeps the newest maxRecords records
func NewInMemoryClientLogStore(maxRecords int) *InMemoryClientLogStore {
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	return &InMemoryClientLogStore{maxRecords: maxRecords}
}

// Save appends records, dropping the oldest once the store is full
func (s *InMemoryClientLogStore) Save(ctx context.Context, records []*clientlog.Record) error {
	for _, r := range records {
		if r == nil || r.ID == "" {
			return fmt.Errorf("invalid client log record")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	if overflow := len(s.records) - s.maxRecords; overflow > 0 {
		s.records = append([]*clientlog.Record(nil), s.records[overflow:]...)
	}
	return nil
}

// ListSince returns records received at or after since, newest first. Records
// received at the same instant come back in reverse save order.
func (s *InMemoryClientLogStore) ListSince(ctx context.Context, since time.Time, limit int) ([]*clientlog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*clientlog.Record, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if r := s.records[i]; !r.ReceivedAt.Before(since) {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of stored records
func (s *InMemoryClientLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
