package store

import (
	"context"
	"sort"
	"sync"

	"github.com/i474232898/weather-gdd/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory weather.Store with the same
// insert-if-absent semantics as SQLiteStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: obs_key
	data map[string]weather.ObservationRecord
}

var _ weather.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]weather.ObservationRecord),
	}
}

// Init is a no-op; the map is ready on construction.
func (s *MemoryStore) Init(context.Context) error {
	return nil
}

// InsertIfAbsent stores records whose key is new. Duplicate keys inside the
// same batch keep the first occurrence.
func (s *MemoryStore) InsertIfAbsent(ctx context.Context, records []weather.ObservationRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, rec := range records {
		if _, ok := s.data[rec.ObsKey]; ok {
			continue
		}
		s.data[rec.ObsKey] = rec
		inserted++
	}
	return inserted, nil
}

// ReadRange returns records with from <= key (<= *to when set), oldest first.
func (s *MemoryStore) ReadRange(ctx context.Context, from string, to *string) ([]weather.ObservationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.ObservationRecord
	for key, rec := range s.data {
		if key < from || (to != nil && key > *to) {
			continue
		}
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ObsKey < result[j].ObsKey
	})
	return result, nil
}

// ExistingKeys returns which of keys are already stored.
func (s *MemoryStore) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]struct{})
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			found[k] = struct{}{}
		}
	}
	return found, nil
}

// ClearAll drops every record.
func (s *MemoryStore) ClearAll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.data)
	s.data = make(map[string]weather.ObservationRecord)
	return n, nil
}
