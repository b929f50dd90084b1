package memory

import (
	"context"
	"sort"
	"sync"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	recordCopy := *r
	s.data[r.RunID] = &recordCopy
	return nil
}

// GetByRunKey retrieves all records of a run, ordered by started_at ASC.
func (s *RunStore) GetByRunKey(_ context.Context, run domain.RunKey) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunRecord
	for _, r := range s.data {
		if r.Key() == run {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sortRunRecords(result)
	return result, nil
}

// GetAll retrieves all records, ordered by started_at ASC.
func (s *RunStore) GetAll(_ context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sortRunRecords(result)
	return result, nil
}

func sortRunRecords(records []*domain.RunRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].RunID < records[j].RunID
	})
}
