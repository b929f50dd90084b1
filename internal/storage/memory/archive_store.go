package memory

import (
	"context"
	"sync"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// ArchiveStore is an in-memory implementation of storage.ArchiveStore.
type ArchiveStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Event // keyed by RunKey.String()
}

// NewArchiveStore creates a new in-memory archive store.
func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{
		data: make(map[string][]*domain.Event),
	}
}

// Compile-time interface check.
var _ storage.ArchiveStore = (*ArchiveStore)(nil)

// WriteRun stores the complete ordered event sequence of one run.
func (s *ArchiveStore) WriteRun(_ context.Context, run domain.RunKey, events []*domain.Event) error {
	if err := storage.ValidateRun(run); err != nil {
		return err
	}
	if err := storage.ValidateEvents(events); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := run.String()
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copyEvents(events)
	return nil
}

// GetByRun retrieves a run's events in their original order.
func (s *ArchiveStore) GetByRun(_ context.Context, run domain.RunKey) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.data[run.String()]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyEvents(events), nil
}

// HasRun reports whether the run was archived.
func (s *ArchiveStore) HasRun(_ context.Context, run domain.RunKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[run.String()]
	return exists, nil
}

// copyEvents deep-copies events to prevent external mutation.
func copyEvents(events []*domain.Event) []*domain.Event {
	result := make([]*domain.Event, len(events))
	for i, ev := range events {
		c := &domain.Event{Kind: ev.Kind}
		if ev.Snapshot != nil {
			c.Snapshot = &domain.BookSnapshot{
				Bids: append([]domain.Quote(nil), ev.Snapshot.Bids...),
				Asks: append([]domain.Quote(nil), ev.Snapshot.Asks...),
			}
		}
		if ev.Delta != nil {
			q := *ev.Delta
			c.Delta = &q
		}
		if ev.Trade != nil {
			t := *ev.Trade
			c.Trade = &t
		}
		result[i] = c
	}
	return result
}
