package memory

import (
	"context"
	"sort"
	"sync"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

type marketKey struct {
	exchange string
	market   string
}

// MarketStore is an in-memory implementation of storage.MarketStore.
type MarketStore struct {
	mu   sync.RWMutex
	data map[marketKey]*domain.Market
}

// NewMarketStore creates a new in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		data: make(map[marketKey]*domain.Market),
	}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

// Upsert inserts or replaces a market keyed by (exchange, market).
func (s *MarketStore) Upsert(_ context.Context, m *domain.Market) error {
	if m == nil || m.Exchange == "" || m.Market == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	marketCopy := *m
	s.data[marketKey{m.Exchange, m.Market}] = &marketCopy
	return nil
}

// GetByExchange retrieves all markets of an exchange, ordered by market ASC.
func (s *MarketStore) GetByExchange(_ context.Context, exchange string) ([]*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Market
	for k, m := range s.data {
		if k.exchange == exchange {
			marketCopy := *m
			result = append(result, &marketCopy)
		}
	}

	sortMarkets(result)
	return result, nil
}

// GetAll retrieves all markets, ordered by (exchange, market) ASC.
func (s *MarketStore) GetAll(_ context.Context) ([]*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Market, 0, len(s.data))
	for _, m := range s.data {
		marketCopy := *m
		result = append(result, &marketCopy)
	}

	sortMarkets(result)
	return result, nil
}

func sortMarkets(markets []*domain.Market) {
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].Exchange != markets[j].Exchange {
			return markets[i].Exchange < markets[j].Exchange
		}
		return markets[i].Market < markets[j].Market
	})
}
