// Package markets lists the markets eligible for archiving.
package markets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// FilterAll selects every market.
const FilterAll = "all"

// ErrUnboundedFilter is returned by ConfigSource for the "all" filter,
// which it cannot enumerate.
var ErrUnboundedFilter = errors.New("config market source needs an explicit market filter")

// Source lists candidate markets.
type Source interface {
	List(ctx context.Context) ([]*domain.Market, error)
}

// Filter selects markets by exchange symbol.
type Filter []string

// All reports whether the filter selects every market.
func (f Filter) All() bool {
	return len(f) == 0 || (len(f) == 1 && strings.EqualFold(f[0], FilterAll))
}

// Match reports whether market passes the filter.
func (f Filter) Match(market string) bool {
	if f.All() {
		return true
	}
	for _, m := range f {
		if m == market {
			return true
		}
	}
	return false
}

// ConfigSource builds one spot market per (exchange, filter entry).
type ConfigSource struct {
	Exchanges []string
	Filter    Filter
}

// Compile-time interface check.
var _ Source = (*ConfigSource)(nil)

// List returns the configured markets, enabled, without fees or expiry.
func (s *ConfigSource) List(_ context.Context) ([]*domain.Market, error) {
	if s.Filter.All() {
		return nil, ErrUnboundedFilter
	}

	markets := make([]*domain.Market, 0, len(s.Exchanges)*len(s.Filter))
	for _, exchange := range s.Exchanges {
		for _, market := range s.Filter {
			markets = append(markets, &domain.Market{
				Exchange:   exchange,
				Market:     market,
				Instrument: InstrumentFor(market),
				Type:       domain.MarketTypeSpot,
				Enabled:    true,
			})
		}
	}
	return markets, nil
}

// InstrumentFor maps an exchange symbol to the local instrument name.
func InstrumentFor(market string) string {
	return strings.ReplaceAll(market, "_", "")
}

// StoreSource lists markets from the market registry.
type StoreSource struct {
	Store     storage.MarketStore
	Exchanges []string
	Filter    Filter
}

// Compile-time interface check.
var _ Source = (*StoreSource)(nil)

// List returns the registered markets of the configured exchanges.
func (s *StoreSource) List(ctx context.Context) ([]*domain.Market, error) {
	var out []*domain.Market
	for _, exchange := range s.Exchanges {
		markets, err := s.Store.GetByExchange(ctx, exchange)
		if err != nil {
			return nil, fmt.Errorf("list markets of %s: %w", exchange, err)
		}
		for _, m := range markets {
			if s.Filter.Match(m.Market) {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// Register adds markets missing from the registry. Registered markets keep
// their stored attributes.
func Register(ctx context.Context, store storage.MarketStore, markets []*domain.Market) (int, error) {
	known := make(map[string]map[string]bool)
	added := 0
	for _, m := range markets {
		byMarket, ok := known[m.Exchange]
		if !ok {
			existing, err := store.GetByExchange(ctx, m.Exchange)
			if err != nil {
				return added, fmt.Errorf("list markets of %s: %w", m.Exchange, err)
			}
			byMarket = make(map[string]bool, len(existing))
			for _, e := range existing {
				byMarket[e.Market] = true
			}
			known[m.Exchange] = byMarket
		}
		if byMarket[m.Market] {
			continue
		}
		if err := store.Upsert(ctx, m); err != nil {
			return added, fmt.Errorf("register market %s/%s: %w", m.Exchange, m.Market, err)
		}
		byMarket[m.Market] = true
		added++
	}
	return added, nil
}
