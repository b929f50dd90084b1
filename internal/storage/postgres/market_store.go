package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// MarketStore implements storage.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *Pool
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(pool *Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

const marketColumns = `
	exchange, market, instrument, market_type, enabled,
	maker_fee, taker_fee, tick_size, min_size,
	price_precision, size_precision, mm_size, expiry
`

// Upsert inserts or replaces a market keyed by (exchange, market).
func (s *MarketStore) Upsert(ctx context.Context, m *domain.Market) (err error) {
	if m == nil || m.Exchange == "" || m.Market == "" {
		return storage.ErrInvalidInput
	}

	marketType := m.Type
	if marketType == "" {
		marketType = domain.MarketTypeSpot
	}

	defer observeQuery("upsert_market", time.Now(), &err)

	var expiry *time.Time
	if m.HasExpiry() {
		e := m.Expiry.UTC()
		expiry = &e
	}

	query := `
		INSERT INTO markets (` + marketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (exchange, market) DO UPDATE SET
			instrument = EXCLUDED.instrument,
			market_type = EXCLUDED.market_type,
			enabled = EXCLUDED.enabled,
			maker_fee = EXCLUDED.maker_fee,
			taker_fee = EXCLUDED.taker_fee,
			tick_size = EXCLUDED.tick_size,
			min_size = EXCLUDED.min_size,
			price_precision = EXCLUDED.price_precision,
			size_precision = EXCLUDED.size_precision,
			mm_size = EXCLUDED.mm_size,
			expiry = EXCLUDED.expiry
	`

	_, err = s.pool.Exec(ctx, query,
		m.Exchange,
		m.Market,
		m.Instrument,
		string(marketType),
		m.Enabled,
		m.MakerFee,
		m.TakerFee,
		m.TickSize,
		m.MinSize,
		m.PricePrecision,
		m.SizePrecision,
		m.MMSize,
		expiry,
	)
	if err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}
	return nil
}

// GetByExchange retrieves all markets of an exchange, ordered by market ASC.
func (s *MarketStore) GetByExchange(ctx context.Context, exchange string) (markets []*domain.Market, err error) {
	defer observeQuery("get_markets_by_exchange", time.Now(), &err)

	query := `SELECT ` + marketColumns + ` FROM markets WHERE exchange = $1 ORDER BY market ASC`

	rows, err := s.pool.Query(ctx, query, exchange)
	if err != nil {
		return nil, fmt.Errorf("query markets by exchange: %w", err)
	}
	defer rows.Close()

	return scanMarkets(rows)
}

// GetAll retrieves all markets, ordered by (exchange, market) ASC.
func (s *MarketStore) GetAll(ctx context.Context) (markets []*domain.Market, err error) {
	defer observeQuery("get_all_markets", time.Now(), &err)

	query := `SELECT ` + marketColumns + ` FROM markets ORDER BY exchange ASC, market ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all markets: %w", err)
	}
	defer rows.Close()

	return scanMarkets(rows)
}

func scanMarkets(rows pgx.Rows) ([]*domain.Market, error) {
	var markets []*domain.Market

	for rows.Next() {
		var (
			m          domain.Market
			marketType string
			expiry     *time.Time
		)
		err := rows.Scan(
			&m.Exchange,
			&m.Market,
			&m.Instrument,
			&marketType,
			&m.Enabled,
			&m.MakerFee,
			&m.TakerFee,
			&m.TickSize,
			&m.MinSize,
			&m.PricePrecision,
			&m.SizePrecision,
			&m.MMSize,
			&expiry,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}

		m.Type = domain.MarketType(marketType)
		if expiry != nil {
			m.Expiry = expiry.UTC()
		}
		markets = append(markets, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}

	return markets, nil
}
