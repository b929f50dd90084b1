package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// ArchiveStore implements storage.ArchiveStore using ClickHouse.
//
// A run is stored as rows in book_events and trade_events sharing a per-run
// seq, plus one archive_manifest row written last. Snapshot levels share the
// seq of their event and are ordered by level. Event rows without a manifest
// are left over from an interrupted write and are removed before the run is
// written again.
type ArchiveStore struct {
	conn *Conn
}

// NewArchiveStore creates a new ArchiveStore.
func NewArchiveStore(conn *Conn) *ArchiveStore {
	return &ArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ArchiveStore = (*ArchiveStore)(nil)

// WriteRun stores a run's events. Fails with ErrDuplicateKey if the run exists.
func (s *ArchiveStore) WriteRun(ctx context.Context, run domain.RunKey, events []*domain.Event) (err error) {
	defer observeQuery("write_run", time.Now(), &err)

	if err := storage.ValidateRun(run); err != nil {
		return err
	}
	if err := storage.ValidateEvents(events); err != nil {
		return err
	}

	exists, err := s.hasRun(ctx, run)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if err := s.clearEvents(ctx, run); err != nil {
		return err
	}
	if err := s.writeBook(ctx, run, events); err != nil {
		return err
	}
	if err := s.writeTrades(ctx, run, events); err != nil {
		return err
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO archive_manifest (exchange, market, run_date, event_count, written_at)
		VALUES (?, ?, toDate(?), ?, ?)
	`, run.Exchange, run.Market, runDate(run), uint64(len(events)), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}

	return nil
}

// clearEvents deletes the run's event rows and waits for the mutations to
// finish on all replicas.
func (s *ArchiveStore) clearEvents(ctx context.Context, run domain.RunKey) error {
	ctx = clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"mutations_sync": 2,
	}))

	for _, table := range []string{"book_events", "trade_events"} {
		err := s.conn.Exec(ctx, `
			ALTER TABLE `+table+`
			DELETE WHERE exchange = ? AND market = ? AND run_date = toDate(?)
		`, run.Exchange, run.Market, runDate(run))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *ArchiveStore) writeBook(ctx context.Context, run domain.RunKey, events []*domain.Event) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO book_events (
			exchange, market, run_date, seq, level, kind,
			symbol, side, price, size, timestamp_us
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare book batch: %w", err)
	}

	rows := 0
	appendQuote := func(seq int, level int, kind domain.EventKind, q domain.Quote) error {
		rows++
		return batch.Append(
			run.Exchange, run.Market, run.Date.UTC(), uint64(seq), uint32(level), string(kind),
			q.Symbol, int8(q.Side), q.Price.String(), q.Size, q.Timestamp,
		)
	}

	for seq, ev := range events {
		switch ev.Kind {
		case domain.EventSnapshot:
			levels := append(append([]domain.Quote(nil), ev.Snapshot.Bids...), ev.Snapshot.Asks...)
			if len(levels) == 0 {
				// placeholder row, skipped on read
				levels = []domain.Quote{{Side: domain.SideUninitialized}}
			}
			for level, q := range levels {
				if err := appendQuote(seq, level, ev.Kind, q); err != nil {
					return fmt.Errorf("append to book batch: %w", err)
				}
			}
		case domain.EventDelta:
			if err := appendQuote(seq, 0, ev.Kind, *ev.Delta); err != nil {
				return fmt.Errorf("append to book batch: %w", err)
			}
		}
	}

	if rows == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send book batch: %w", err)
	}
	return nil
}

func (s *ArchiveStore) writeTrades(ctx context.Context, run domain.RunKey, events []*domain.Event) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			exchange, market, run_date, seq,
			symbol, trade_id, side, price, size, liquidation, timestamp_us
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare trade batch: %w", err)
	}

	rows := 0
	for seq, ev := range events {
		if ev.Kind != domain.EventTrade {
			continue
		}
		t := ev.Trade
		err := batch.Append(
			run.Exchange, run.Market, run.Date.UTC(), uint64(seq),
			t.Symbol, t.ID, int8(t.Side), t.Price.String(), t.Size, t.Liquidation, t.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to trade batch: %w", err)
		}
		rows++
	}

	if rows == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send trade batch: %w", err)
	}
	return nil
}

// GetByRun retrieves a run's events in their original order.
func (s *ArchiveStore) GetByRun(ctx context.Context, run domain.RunKey) (events []*domain.Event, err error) {
	defer observeQuery("get_by_run", time.Now(), &err)

	var count uint64
	err = s.conn.QueryRow(ctx, `
		SELECT event_count FROM archive_manifest
		WHERE exchange = ? AND market = ? AND run_date = toDate(?)
		ORDER BY written_at ASC
		LIMIT 1
	`, run.Exchange, run.Market, runDate(run)).Scan(&count)
	if err != nil {
		exists, existsErr := s.hasRun(ctx, run)
		if existsErr == nil && !exists {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query manifest: %w", err)
	}

	events = make([]*domain.Event, count)

	rows, err := s.conn.Query(ctx, `
		SELECT seq, kind, symbol, side, price, size, timestamp_us
		FROM book_events
		WHERE exchange = ? AND market = ? AND run_date = toDate(?)
		ORDER BY seq ASC, level ASC
	`, run.Exchange, run.Market, runDate(run))
	if err != nil {
		return nil, fmt.Errorf("query book events: %w", err)
	}
	err = scanBookEvents(rows, events)
	rows.Close()
	if err != nil {
		return nil, err
	}

	rows, err = s.conn.Query(ctx, `
		SELECT seq, symbol, trade_id, side, price, size, liquidation, timestamp_us
		FROM trade_events
		WHERE exchange = ? AND market = ? AND run_date = toDate(?)
		ORDER BY seq ASC
	`, run.Exchange, run.Market, runDate(run))
	if err != nil {
		return nil, fmt.Errorf("query trade events: %w", err)
	}
	err = scanTradeEvents(rows, events)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i, ev := range events {
		if ev == nil {
			return nil, fmt.Errorf("run %s: event %d missing from archive", run, i)
		}
	}
	return events, nil
}

// HasRun reports whether the run's manifest row exists.
func (s *ArchiveStore) HasRun(ctx context.Context, run domain.RunKey) (exists bool, err error) {
	defer observeQuery("has_run", time.Now(), &err)
	return s.hasRun(ctx, run)
}

func (s *ArchiveStore) hasRun(ctx context.Context, run domain.RunKey) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM archive_manifest
		WHERE exchange = ? AND market = ? AND run_date = toDate(?)
	`, run.Exchange, run.Market, runDate(run)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func runDate(run domain.RunKey) string {
	return run.Date.UTC().Format(domain.DateLayout)
}

// scanBookEvents places book rows into events by seq.
func scanBookEvents(rows chRows, events []*domain.Event) error {
	for rows.Next() {
		var (
			seq         uint64
			kind        string
			q           domain.Quote
			side        int8
			price       string
			size        decimal.Decimal
			timestampUs int64
		)
		if err := rows.Scan(&seq, &kind, &q.Symbol, &side, &price, &size, &timestampUs); err != nil {
			return fmt.Errorf("scan book event row: %w", err)
		}
		if seq >= uint64(len(events)) {
			return fmt.Errorf("book event seq %d out of range", seq)
		}

		q.Side = domain.Side(side)
		q.Price = domain.Price(price)
		q.Size = size
		q.Timestamp = timestampUs
		q.Date = time.UnixMicro(timestampUs).UTC()

		switch domain.EventKind(kind) {
		case domain.EventSnapshot:
			ev := events[seq]
			if ev == nil {
				ev = domain.NewSnapshotEvent(nil, nil)
				events[seq] = ev
			}
			switch q.Side {
			case domain.SideBid:
				ev.Snapshot.Bids = append(ev.Snapshot.Bids, q)
			case domain.SideAsk:
				ev.Snapshot.Asks = append(ev.Snapshot.Asks, q)
			}
		case domain.EventDelta:
			events[seq] = domain.NewDeltaEvent(q)
		default:
			return fmt.Errorf("unknown book event kind %q", kind)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate book event rows: %w", err)
	}
	return nil
}

// scanTradeEvents places trade rows into events by seq.
func scanTradeEvents(rows chRows, events []*domain.Event) error {
	for rows.Next() {
		var (
			seq         uint64
			t           domain.Trade
			side        int8
			price       string
			timestampUs int64
		)
		err := rows.Scan(&seq, &t.Symbol, &t.ID, &side, &price, &t.Size, &t.Liquidation, &timestampUs)
		if err != nil {
			return fmt.Errorf("scan trade event row: %w", err)
		}
		if seq >= uint64(len(events)) {
			return fmt.Errorf("trade event seq %d out of range", seq)
		}

		t.Side = domain.Side(side)
		t.Price = domain.Price(price)
		t.Timestamp = timestampUs
		t.Date = time.UnixMicro(timestampUs).UTC()
		events[seq] = domain.NewTradeEvent(t)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate trade event rows: %w", err)
	}
	return nil
}
