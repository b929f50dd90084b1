package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one executed trade from a replayed feed.
// Corresponds to trade_events table in ClickHouse.
type Trade struct {
	Symbol      string          // exchange market symbol
	ID          string          // exchange trade id, verbatim
	Price       Price           // normalized price
	Size        decimal.Decimal // executed amount
	Side        Side            // aggressor side
	Liquidation bool            // not available from replay payloads, always false
	Date        time.Time       // wall-clock event time, UTC location
	Timestamp   int64           // event time, Unix microseconds
}

// EpochSeconds returns the event time as fractional Unix seconds.
func (t Trade) EpochSeconds() float64 {
	return float64(t.Timestamp) / 1e6
}
