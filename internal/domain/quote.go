package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one price-level update inside a book snapshot or delta.
// Corresponds to book_events table in ClickHouse.
type Quote struct {
	Symbol    string          // exchange market symbol
	Price     Price           // normalized price
	Size      decimal.Decimal // level size, zero removes the level
	Side      Side            // SideBid | SideAsk
	Date      time.Time       // wall-clock event time, UTC location
	Timestamp int64           // event time, Unix microseconds
}

// EpochSeconds returns the event time as fractional Unix seconds.
func (q Quote) EpochSeconds() float64 {
	return float64(q.Timestamp) / 1e6
}

// BookSnapshot is a full order book at one point in time.
type BookSnapshot struct {
	Bids []Quote
	Asks []Quote
}
