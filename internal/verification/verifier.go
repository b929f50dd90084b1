// Package verification checks that an archived run reads back exactly as
// it was streamed.
package verification

import (
	"fmt"

	"marketdata-archiver/internal/domain"
)

// FieldDivergence represents a mismatch between streamed and stored values.
type FieldDivergence struct {
	Event    int         // index in the run's event sequence, -1 for the run itself
	Field    string      // field name
	Expected interface{} // streamed value
	Actual   interface{} // stored value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("event %d %s: expected %v, got %v", d.Event, d.Field, d.Expected, d.Actual)
}

// VerificationResult contains the result of verifying one run.
type VerificationResult struct {
	Run         domain.RunKey
	Match       bool // true if all events match
	Events      int  // number of streamed events
	Divergences []FieldDivergence
}

// maxDivergences caps the report for badly damaged runs.
const maxDivergences = 20

// CompareEvents compares streamed events with their stored copy.
func CompareEvents(streamed, stored []*domain.Event) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(event int, field string, expected, actual interface{}) {
		if len(divergences) < maxDivergences {
			divergences = append(divergences, FieldDivergence{Event: event, Field: field, Expected: expected, Actual: actual})
		}
	}

	if len(streamed) != len(stored) {
		add(-1, "EventCount", len(streamed), len(stored))
	}

	n := min(len(streamed), len(stored))
	for i := 0; i < n; i++ {
		want, got := streamed[i], stored[i]
		if want.Kind != got.Kind {
			add(i, "Kind", want.Kind, got.Kind)
			continue
		}

		switch want.Kind {
		case domain.EventSnapshot:
			compareLevels(i, "Bids", want.Snapshot.Bids, got.Snapshot.Bids, add)
			compareLevels(i, "Asks", want.Snapshot.Asks, got.Snapshot.Asks, add)
		case domain.EventDelta:
			compareQuote(i, "Delta", *want.Delta, *got.Delta, add)
		case domain.EventTrade:
			compareTrade(i, *want.Trade, *got.Trade, add)
		}
	}

	return divergences
}

type addFunc func(event int, field string, expected, actual interface{})

func compareLevels(event int, side string, want, got []domain.Quote, add addFunc) {
	if len(want) != len(got) {
		add(event, side+".Len", len(want), len(got))
		return
	}
	for j := range want {
		compareQuote(event, fmt.Sprintf("%s[%d]", side, j), want[j], got[j], add)
	}
}

func compareQuote(event int, prefix string, want, got domain.Quote, add addFunc) {
	if want.Symbol != got.Symbol {
		add(event, prefix+".Symbol", want.Symbol, got.Symbol)
	}
	if want.Price != got.Price {
		add(event, prefix+".Price", want.Price, got.Price)
	}
	if !want.Size.Equal(got.Size) {
		add(event, prefix+".Size", want.Size, got.Size)
	}
	if want.Side != got.Side {
		add(event, prefix+".Side", want.Side, got.Side)
	}
	if want.Timestamp != got.Timestamp {
		add(event, prefix+".Timestamp", want.Timestamp, got.Timestamp)
	}
	if !want.Date.Equal(got.Date) {
		add(event, prefix+".Date", want.Date, got.Date)
	}
}

func compareTrade(event int, want, got domain.Trade, add addFunc) {
	if want.Symbol != got.Symbol {
		add(event, "Trade.Symbol", want.Symbol, got.Symbol)
	}
	if want.ID != got.ID {
		add(event, "Trade.ID", want.ID, got.ID)
	}
	if want.Price != got.Price {
		add(event, "Trade.Price", want.Price, got.Price)
	}
	if !want.Size.Equal(got.Size) {
		add(event, "Trade.Size", want.Size, got.Size)
	}
	if want.Side != got.Side {
		add(event, "Trade.Side", want.Side, got.Side)
	}
	if want.Liquidation != got.Liquidation {
		add(event, "Trade.Liquidation", want.Liquidation, got.Liquidation)
	}
	if want.Timestamp != got.Timestamp {
		add(event, "Trade.Timestamp", want.Timestamp, got.Timestamp)
	}
	if !want.Date.Equal(got.Date) {
		add(event, "Trade.Date", want.Date, got.Date)
	}
}
