package domain

// EventKind tags the variant carried by an Event.
type EventKind string

// Event kinds, using the archive's one-letter record codes.
const (
	EventSnapshot EventKind = "S"
	EventDelta    EventKind = "Q"
	EventTrade    EventKind = "T"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k EventKind) IsValid() bool {
	return k == EventSnapshot || k == EventDelta || k == EventTrade
}

// Event is a normalized replay record.
// Exactly one of Snapshot, Delta or Trade is set based on Kind.
type Event struct {
	Kind     EventKind
	Snapshot *BookSnapshot
	Delta    *Quote
	Trade    *Trade
}

// NewSnapshotEvent wraps a full book snapshot.
func NewSnapshotEvent(bids, asks []Quote) *Event {
	return &Event{Kind: EventSnapshot, Snapshot: &BookSnapshot{Bids: bids, Asks: asks}}
}

// NewDeltaEvent wraps a single level update.
func NewDeltaEvent(q Quote) *Event {
	return &Event{Kind: EventDelta, Delta: &q}
}

// NewTradeEvent wraps a trade.
func NewTradeEvent(t Trade) *Event {
	return &Event{Kind: EventTrade, Trade: &t}
}

// Symbol returns the market symbol of the wrapped record.
// Snapshots without levels have no symbol.
func (e *Event) Symbol() string {
	switch e.Kind {
	case EventSnapshot:
		if len(e.Snapshot.Bids) > 0 {
			return e.Snapshot.Bids[0].Symbol
		}
		if len(e.Snapshot.Asks) > 0 {
			return e.Snapshot.Asks[0].Symbol
		}
	case EventDelta:
		return e.Delta.Symbol
	case EventTrade:
		return e.Trade.Symbol
	}
	return ""
}
