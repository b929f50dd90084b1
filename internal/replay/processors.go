package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketdata-archiver/internal/domain"
)

// bookSides is params[1] of a book message.
type bookSides struct {
	Bids []level `json:"bids"`
	Asks []level `json:"asks"`
}

// level is a [price, size] pair.
type level struct {
	Price string
	Size  decimal.Decimal
}

func (l *level) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) < 2 {
		return fmt.Errorf("book level has %d elements, want 2", len(pair))
	}

	price, err := rawText(pair[0])
	if err != nil {
		return fmt.Errorf("level price: %w", err)
	}
	if err := l.Size.UnmarshalJSON(pair[1]); err != nil {
		return fmt.Errorf("level size: %w", err)
	}
	l.Price = price
	return nil
}

// rawTrade is one entry of params[1] of a trades message.
type rawTrade struct {
	ID     json.RawMessage `json:"id"`
	Time   decimal.Decimal `json:"time"`
	Price  json.RawMessage `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

// rawText returns a JSON string's contents, or a number's literal digits.
func rawText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// eventTime parses the injected local timestamp at microsecond precision.
func eventTime(localTimestamp string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, localTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: local timestamp: %v", ErrMalformedLine, err)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

func decodeSides(msg *message) (*bookSides, error) {
	if len(msg.Params) < 2 {
		return nil, fmt.Errorf("%w: %s has %d params, want 2", ErrMalformedLine, msg.Method, len(msg.Params))
	}
	var sides bookSides
	if err := json.Unmarshal(msg.Params[1], &sides); err != nil {
		return nil, fmt.Errorf("%w: book sides: %v", ErrMalformedLine, err)
	}
	return &sides, nil
}

func (d *dispatcher) quote(l level, side domain.Side, at time.Time) domain.Quote {
	return domain.Quote{
		Symbol:    d.symbol,
		Price:     domain.NormalizePrice(l.Price),
		Size:      l.Size,
		Side:      side,
		Date:      at,
		Timestamp: at.UnixMicro(),
	}
}

// processSnapshot emits a single full-book event.
func (d *dispatcher) processSnapshot(msg *message) (*domain.Event, error) {
	at, err := eventTime(msg.localTimestamp)
	if err != nil {
		return nil, err
	}
	sides, err := decodeSides(msg)
	if err != nil {
		return nil, err
	}

	bids := make([]domain.Quote, 0, len(sides.Bids))
	for _, l := range sides.Bids {
		bids = append(bids, d.quote(l, domain.SideBid, at))
	}
	asks := make([]domain.Quote, 0, len(sides.Asks))
	for _, l := range sides.Asks {
		asks = append(asks, d.quote(l, domain.SideAsk, at))
	}

	return domain.NewSnapshotEvent(bids, asks), nil
}

// processDelta emits one delta event per level, bids before asks.
func (d *dispatcher) processDelta(msg *message) ([]*domain.Event, error) {
	at, err := eventTime(msg.localTimestamp)
	if err != nil {
		return nil, err
	}
	sides, err := decodeSides(msg)
	if err != nil {
		return nil, err
	}

	events := make([]*domain.Event, 0, len(sides.Bids)+len(sides.Asks))
	for _, l := range sides.Bids {
		events = append(events, domain.NewDeltaEvent(d.quote(l, domain.SideBid, at)))
	}
	for _, l := range sides.Asks {
		events = append(events, domain.NewDeltaEvent(d.quote(l, domain.SideAsk, at)))
	}
	return events, nil
}

// processTrades emits trades at or after the window start, using each
// trade's own epoch time.
func (d *dispatcher) processTrades(msg *message) ([]*domain.Event, error) {
	if len(msg.Params) < 2 {
		return nil, fmt.Errorf("%w: %s has %d params, want 2", ErrMalformedLine, msg.Method, len(msg.Params))
	}

	var raws []rawTrade
	if err := json.Unmarshal(msg.Params[1], &raws); err != nil {
		return nil, fmt.Errorf("%w: trades: %v", ErrMalformedLine, err)
	}

	events := make([]*domain.Event, 0, len(raws))
	for _, raw := range raws {
		at := time.UnixMicro(raw.Time.Shift(6).IntPart()).UTC()
		if at.Before(d.windowStart) {
			d.tradesDropped++
			continue
		}

		id, err := rawText(raw.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: trade id: %v", ErrMalformedLine, err)
		}
		price, err := rawText(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: trade price: %v", ErrMalformedLine, err)
		}
		side, err := domain.SideFromString(raw.Type)
		if err != nil {
			return nil, fmt.Errorf("trade %s: %w", id, err)
		}

		events = append(events, domain.NewTradeEvent(domain.Trade{
			Symbol:      d.symbol,
			ID:          id,
			Price:       domain.NormalizePrice(price),
			Size:        raw.Amount,
			Side:        side,
			Liquidation: false,
			Date:        at,
			Timestamp:   at.UnixMicro(),
		}))
	}
	return events, nil
}
