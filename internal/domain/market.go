package domain

import (
	"fmt"
	"time"
)

// MarketType is the instrument class of a market.
type MarketType string

const (
	MarketTypeSpot       MarketType = "spot"
	MarketTypeFuture     MarketType = "future"
	MarketTypeMove       MarketType = "move"
	MarketTypePerpetual  MarketType = "perpetual"
	MarketTypePrediction MarketType = "prediction"
)

// ParseMarketType validates a market type string.
func ParseMarketType(s string) (MarketType, error) {
	switch t := MarketType(s); t {
	case MarketTypeSpot, MarketTypeFuture, MarketTypeMove, MarketTypePerpetual, MarketTypePrediction:
		return t, nil
	default:
		return "", fmt.Errorf("invalid market type: %q", s)
	}
}

// Market describes one exchange market eligible for archiving.
// Corresponds to markets table in PostgreSQL.
type Market struct {
	Exchange       string     // replay exchange id, e.g. "gate-io"
	Market         string     // exchange symbol, e.g. "JNT_USDT"
	Instrument     string     // local instrument mapping, empty if unmapped
	Type           MarketType // spot | future | move | perpetual | prediction
	Enabled        bool
	MakerFee       float64
	TakerFee       float64
	TickSize       float64
	MinSize        float64
	PricePrecision float64
	SizePrecision  float64
	MMSize         float64
	Expiry         time.Time // zero if the market does not expire
}

// HasExpiry reports whether the market has an expiry timestamp.
func (m Market) HasExpiry() bool {
	return !m.Expiry.IsZero()
}

// ActiveOn reports whether the market should be archived for a date:
// enabled markets always are, disabled ones only until their expiry date.
func (m Market) ActiveOn(date time.Time) bool {
	if m.Enabled {
		return true
	}
	if !m.HasExpiry() {
		return false
	}
	return !truncateDay(m.Expiry).Before(truncateDay(date))
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
