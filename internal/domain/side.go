package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownSide is returned when a side value cannot be mapped to bid or ask.
var ErrUnknownSide = errors.New("unknown side")

// Side is the book or aggressor side of a quote or trade.
type Side int

const (
	SideUninitialized Side = -1
	SideBid           Side = 1
	SideAsk           Side = 2
)

// SideFromString maps "buy"/"bid" to SideBid and "sell"/"ask" to SideAsk.
func SideFromString(s string) (Side, error) {
	switch s {
	case "buy", "bid":
		return SideBid, nil
	case "sell", "ask":
		return SideAsk, nil
	default:
		return SideUninitialized, fmt.Errorf("%w: %q", ErrUnknownSide, s)
	}
}

// SideFromSignal maps a signed signal: +1 bid, -1 ask, 0 uninitialized.
func SideFromSignal(signal int) (Side, error) {
	switch signal {
	case 1:
		return SideBid, nil
	case -1:
		return SideAsk, nil
	case 0:
		return SideUninitialized, nil
	default:
		return SideUninitialized, fmt.Errorf("%w: signal %d", ErrUnknownSide, signal)
	}
}

// SideToString is the inverse of SideFromString for bid and ask.
func SideToString(s Side) (string, error) {
	switch s {
	case SideBid:
		return "buy", nil
	case SideAsk:
		return "sell", nil
	default:
		return "", fmt.Errorf("%w: cannot render %d", ErrUnknownSide, int(s))
	}
}

// String returns "buy", "sell" or "uninitialized".
func (s Side) String() string {
	str, err := SideToString(s)
	if err != nil {
		return "uninitialized"
	}
	return str
}

// IsValid reports whether the side is bid or ask.
func (s Side) IsValid() bool {
	return s == SideBid || s == SideAsk
}
