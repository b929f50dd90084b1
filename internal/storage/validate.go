package storage

import (
	"fmt"

	"marketdata-archiver/internal/domain"
)

// ValidateRun checks the identity of a run before it is archived.
func ValidateRun(run domain.RunKey) error {
	if run.Exchange == "" || run.Market == "" || run.Date.IsZero() {
		return fmt.Errorf("%w: incomplete run key %s", ErrInvalidInput, run)
	}
	return nil
}

// ValidateEvents checks that every event carries the payload its kind names.
func ValidateEvents(events []*domain.Event) error {
	for i, ev := range events {
		if ev == nil {
			return fmt.Errorf("%w: event %d is nil", ErrInvalidInput, i)
		}
		ok := false
		switch ev.Kind {
		case domain.EventSnapshot:
			ok = ev.Snapshot != nil
		case domain.EventDelta:
			ok = ev.Delta != nil && ev.Delta.Side.IsValid()
		case domain.EventTrade:
			ok = ev.Trade != nil && ev.Trade.Side.IsValid()
		}
		if !ok {
			return fmt.Errorf("%w: event %d of kind %q has no valid payload", ErrInvalidInput, i, ev.Kind)
		}
	}
	return nil
}
