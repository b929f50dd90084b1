package replay

import (
	"errors"
	"fmt"

	"marketdata-archiver/internal/domain"
)

// Replay session errors. Each one aborts the session it occurs in.
var (
	// ErrProtocol is returned when the service sends an error string in place of a message.
	ErrProtocol = errors.New("replay protocol error")

	// ErrMalformedLine is returned when a line or its payload cannot be decoded.
	ErrMalformedLine = errors.New("malformed replay line")

	// ErrTransport is returned when the HTTP session fails or ends abnormally.
	ErrTransport = errors.New("replay transport error")

	// ErrSink is returned when the event sink rejects an event.
	ErrSink = errors.New("replay sink error")

	// ErrNoChannels is returned when a feed is asked for neither book nor trades.
	ErrNoChannels = errors.New("no replay channels requested")
)

// StreamError carries the 1-based line number a session failed on.
// Line is 0 for failures outside the line loop.
type StreamError struct {
	Line int
	Err  error
}

func (e *StreamError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("replay line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a feed error for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrMalformedLine):
		return "malformed_line"
	case errors.Is(err, domain.ErrUnknownSide):
		return "unknown_side"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrSink):
		return "sink"
	default:
		return "other"
	}
}
