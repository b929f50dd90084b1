package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"marketdata-archiver/internal/domain"
)

// Method is a replayed message method understood by the feed.
type Method string

// Known wire methods. Anything else parses to MethodUnknown and is ignored.
const (
	MethodUnknown      Method = ""
	MethodBookUpdate   Method = "depth.update"
	MethodTradesUpdate Method = "trades.update"
)

// ParseMethod maps a wire method name onto the closed Method set.
func ParseMethod(s string) Method {
	switch m := Method(s); m {
	case MethodBookUpdate, MethodTradesUpdate:
		return m
	default:
		return MethodUnknown
	}
}

// envelope is one NDJSON line from the replay service.
type envelope struct {
	LocalTimestamp string          `json:"localTimestamp"`
	Message        json.RawMessage `json:"message"`
}

// message is a decoded replayed exchange message.
type message struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`

	// localTimestamp is injected from the envelope and is the authoritative
	// event time for book messages.
	localTimestamp string
}

// decodeLine decodes one line. A message that is a JSON string is the
// service's error signal.
func decodeLine(line []byte) (*message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	raw := bytes.TrimSpace(env.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedLine)
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrProtocol, text)
	}

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	msg.localTimestamp = env.LocalTimestamp

	return &msg, nil
}

type feedState int

const (
	stateAwaitingFirstBook feedState = iota
	stateStreaming
)

// dispatcher routes messages to processors and tracks the book state of one feed.
type dispatcher struct {
	symbol      string
	windowStart time.Time
	state       feedState

	tradesDropped int
}

func newDispatcher(symbol string, windowStart time.Time) *dispatcher {
	return &dispatcher{
		symbol:      symbol,
		windowStart: windowStart.UTC(),
		state:       stateAwaitingFirstBook,
	}
}

// dispatch turns one message into zero or more events.
// Only the first book message of a feed can produce a full snapshot.
func (d *dispatcher) dispatch(msg *message) ([]*domain.Event, error) {
	switch ParseMethod(msg.Method) {
	case MethodBookUpdate:
		if d.state == stateAwaitingFirstBook {
			d.state = stateStreaming
			if isSnapshot(msg.Params) {
				ev, err := d.processSnapshot(msg)
				if err != nil {
					return nil, err
				}
				return []*domain.Event{ev}, nil
			}
		}
		return d.processDelta(msg)

	case MethodTradesUpdate:
		return d.processTrades(msg)

	default:
		return nil, nil
	}
}

// isSnapshot reads the params[0] flag by truthiness: false, null, zero and
// empty strings, arrays or objects are deltas, anything else is a snapshot.
// Absent means delta.
func isSnapshot(params []json.RawMessage) bool {
	if len(params) == 0 {
		return false
	}

	var flag interface{}
	if err := json.Unmarshal(params[0], &flag); err != nil {
		return false
	}

	switch v := flag.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}
