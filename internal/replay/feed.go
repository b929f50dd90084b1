package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/observability"
)

// DefaultMaxLineSize bounds a single NDJSON line. Book bursts on busy markets
// produce very long lines, so the reader grows its buffer up to this size.
const DefaultMaxLineSize = 100_000_000

// initialLineBuffer is the starting size of the line buffer.
const initialLineBuffer = 64 * 1024

// Feed replays one market's window over a single streaming HTTP session.
// A Feed is single-use and not safe for concurrent use.
type Feed struct {
	builder     *SessionBuilder
	market      domain.Market
	from        time.Time
	to          time.Time
	book        bool
	trades      bool
	client      *http.Client
	maxLineSize int
	logger      *log.Logger
	verbose     bool
}

// FeedOptions contains configuration for creating a Feed.
type FeedOptions struct {
	Builder     *SessionBuilder
	Market      domain.Market
	From        time.Time
	To          time.Time
	Book        bool // subscribe to book snapshots and deltas
	Trades      bool // subscribe to trades
	Client      *http.Client
	MaxLineSize int
	Logger      *log.Logger
	Verbose     bool
}

// NewFeed creates a feed. The default client has no timeout: the service
// bounds the replay length, and a day of data can stream for a long time.
func NewFeed(opts FeedOptions) *Feed {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	maxLineSize := opts.MaxLineSize
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Feed{
		builder:     opts.Builder,
		market:      opts.Market,
		from:        opts.From,
		to:          opts.To,
		book:        opts.Book,
		trades:      opts.Trades,
		client:      client,
		maxLineSize: maxLineSize,
		logger:      logger,
		verbose:     opts.Verbose,
	}
}

// Channels returns the subscriptions requested by the feed.
func (f *Feed) Channels() []Channel {
	var channels []Channel
	if f.book {
		channels = append(channels, Channel{Name: ChannelBook, Market: f.market.Market})
	}
	if f.trades {
		channels = append(channels, Channel{Name: ChannelTrades, Market: f.market.Market})
	}
	return channels
}

// Window returns the session scope of the feed.
func (f *Feed) Window() Window {
	return Window{
		Exchange: f.market.Exchange,
		From:     f.from,
		To:       f.to,
		Filters:  BuildFilters(f.Channels()),
	}
}

// Run replays the window and returns every event in arrival order.
// On failure no events are returned.
func (f *Feed) Run(ctx context.Context) ([]*domain.Event, error) {
	c := &collector{}
	if err := f.Stream(ctx, c); err != nil {
		return nil, err
	}
	return c.events, nil
}

// Stream replays the window and hands each event to sink as soon as the line
// producing it has been read. Lines are processed strictly in order.
func (f *Feed) Stream(ctx context.Context, sink EventSink) error {
	channels := f.Channels()
	if len(channels) == 0 {
		return ErrNoChannels
	}

	url, err := f.builder.Endpoint(f.Window())
	if err != nil {
		return fmt.Errorf("build replay endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return f.fail(&StreamError{Err: fmt.Errorf("%w: %w", ErrTransport, err)})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return f.fail(&StreamError{Err: fmt.Errorf("%w: unexpected status %d: %s", ErrTransport, resp.StatusCode, string(body))})
	}

	d := newDispatcher(f.market.Market, f.from)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, f.maxLineSize)), f.maxLineSize)

	lines, emitted := 0, 0
	for scanner.Scan() {
		lines++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		observability.RecordReplayLine()

		msg, err := decodeLine(line)
		if err != nil {
			if errors.Is(err, ErrProtocol) {
				f.logger.Printf("Error: %v", err)
			}
			return f.fail(&StreamError{Line: lines, Err: err})
		}

		events, err := d.dispatch(msg)
		if err != nil {
			return f.fail(&StreamError{Line: lines, Err: err})
		}

		for _, ev := range events {
			if err := sink.OnEvent(ctx, ev); err != nil {
				return f.fail(&StreamError{Line: lines, Err: fmt.Errorf("%w: %w", ErrSink, err)})
			}
			observability.RecordReplayEvent(string(ev.Kind))
		}
		emitted += len(events)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return f.fail(&StreamError{Line: lines + 1, Err: fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedLine, f.maxLineSize)})
		}
		return f.fail(&StreamError{Line: lines, Err: fmt.Errorf("%w: read body: %w", ErrTransport, err)})
	}

	observability.RecordTradesDropped(d.tradesDropped)
	if f.verbose {
		f.logger.Printf("Replay %s/%s: %d lines, %d events, %d trades before window start, %v",
			f.market.Exchange, f.market.Market, lines, emitted, d.tradesDropped, time.Since(start))
	}

	return nil
}

func (f *Feed) fail(err error) error {
	observability.RecordFeedError(ErrorKind(err))
	return err
}
