// Package orchestrator plans and executes archive runs.
// Each run replays one market for one UTC day and archives the events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/observability"
	"marketdata-archiver/internal/replay"
	"marketdata-archiver/internal/storage"
	"marketdata-archiver/internal/verification"
)

// Skip reasons recorded on SKIPPED runs.
const (
	ReasonNoInstrument    = "no local instrument mapping"
	ReasonAlreadyArchived = "already archived"
)

// Orchestrator executes archive runs.
type Orchestrator struct {
	builder      *replay.SessionBuilder
	archiveStore storage.ArchiveStore
	runStore     storage.RunStore
	archiveName  string
	verifier     *verification.ArchiveVerifier
	client       *http.Client
	maxLineSize  int
	concurrency  int
	now          func() time.Time
	logger       *log.Logger
	verbose      bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Builder      *replay.SessionBuilder
	ArchiveStore storage.ArchiveStore
	RunStore     storage.RunStore

	// ArchiveName labels archive write metrics, e.g. "clickhouse".
	ArchiveName string

	// Verify reads every archived run back and compares it with the stream.
	Verify bool

	// Replay transport
	Client      *http.Client
	MaxLineSize int

	// Concurrency bounds the number of runs in flight. Defaults to 1.
	Concurrency int

	Now     func() time.Time
	Logger  *log.Logger
	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	archiveName := opts.ArchiveName
	if archiveName == "" {
		archiveName = "default"
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var verifier *verification.ArchiveVerifier
	if opts.Verify {
		verifier = verification.NewArchiveVerifier(opts.ArchiveStore)
	}

	return &Orchestrator{
		builder:      opts.Builder,
		archiveStore: opts.ArchiveStore,
		runStore:     opts.RunStore,
		archiveName:  archiveName,
		verifier:     verifier,
		client:       opts.Client,
		maxLineSize:  opts.MaxLineSize,
		concurrency:  concurrency,
		now:          now,
		logger:       logger,
		verbose:      opts.Verbose,
	}
}

// RunResult contains the outcome of every executed run, in request order.
type RunResult struct {
	Records []*domain.RunRecord
	Success int
	Errors  int
	Skipped int
}

// Summary renders the success and error counts.
func (r *RunResult) Summary() string {
	return fmt.Sprintf("success=%d errors=%d", r.Success, r.Errors)
}

// Run executes runs with bounded concurrency. A failing run is recorded as
// ERROR and does not stop the others. Returns an error only when the run
// ledger cannot be written or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, runs []domain.RunRequest) (*RunResult, error) {
	records := make([]*domain.RunRecord, len(runs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, req := range runs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			record := o.execute(gctx, req)
			if err := o.runStore.Insert(context.WithoutCancel(gctx), record); err != nil {
				return fmt.Errorf("record run %s: %w", req, err)
			}
			observability.RecordRun(string(record.Status),
				record.FinishedAt.Sub(record.StartedAt).Seconds(), record.FinishedAt.Unix())
			records[i] = record
			return nil
		})
	}

	err := g.Wait()

	result := &RunResult{}
	for _, record := range records {
		if record == nil {
			continue
		}
		result.Records = append(result.Records, record)
		switch record.Status {
		case domain.RunStatusSuccess:
			result.Success++
		case domain.RunStatusError:
			result.Errors++
		case domain.RunStatusSkipped:
			result.Skipped++
		}
	}

	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// execute performs one run and returns its ledger record.
func (o *Orchestrator) execute(ctx context.Context, req domain.RunRequest) *domain.RunRecord {
	key := req.Key()
	record := &domain.RunRecord{
		RunID:     uuid.NewString(),
		Exchange:  key.Exchange,
		Market:    key.Market,
		Date:      key.Date,
		StartedAt: o.now().UTC(),
	}
	finish := func(status domain.RunStatus, detail string) *domain.RunRecord {
		record.Status = status
		record.Error = detail
		record.FinishedAt = o.now().UTC()
		return record
	}

	o.logger.Printf("Starting %s archive generation.", req)

	if req.Market.Instrument == "" {
		o.logger.Printf("Warning: %s does not have a local instrument mapping.", req.Market.Market)
		return finish(domain.RunStatusSkipped, ReasonNoInstrument)
	}

	exists, err := o.archiveStore.HasRun(ctx, key)
	if err != nil {
		o.logger.Printf("Error: check archive for %s: %v", req, err)
		return finish(domain.RunStatusError, fmt.Sprintf("check archive: %v", err))
	}
	if exists {
		o.logger.Printf("Skipping %s: %s.", req, ReasonAlreadyArchived)
		return finish(domain.RunStatusSkipped, ReasonAlreadyArchived)
	}

	from, to := req.Window()
	feed := replay.NewFeed(replay.FeedOptions{
		Builder:     o.builder,
		Market:      req.Market,
		From:        from,
		To:          to,
		Book:        true,
		Trades:      true,
		Client:      o.client,
		MaxLineSize: o.maxLineSize,
		Logger:      o.logger,
		Verbose:     o.verbose,
	})

	events, err := feed.Run(ctx)
	if err != nil {
		o.logger.Printf("Error: replay %s: %v", req, err)
		return finish(domain.RunStatusError, err.Error())
	}

	start := time.Now()
	err = o.archiveStore.WriteRun(ctx, key, events)
	if err == nil {
		observability.RecordArchiveWrite(o.archiveName, len(events), time.Since(start).Seconds())
	}
	if errors.Is(err, storage.ErrDuplicateKey) {
		o.logger.Printf("Skipping %s: %s.", req, ReasonAlreadyArchived)
		return finish(domain.RunStatusSkipped, ReasonAlreadyArchived)
	}
	if err != nil {
		o.logger.Printf("Error: archive %s: %v", req, err)
		return finish(domain.RunStatusError, fmt.Sprintf("write archive: %v", err))
	}

	if o.verifier != nil {
		result, err := o.verifier.VerifyRun(ctx, key, events)
		if err != nil {
			o.logger.Printf("Error: verify %s: %v", req, err)
			return finish(domain.RunStatusError, fmt.Sprintf("verify archive: %v", err))
		}
		if !result.Match {
			o.logger.Printf("Error: %s archive diverges from stream: %v", req, result.Divergences[0])
			return finish(domain.RunStatusError, fmt.Sprintf("archive diverges from stream: %d divergences, first: %v",
				len(result.Divergences), result.Divergences[0]))
		}
		if o.verbose {
			o.logger.Printf("Verified %s: %d events match", req, result.Events)
		}
	}

	record.EventCount = len(events)
	o.logger.Printf("Finished %s: %d events archived.", req, len(events))
	return finish(domain.RunStatusSuccess, "")
}
