// Package main provides the market data archiver entry point.
// Plans (market, day) runs, replays each one and archives the events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketdata-archiver/internal/config"
	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/markets"
	"marketdata-archiver/internal/observability"
	"marketdata-archiver/internal/orchestrator"
	"marketdata-archiver/internal/replay"
	"marketdata-archiver/internal/storage"
	chstore "marketdata-archiver/internal/storage/clickhouse"
	"marketdata-archiver/internal/storage/memory"
	"marketdata-archiver/internal/storage/migrations"
	pgstore "marketdata-archiver/internal/storage/postgres"
)

func main() {
	// Parse flags
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse and PostgreSQL")
	dryRun := flag.Bool("dry-run", false, "Plan runs and exit without replaying")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[archive] ", log.LstdFlags)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	logger.Printf("exchanges=%v | markets_filter=%v | archive_dates=%s",
		cfg.Exchanges, cfg.MarketsFilter, cfg.ArchiveDates)

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" && !*dryRun {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, cancelling runs...", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	code, err := run(ctx, logger, cfg, *useMemory, *dryRun)
	close(done)
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Println("Cancelled")
		} else {
			logger.Printf("Error: %v", err)
		}
		os.Exit(1)
	}
	os.Exit(code)
}

// stores groups the storage backends used by a run.
type stores struct {
	archive     storage.ArchiveStore
	archiveName string
	markets     storage.MarketStore
	runs        storage.RunStore
	close       func()
}

// openStores connects to ClickHouse and PostgreSQL and applies migrations,
// or returns in-memory stores.
func openStores(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) (*stores, error) {
	if useMemory {
		logger.Println("Using in-memory storage")
		return &stores{
			archive:     memory.NewArchiveStore(),
			archiveName: "memory",
			markets:     memory.NewMarketStore(),
			runs:        memory.NewRunStore(),
			close:       func() {},
		}, nil
	}

	// Require DSNs unless --use-memory is explicitly set
	if cfg.ClickHouseDSN == "" || cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("CLICKHOUSE_DSN and POSTGRES_DSN are required (use --use-memory for in-memory storage)")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	return &stores{
		archive:     chstore.NewArchiveStore(conn),
		archiveName: "clickhouse",
		markets:     pgstore.NewMarketStore(pool),
		runs:        pgstore.NewRunStore(pool),
		close: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

// run plans and executes the archive runs. Returns exit code 1 when any
// run failed.
func run(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory, dryRun bool) (int, error) {
	st, err := openStores(ctx, logger, cfg, useMemory)
	if err != nil {
		return 1, err
	}
	defer st.close()

	filter := markets.Filter(cfg.MarketsFilter)

	// Explicitly filtered markets are added to the registry when missing.
	if !filter.All() {
		configured, err := (&markets.ConfigSource{Exchanges: cfg.Exchanges, Filter: filter}).List(ctx)
		if err != nil {
			return 1, err
		}
		added, err := markets.Register(ctx, st.markets, configured)
		if err != nil {
			return 1, err
		}
		if added > 0 {
			logger.Printf("Registered %d configured markets", added)
		}
	}

	source := &markets.StoreSource{Store: st.markets, Exchanges: cfg.Exchanges, Filter: filter}
	candidates, err := source.List(ctx)
	if err != nil {
		return 1, fmt.Errorf("list markets: %w", err)
	}

	dates, err := domain.ParseRunDates(cfg.ArchiveDates, time.Now())
	if err != nil {
		return 1, err
	}

	runs := orchestrator.PlanRuns(candidates, dates, filter)
	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.String()
	}
	logger.Printf("Will run: %s", strings.Join(names, ", "))

	if dryRun {
		return 0, nil
	}

	orch := orchestrator.New(orchestrator.Options{
		Builder:      replay.NewSessionBuilder(cfg.ReplayEndpoint),
		ArchiveStore: st.archive,
		RunStore:     st.runs,
		ArchiveName:  st.archiveName,
		Verify:       cfg.ArchiveVerify,
		MaxLineSize:  cfg.ReplayMaxLineBytes,
		Concurrency:  cfg.RunConcurrency,
		Logger:       logger,
		Verbose:      cfg.Verbose(),
	})

	result, err := orch.Run(ctx, runs)
	if result != nil {
		logger.Println(result.Summary())
	}
	if err != nil {
		return 1, err
	}
	if result.Errors > 0 {
		return 1, nil
	}
	return 0, nil
}
