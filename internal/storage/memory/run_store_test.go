package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	started := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)
	records := []*domain.RunRecord{
		{RunID: "b", Exchange: testRun.Exchange, Market: testRun.Market, Date: testRun.Date, Status: domain.RunStatusSuccess, EventCount: 3, StartedAt: started.Add(time.Minute)},
		{RunID: "a", Exchange: testRun.Exchange, Market: testRun.Market, Date: testRun.Date, Status: domain.RunStatusError, Error: "transport", StartedAt: started},
		{RunID: "c", Exchange: testRun.Exchange, Market: "ETH_USDT", Date: testRun.Date, Status: domain.RunStatusSkipped, StartedAt: started},
	}
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByRunKey(ctx, testRun)
	if err != nil {
		t.Fatalf("GetByRunKey failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}
	if got[0].RunID != "a" || got[1].RunID != "b" {
		t.Errorf("Unexpected order: %s, %s", got[0].RunID, got[1].RunID)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 records, got %d", len(all))
	}
}

func TestRunStore_DuplicateKey(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	r := &domain.RunRecord{RunID: "run-1", Exchange: "gate-io", Market: "BTC_USDT", Date: testRun.Date, Status: domain.RunStatusSuccess}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, r)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
