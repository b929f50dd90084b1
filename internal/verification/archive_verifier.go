package verification

import (
	"context"
	"errors"
	"fmt"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// ErrRunNotArchived is returned when the run has no archive entry.
var ErrRunNotArchived = errors.New("run not archived")

// ArchiveVerifier reads runs back from an archive store.
type ArchiveVerifier struct {
	store storage.ArchiveStore
}

// NewArchiveVerifier creates a new ArchiveVerifier.
func NewArchiveVerifier(store storage.ArchiveStore) *ArchiveVerifier {
	return &ArchiveVerifier{store: store}
}

// VerifyRun compares the streamed events of run with the archived copy.
func (v *ArchiveVerifier) VerifyRun(ctx context.Context, run domain.RunKey, streamed []*domain.Event) (*VerificationResult, error) {
	stored, err := v.store.GetByRun(ctx, run)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotArchived
		}
		return nil, fmt.Errorf("read back %s: %w", run, err)
	}

	divergences := CompareEvents(streamed, stored)
	return &VerificationResult{
		Run:         run,
		Match:       len(divergences) == 0,
		Events:      len(streamed),
		Divergences: divergences,
	}, nil
}
