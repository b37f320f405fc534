// Package store bridges the review use case's history port to the
// sqlite store, keeping the use case free of adapter imports.
package store

import (
	"context"

	"github.com/example/reviewbot/internal/adapter/store/sqlite"
	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/review"
)

// Bridge adapts *sqlite.Store to the review.History interface.
type Bridge struct {
	store *sqlite.Store
}

// NewBridge wraps a sqlite store.
func NewBridge(s *sqlite.Store) *Bridge {
	return &Bridge{store: s}
}

// SaveRun converts and persists one run record.
func (b *Bridge) SaveRun(ctx context.Context, run review.Run, result domain.ReviewResult) error {
	return b.store.SaveRun(ctx, sqlite.Run{
		RunID:      run.RunID,
		CreatedAt:  run.CreatedAt,
		Repository: run.Repository,
		PRNumber:   run.PRNumber,
		HeadSHA:    run.HeadSHA,
	}, result)
}

// Close closes the underlying store.
func (b *Bridge) Close() error {
	return b.store.Close()
}
