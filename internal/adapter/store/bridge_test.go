package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reviewbot/internal/adapter/store/sqlite"
	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/review"
)

func TestBridgeSaveRun(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	bridge := NewBridge(s)
	defer bridge.Close()

	ctx := context.Background()
	run := review.Run{
		RunID:      "acme/widgets-7-abc",
		CreatedAt:  time.Now(),
		Repository: "acme/widgets",
		PRNumber:   7,
		HeadSHA:    "abc",
	}
	result := domain.ReviewResult{
		Summary:      "fine",
		LineComments: []domain.Finding{{Kind: domain.KindLine, File: "a.go", Line: 1, Position: 1, Message: "m"}},
	}
	require.NoError(t, bridge.SaveRun(ctx, run, result))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "acme/widgets-7-abc", runs[0].RunID)
	assert.Equal(t, 7, runs[0].PRNumber)
	assert.Equal(t, 1, runs[0].Findings)
	assert.Equal(t, "fine", runs[0].Summary)
}
