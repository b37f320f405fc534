package review

import (
	"context"
	"fmt"

	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

// DiffEngine computes local diffs between refs.
type DiffEngine interface {
	DiffText(ctx context.Context, baseRef, targetRef string) (string, error)
	CurrentBranch() (string, error)
}

// Local reviews a branch of a local repository without touching GitHub.
type Local struct {
	engine       DiffEngine
	orchestrator *pipeline.Orchestrator
}

// NewLocal wires a local reviewer.
func NewLocal(engine DiffEngine, orchestrator *pipeline.Orchestrator) *Local {
	return &Local{engine: engine, orchestrator: orchestrator}
}

// ReviewBranch diffs baseRef..targetRef and runs the analysis pipeline
// over the result.
func (l *Local) ReviewBranch(ctx context.Context, baseRef, targetRef string) (domain.ReviewResult, error) {
	diffText, err := l.engine.DiffText(ctx, baseRef, targetRef)
	if err != nil {
		return domain.ReviewResult{}, fmt.Errorf("compute diff: %w", err)
	}
	return l.orchestrator.Run(ctx, pipeline.Request{DiffText: diffText})
}

// CurrentBranch returns the checked-out branch for target detection.
func (l *Local) CurrentBranch() (string, error) {
	return l.engine.CurrentBranch()
}
