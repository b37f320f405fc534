// Package review coordinates one pull request review end to end:
// authentication, diff retrieval, knowledge loading, the analysis
// pipeline, and posting results back to GitHub.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

// TokenSource mints installation access tokens.
type TokenSource interface {
	InstallationToken(ctx context.Context, installationID int64) (string, error)
}

// DiffSource fetches a pull request's unified diff.
type DiffSource interface {
	FetchDiff(ctx context.Context, diffURL, token string) (string, error)
}

// KnowledgeSource loads project context snippets for the change under
// review.
type KnowledgeSource interface {
	Snippets(ctx context.Context, q domain.KnowledgeQuery) ([]domain.Snippet, error)
}

// Poster publishes a review result to the pull request.
type Poster interface {
	PostReview(ctx context.Context, token string, pr domain.PullRequest, result domain.ReviewResult) error
}

// Run identifies one completed review for the history store.
type Run struct {
	RunID      string
	CreatedAt  time.Time
	Repository string
	PRNumber   int
	HeadSHA    string
}

// History records completed runs. Implementations are best-effort.
type History interface {
	SaveRun(ctx context.Context, run Run, result domain.ReviewResult) error
}

// Service implements the webhook review flow.
type Service struct {
	tokens          TokenSource
	diffs           DiffSource
	knowledge       KnowledgeSource
	orchestrator    *pipeline.Orchestrator
	poster          Poster
	history         History
	knowledgePrefix string
	logger          pipeline.Logger
}

// Options carries the optional collaborators.
type Options struct {
	Knowledge       KnowledgeSource
	KnowledgePrefix string
	History         History
	Logger          pipeline.Logger
}

// NewService wires the required collaborators; optional ones come via
// opts.
func NewService(tokens TokenSource, diffs DiffSource, orchestrator *pipeline.Orchestrator, poster Poster, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = pipeline.NopLogger()
	}
	return &Service{
		tokens:          tokens,
		diffs:           diffs,
		knowledge:       opts.Knowledge,
		orchestrator:    orchestrator,
		poster:          poster,
		history:         opts.History,
		knowledgePrefix: opts.KnowledgePrefix,
		logger:          logger,
	}
}

// ReviewPullRequest runs the full flow for one pull request. Knowledge
// base failures degrade to an empty snippet list; history failures are
// logged and ignored. Pipeline and posting failures are returned.
func (s *Service) ReviewPullRequest(ctx context.Context, pr domain.PullRequest) error {
	token, err := s.tokens.InstallationToken(ctx, pr.InstallationID)
	if err != nil {
		return fmt.Errorf("installation token: %w", err)
	}

	diffText, err := s.diffs.FetchDiff(ctx, pr.DiffURL, token)
	if err != nil {
		return fmt.Errorf("fetch diff: %w", err)
	}

	var snippets []domain.Snippet
	if s.knowledge != nil {
		snippets, err = s.knowledge.Snippets(ctx, domain.KnowledgeQuery{
			Prefix: s.knowledgePrefix,
			Diff:   diffText,
		})
		if err != nil {
			s.logger.LogWarning(ctx, "knowledge base unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			snippets = nil
		}
	}

	result, err := s.orchestrator.Run(ctx, pipeline.Request{
		PR:       pr,
		DiffText: diffText,
		Snippets: snippets,
	})
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	if err := s.poster.PostReview(ctx, token, pr, result); err != nil {
		return fmt.Errorf("post review: %w", err)
	}

	if s.history != nil {
		run := Run{
			RunID:      fmt.Sprintf("%s-%d-%s", pr.FullName(), pr.Number, pr.HeadSHA),
			CreatedAt:  time.Now(),
			Repository: pr.FullName(),
			PRNumber:   pr.Number,
			HeadSHA:    pr.HeadSHA,
		}
		if err := s.history.SaveRun(ctx, run, result); err != nil {
			s.logger.LogWarning(ctx, "history write failed", map[string]interface{}{
				"run_id": run.RunID,
				"error":  err.Error(),
			})
		}
	}
	return nil
}
