package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
	"github.com/example/reviewbot/internal/diff"
	"github.com/example/reviewbot/internal/domain"
)

// Gateway is the outbound port to the LLM backend: send one prompt, get
// raw text back. Implementations return *llmhttp.Error for backend
// failures so the orchestrator can distinguish transient from hard ones.
type Gateway interface {
	Invoke(ctx context.Context, prompt string, modelHint string) (string, error)
}

// Redactor strips secret material from prompts before they leave the process.
type Redactor interface {
	Redact(input string) (string, error)
}

// ErrInitialStageFailed is returned when the initial analysis stage
// exhausts its retries. There is nothing to react to, so the whole run
// aborts without producing a partial result.
var ErrInitialStageFailed = errors.New("initial analysis stage failed")

// Config carries the run-scoped settings for the orchestrator. It is
// passed in at construction; the pipeline never reads configuration
// ambiently mid-run.
type Config struct {
	ModelID         string
	Guidelines      string
	MaxPromptTokens int
	MaxSnippets     int
	CallTimeout     time.Duration // per LLM call; exceeding it is a transient failure
	RunDeadline     time.Duration // whole-run budget; 0 means the caller's context governs
	Retry           llmhttp.RetryConfig
}

// Deps captures the orchestrator's collaborators.
type Deps struct {
	Gateway  Gateway
	Prompts  *PromptBuilder
	Redactor Redactor // optional
	Logger   Logger   // optional
}

// Request is one review invocation: the PR's diff plus optional
// knowledge snippets materialized by the retrieval layer.
type Request struct {
	PR       domain.PullRequest
	DiffText string
	Snippets []domain.Snippet
}

// Orchestrator drives the five-stage review protocol.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New wires an orchestrator. Missing optional dependencies get no-op or
// default implementations.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Prompts == nil {
		deps.Prompts = NewPromptBuilder(nil, cfg.MaxPromptTokens, cfg.MaxSnippets)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = llmhttp.DefaultRetryConfig()
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// stageSlot is the disjoint output slot for one concurrent analysis stage.
type stageSlot struct {
	findings []domain.Finding
	outcome  StageStatus
}

// Run executes the full protocol for one pull request and returns the
// assembled ReviewResult. Individual stage failures degrade the result;
// only an INITIAL failure aborts the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (domain.ReviewResult, error) {
	if o.deps.Gateway == nil {
		return domain.ReviewResult{}, errors.New("gateway is required")
	}

	if o.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunDeadline)
		defer cancel()
	}

	fs := diff.Parse(req.DiffText)
	for _, path := range fs.Skipped {
		o.deps.Logger.LogWarning(ctx, "malformed hunk header, file hunks skipped", map[string]interface{}{
			"pr":   req.PR.FullName(),
			"file": path,
		})
	}
	if fs.Empty() {
		o.deps.Logger.LogInfo(ctx, "diff has no hunks, skipping review", map[string]interface{}{
			"pr": req.PR.FullName(),
		})
		return domain.ReviewResult{Summary: "No reviewable changes in this diff."}, nil
	}
	positions := fs.Positions()

	m := newMachine()

	// Stage 1: initial analysis. The only stage whose failure is fatal.
	if err := m.start(StageInitial); err != nil {
		return domain.ReviewResult{}, err
	}
	prompt, err := o.deps.Prompts.InitialAnalysis(fs, o.cfg.Guidelines, req.Snippets)
	if err != nil {
		_ = m.finish(StageInitial, StatusFailed)
		return domain.ReviewResult{}, fmt.Errorf("%w: %v", ErrInitialStageFailed, err)
	}
	raw, err := o.invoke(ctx, StageInitial, prompt)
	if err != nil {
		_ = m.finish(StageInitial, StatusFailed)
		return domain.ReviewResult{}, fmt.Errorf("%w: %v", ErrInitialStageFailed, err)
	}
	candidates, dropped, parseErr := ParseCandidates(raw)
	if parseErr != nil {
		// Unparsable analysis degrades to empty candidates; the later
		// stages then have nothing to expand and produce empty output.
		o.deps.Logger.LogWarning(ctx, "initial analysis unparsable, continuing with no candidates", map[string]interface{}{
			"pr":    req.PR.FullName(),
			"error": parseErr.Error(),
		})
		candidates = Candidates{}
	}
	if dropped > 0 {
		o.deps.Logger.LogWarning(ctx, "dropped malformed analysis candidates", map[string]interface{}{
			"pr":      req.PR.FullName(),
			"dropped": dropped,
		})
	}
	if err := m.finish(StageInitial, StatusSucceeded); err != nil {
		return domain.ReviewResult{}, err
	}
	o.deps.Logger.LogInfo(ctx, "initial analysis complete", map[string]interface{}{
		"pr":                 req.PR.FullName(),
		"lineCandidates":     len(candidates.Lines),
		"topicCandidates":    len(candidates.Topics),
		"securityCandidates": len(candidates.Security),
	})

	// Stages 2-4 are independent of each other and fan out concurrently.
	// They share only read-only inputs and write to disjoint slots.
	var lineSlot, generalSlot, securitySlot stageSlot
	stages := []struct {
		stage Stage
		slot  *stageSlot
		run   func(context.Context) ([]domain.Finding, error)
	}{
		{StageLineComments, &lineSlot, func(ctx context.Context) ([]domain.Finding, error) {
			if len(candidates.Lines) == 0 {
				return nil, nil
			}
			prompt, err := o.deps.Prompts.LineComments(fs, o.cfg.Guidelines, candidates.Lines)
			if err != nil {
				return nil, err
			}
			raw, err := o.invoke(ctx, StageLineComments, prompt)
			if err != nil {
				return nil, err
			}
			return o.parseStage(ctx, req.PR, StageLineComments, raw, ParseLineComments)
		}},
		{StageGeneralComments, &generalSlot, func(ctx context.Context) ([]domain.Finding, error) {
			if len(candidates.Topics) == 0 {
				return nil, nil
			}
			prompt, err := o.deps.Prompts.GeneralComments(fs, o.cfg.Guidelines, candidates.Topics)
			if err != nil {
				return nil, err
			}
			raw, err := o.invoke(ctx, StageGeneralComments, prompt)
			if err != nil {
				return nil, err
			}
			return o.parseStage(ctx, req.PR, StageGeneralComments, raw, ParseGeneralComments)
		}},
		{StageSecurity, &securitySlot, func(ctx context.Context) ([]domain.Finding, error) {
			if len(candidates.Security) == 0 {
				return nil, nil
			}
			prompt, err := o.deps.Prompts.SecurityIssues(fs, o.cfg.Guidelines, candidates.Security)
			if err != nil {
				return nil, err
			}
			raw, err := o.invoke(ctx, StageSecurity, prompt)
			if err != nil {
				return nil, err
			}
			return o.parseStage(ctx, req.PR, StageSecurity, raw, ParseSecurityIssues)
		}},
	}

	var wg sync.WaitGroup
	for _, s := range stages {
		if err := m.start(s.stage); err != nil {
			return domain.ReviewResult{}, err
		}
		wg.Add(1)
		go func(stage Stage, slot *stageSlot, run func(context.Context) ([]domain.Finding, error)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slot.outcome = StatusSkipped
					o.deps.Logger.LogWarning(ctx, "stage panicked", map[string]interface{}{
						"stage": stage.String(),
						"panic": fmt.Sprintf("%v", r),
					})
				}
			}()
			findings, err := run(ctx)
			if err != nil {
				// Retry exhaustion or a hard backend error degrades the
				// stage; the run proceeds with whatever else succeeds.
				slot.outcome = StatusSkipped
				o.deps.Logger.LogWarning(ctx, "stage skipped", map[string]interface{}{
					"pr":    req.PR.FullName(),
					"stage": stage.String(),
					"error": err.Error(),
				})
				return
			}
			slot.findings = findings
			slot.outcome = StatusSucceeded
		}(s.stage, s.slot, s.run)
	}
	wg.Wait()
	for _, s := range stages {
		if err := m.finish(s.stage, s.slot.outcome); err != nil {
			return domain.ReviewResult{}, err
		}
	}

	// Stage 5: summary over everything produced so far. A summary failure
	// falls back to a counting sentence; the findings still ship.
	if err := m.start(StageSummary); err != nil {
		return domain.ReviewResult{}, err
	}
	summary, outcome := o.summarize(ctx, lineSlot.findings, generalSlot.findings, securitySlot.findings)
	if err := m.finish(StageSummary, outcome); err != nil {
		return domain.ReviewResult{}, err
	}

	result, report := Assemble(positions, summary, lineSlot.findings, generalSlot.findings, securitySlot.findings)
	o.deps.Logger.LogInfo(ctx, "review assembled", map[string]interface{}{
		"pr":              req.PR.FullName(),
		"lineComments":    len(result.LineComments),
		"generalComments": len(result.GeneralComments),
		"securityIssues":  len(result.SecurityIssues),
		"demoted":         report.Demoted,
		"duplicates":      report.Duplicates,
		"lineStage":       m.statusOf(StageLineComments).String(),
		"generalStage":    m.statusOf(StageGeneralComments).String(),
		"securityStage":   m.statusOf(StageSecurity).String(),
		"summaryStage":    m.statusOf(StageSummary).String(),
	})
	return result, nil
}

// summarize runs the summary stage, tolerating missing sections and
// falling back to a deterministic sentence when the call fails.
func (o *Orchestrator) summarize(ctx context.Context, line, general, security []domain.Finding) (string, StageStatus) {
	total := len(line) + len(general) + len(security)
	if total == 0 {
		return "Automated review found no issues in this change.", StatusSucceeded
	}

	fallback := fmt.Sprintf(
		"Automated review produced %d line comment(s), %d general comment(s), and %d security finding(s).",
		len(line), len(general), len(security))

	prompt, err := o.deps.Prompts.Summary(line, general, security)
	if err != nil {
		return fallback, StatusSkipped
	}
	raw, err := o.invoke(ctx, StageSummary, prompt)
	if err != nil || len(raw) == 0 {
		return fallback, StatusSkipped
	}
	return raw, StatusSucceeded
}

// parseStage decodes one stage's raw output leniently, degrading an
// unparsable response to empty findings.
func (o *Orchestrator) parseStage(
	ctx context.Context,
	pr domain.PullRequest,
	stage Stage,
	raw string,
	parse func(string) ([]domain.Finding, int, error),
) ([]domain.Finding, error) {
	findings, dropped, err := parse(raw)
	if err != nil {
		var unparsable *Unparsable
		if errors.As(err, &unparsable) {
			o.deps.Logger.LogWarning(ctx, "stage response unparsable, degrading to empty output", map[string]interface{}{
				"pr":    pr.FullName(),
				"stage": stage.String(),
				"error": unparsable.Reason,
			})
			return nil, nil
		}
		return nil, err
	}
	if dropped > 0 {
		o.deps.Logger.LogWarning(ctx, "dropped malformed stage findings", map[string]interface{}{
			"pr":      pr.FullName(),
			"stage":   stage.String(),
			"dropped": dropped,
		})
	}
	return findings, nil
}

// invoke sends one stage prompt through redaction and the retry policy.
// A per-call timeout maps to a transient error so it re-enters the retry
// loop; expiry of the overall run deadline does not retry.
func (o *Orchestrator) invoke(ctx context.Context, stage Stage, prompt string) (string, error) {
	if o.deps.Redactor != nil {
		redacted, err := o.deps.Redactor.Redact(prompt)
		if err != nil {
			return "", fmt.Errorf("redaction failed for stage %s: %w", stage, err)
		}
		prompt = redacted
	}

	o.deps.Logger.LogInfo(ctx, "stage started", map[string]interface{}{
		"stage":       stage.String(),
		"model":       o.cfg.ModelID,
		"promptChars": len(prompt),
	})

	var raw string
	start := time.Now()
	err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if o.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
			defer cancel()
		}
		text, err := o.deps.Gateway.Invoke(callCtx, prompt, o.cfg.ModelID)
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return llmhttp.NewTimeoutError("gateway", err.Error())
			}
			return err
		}
		raw = text
		return nil
	}, o.cfg.Retry)
	if err != nil {
		return "", err
	}

	o.deps.Logger.LogInfo(ctx, "stage response received", map[string]interface{}{
		"stage":    stage.String(),
		"duration": time.Since(start).String(),
		"excerpt":  llmhttp.TruncateForLogging(raw),
	})
	return raw, nil
}
