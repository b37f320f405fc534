package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reviewbot/internal/adapter/llm/static"
	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

const serviceDiff = `diff --git a/svc/handler.go b/svc/handler.go
--- a/svc/handler.go
+++ b/svc/handler.go
@@ -1,1 +1,2 @@
 package svc
+func a() {}
`

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) InstallationToken(_ context.Context, _ int64) (string, error) {
	return f.token, f.err
}

type fakeDiffs struct {
	diffText string
	err      error
	gotURL   string
	gotToken string
}

func (f *fakeDiffs) FetchDiff(_ context.Context, diffURL, token string) (string, error) {
	f.gotURL = diffURL
	f.gotToken = token
	return f.diffText, f.err
}

type fakeKnowledge struct {
	snippets []domain.Snippet
	err      error
	gotQuery domain.KnowledgeQuery
}

func (f *fakeKnowledge) Snippets(_ context.Context, q domain.KnowledgeQuery) ([]domain.Snippet, error) {
	f.gotQuery = q
	return f.snippets, f.err
}

type fakePoster struct {
	err      error
	gotToken string
	gotPR    domain.PullRequest
	result   domain.ReviewResult
	calls    int
}

func (f *fakePoster) PostReview(_ context.Context, token string, pr domain.PullRequest, result domain.ReviewResult) error {
	f.calls++
	f.gotToken = token
	f.gotPR = pr
	f.result = result
	return f.err
}

type fakeHistory struct {
	err    error
	run    Run
	result domain.ReviewResult
	calls  int
}

func (f *fakeHistory) SaveRun(_ context.Context, run Run, result domain.ReviewResult) error {
	f.calls++
	f.run = run
	f.result = result
	return f.err
}

func testOrchestrator() *pipeline.Orchestrator {
	gateway := static.NewGateway("{}").
		Respond("Do NOT write the full comment text yet", `{
			"potential_line_comments": [{"file": "svc/handler.go", "line": 2, "reason": "unused"}]
		}`).
		Respond("<identified_locations>", `[{"file": "svc/handler.go", "line": 2, "comment": "a is unused"}]`).
		Respond("<all_review_feedback>", "One unused function added.")
	return pipeline.New(pipeline.Config{ModelID: "m"}, pipeline.Deps{Gateway: gateway})
}

func servicePR() domain.PullRequest {
	return domain.PullRequest{
		Owner:          "acme",
		Repo:           "widgets",
		Number:         42,
		HeadSHA:        "abc123",
		DiffURL:        "https://github.com/acme/widgets/pull/42.diff",
		InstallationID: 7001,
	}
}

func TestReviewPullRequestHappyPath(t *testing.T) {
	tokens := &fakeTokens{token: "ghs_tok"}
	diffs := &fakeDiffs{diffText: serviceDiff}
	poster := &fakePoster{}
	history := &fakeHistory{}

	svc := NewService(tokens, diffs, testOrchestrator(), poster, Options{History: history})
	require.NoError(t, svc.ReviewPullRequest(context.Background(), servicePR()))

	assert.Equal(t, "https://github.com/acme/widgets/pull/42.diff", diffs.gotURL)
	assert.Equal(t, "ghs_tok", diffs.gotToken)
	assert.Equal(t, "ghs_tok", poster.gotToken)
	assert.Equal(t, 42, poster.gotPR.Number)
	require.Len(t, poster.result.LineComments, 1)
	assert.Equal(t, "a is unused", poster.result.LineComments[0].Message)
	assert.Equal(t, "One unused function added.", poster.result.Summary)

	require.Equal(t, 1, history.calls)
	assert.Equal(t, "acme/widgets-42-abc123", history.run.RunID)
	assert.Equal(t, "acme/widgets", history.run.Repository)
	assert.WithinDuration(t, time.Now(), history.run.CreatedAt, time.Minute)
	assert.Equal(t, poster.result, history.result)
}

func TestReviewPullRequestTokenFailure(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("app not installed")}
	svc := NewService(tokens, &fakeDiffs{}, testOrchestrator(), &fakePoster{}, Options{})

	err := svc.ReviewPullRequest(context.Background(), servicePR())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "installation token")
}

func TestReviewPullRequestDiffFailure(t *testing.T) {
	diffs := &fakeDiffs{err: errors.New("diff gone")}
	poster := &fakePoster{}
	svc := NewService(&fakeTokens{token: "t"}, diffs, testOrchestrator(), poster, Options{})

	err := svc.ReviewPullRequest(context.Background(), servicePR())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch diff")
	assert.Zero(t, poster.calls)
}

func TestReviewPullRequestQueriesKnowledgeWithDiff(t *testing.T) {
	knowledge := &fakeKnowledge{}
	svc := NewService(&fakeTokens{token: "t"}, &fakeDiffs{diffText: serviceDiff}, testOrchestrator(), &fakePoster{},
		Options{Knowledge: knowledge, KnowledgePrefix: "kb/"})

	require.NoError(t, svc.ReviewPullRequest(context.Background(), servicePR()))
	assert.Equal(t, "kb/", knowledge.gotQuery.Prefix)
	assert.Equal(t, serviceDiff, knowledge.gotQuery.Diff)
}

func TestReviewPullRequestKnowledgeFailureDegrades(t *testing.T) {
	knowledge := &fakeKnowledge{err: errors.New("bucket gone")}
	poster := &fakePoster{}
	svc := NewService(&fakeTokens{token: "t"}, &fakeDiffs{diffText: serviceDiff}, testOrchestrator(), poster,
		Options{Knowledge: knowledge, KnowledgePrefix: "kb/"})

	require.NoError(t, svc.ReviewPullRequest(context.Background(), servicePR()))
	assert.Equal(t, 1, poster.calls, "review proceeds without snippets")
}

func TestReviewPullRequestPosterFailure(t *testing.T) {
	poster := &fakePoster{err: errors.New("403")}
	svc := NewService(&fakeTokens{token: "t"}, &fakeDiffs{diffText: serviceDiff}, testOrchestrator(), poster, Options{})

	err := svc.ReviewPullRequest(context.Background(), servicePR())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post review")
}

func TestReviewPullRequestHistoryFailureIsIgnored(t *testing.T) {
	history := &fakeHistory{err: errors.New("disk full")}
	svc := NewService(&fakeTokens{token: "t"}, &fakeDiffs{diffText: serviceDiff}, testOrchestrator(), &fakePoster{},
		Options{History: history})

	require.NoError(t, svc.ReviewPullRequest(context.Background(), servicePR()))
	assert.Equal(t, 1, history.calls)
}

type fakeEngine struct {
	diffText string
	diffErr  error
	branch   string
	gotBase  string
	gotRef   string
}

func (f *fakeEngine) DiffText(_ context.Context, baseRef, targetRef string) (string, error) {
	f.gotBase = baseRef
	f.gotRef = targetRef
	return f.diffText, f.diffErr
}

func (f *fakeEngine) CurrentBranch() (string, error) {
	return f.branch, nil
}

func TestLocalReviewBranch(t *testing.T) {
	engine := &fakeEngine{diffText: serviceDiff, branch: "feature/x"}
	local := NewLocal(engine, testOrchestrator())

	result, err := local.ReviewBranch(context.Background(), "main", "feature/x")
	require.NoError(t, err)
	assert.Equal(t, "main", engine.gotBase)
	assert.Equal(t, "feature/x", engine.gotRef)
	assert.Len(t, result.LineComments, 1)

	branch, err := local.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature/x", branch)
}

func TestLocalReviewBranchDiffFailure(t *testing.T) {
	engine := &fakeEngine{diffErr: errors.New("unknown revision")}
	local := NewLocal(engine, testOrchestrator())

	_, err := local.ReviewBranch(context.Background(), "main", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute diff")
}
