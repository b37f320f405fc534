package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

const testSecret = "test-secret"

type fakeReviewService struct {
	pr  domain.PullRequest
	err error
	n   int
}

func (f *fakeReviewService) ReviewPullRequest(_ context.Context, pr domain.PullRequest) error {
	f.n++
	f.pr = pr
	return f.err
}

func newTestServer(reviews ReviewService, checks map[string]HealthCheck) *Server {
	return New(reviews, testSecret, "ai-review-bots", checks, pipeline.NopLogger())
}

func signPayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func prPayload(action string) []byte {
	return []byte(fmt.Sprintf(`{
		"action": %q,
		"number": 5,
		"pull_request": {
			"number": 5,
			"diff_url": "https://github.com/acme/widgets/pull/5.diff",
			"head": {"sha": "deadbeef", "ref": "feature"},
			"base": {"ref": "main", "repo": {"name": "widgets", "owner": {"login": "acme"}}}
		},
		"installation": {"id": 1}
	}`, action))
}

func postWebhook(t *testing.T, handler http.Handler, event string, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWebhookTriggersReview(t *testing.T) {
	reviews := &fakeReviewService{}
	handler := newTestServer(reviews, nil).Handler()

	payload := prPayload("opened")
	rec := postWebhook(t, handler, "pull_request", payload, signPayload(payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reviewed", decodeBody(t, rec)["status"])
	assert.Equal(t, 1, reviews.n)
	assert.Equal(t, "acme/widgets", reviews.pr.FullName())
	assert.Equal(t, 5, reviews.pr.Number)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	reviews := &fakeReviewService{}
	handler := newTestServer(reviews, nil).Handler()

	rec := postWebhook(t, handler, "pull_request", prPayload("opened"), "sha256=bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, reviews.n)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	reviews := &fakeReviewService{}
	handler := newTestServer(reviews, nil).Handler()

	payload := []byte(`{"action": "opened"}`)
	rec := postWebhook(t, handler, "pull_request", payload, signPayload(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, reviews.n)
}

func TestWebhookIgnoresOtherEventsWithValidSignature(t *testing.T) {
	reviews := &fakeReviewService{}
	handler := newTestServer(reviews, nil).Handler()

	payload := []byte(`{"zen": "Keep it logically awesome."}`)
	rec := postWebhook(t, handler, "ping", payload, signPayload(payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])
	assert.Zero(t, reviews.n)
}

func TestWebhookRejectsOtherEventsWithBadSignature(t *testing.T) {
	handler := newTestServer(&fakeReviewService{}, nil).Handler()
	rec := postWebhook(t, handler, "ping", []byte(`{}`), "sha256=bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookIgnoresNonReviewableActions(t *testing.T) {
	reviews := &fakeReviewService{}
	handler := newTestServer(reviews, nil).Handler()

	payload := prPayload("closed")
	rec := postWebhook(t, handler, "pull_request", payload, signPayload(payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])
	assert.Zero(t, reviews.n)
}

func TestWebhookReviewFailureIsServerError(t *testing.T) {
	reviews := &fakeReviewService{err: errors.New("backend down")}
	handler := newTestServer(reviews, nil).Handler()

	payload := prPayload("synchronize")
	rec := postWebhook(t, handler, "pull_request", payload, signPayload(payload))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "review failed", decodeBody(t, rec)["error"])
}

func TestHealthReportsServiceStatuses(t *testing.T) {
	checks := map[string]HealthCheck{
		"github_api": func(ctx context.Context) string { return "reachable" },
		"bedrock":    func(ctx context.Context) string { return "unreachable (status: 503)" },
	}
	handler := newTestServer(&fakeReviewService{}, checks).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "warning", body.Status)
	assert.Equal(t, "reachable", body.Services["github_api"])
}

func TestHealthAllReachable(t *testing.T) {
	checks := map[string]HealthCheck{
		"github_api": func(ctx context.Context) string { return "reachable" },
	}
	handler := newTestServer(&fakeReviewService{}, checks).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}
