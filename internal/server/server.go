// Package server exposes the webhook and health HTTP endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	ghadapter "github.com/example/reviewbot/internal/adapter/github"
	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

// maxPayloadBytes bounds webhook bodies; GitHub caps payloads at 25MB.
const maxPayloadBytes = 25 << 20

// ReviewService runs a full review of a pull request and posts the
// result back to GitHub.
type ReviewService interface {
	ReviewPullRequest(ctx context.Context, pr domain.PullRequest) error
}

// HealthCheck probes one dependency and returns a short status string,
// "reachable" when healthy.
type HealthCheck func(ctx context.Context) string

// Server handles webhook deliveries and health probes.
type Server struct {
	reviews       ReviewService
	webhookSecret string
	triggerTeam   string
	checks        map[string]HealthCheck
	logger        pipeline.Logger
}

// New constructs a Server. checks maps service names to their probes
// and may be nil.
func New(reviews ReviewService, webhookSecret, triggerTeam string, checks map[string]HealthCheck, logger pipeline.Logger) *Server {
	return &Server{
		reviews:       reviews,
		webhookSecret: webhookSecret,
		triggerTeam:   triggerTeam,
		checks:        checks,
		logger:        logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if event := r.Header.Get("X-GitHub-Event"); event != "pull_request" {
		if !ghadapter.ValidateSignature(payload, r.Header.Get("X-Hub-Signature-256"), s.webhookSecret) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unsupported event"})
		return
	}

	pr, ok, err := ghadapter.ParsePullRequestEvent(payload, r.Header.Get("X-Hub-Signature-256"), s.webhookSecret, s.triggerTeam)
	if err != nil {
		if errors.Is(err, ghadapter.ErrBadSignature) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	s.logger.LogInfo(r.Context(), "webhook accepted", map[string]interface{}{
		"repo": pr.FullName(),
		"pr":   pr.Number,
	})

	if err := s.reviews.ReviewPullRequest(r.Context(), pr); err != nil {
		s.logger.LogWarning(r.Context(), "review failed", map[string]interface{}{
			"repo":  pr.FullName(),
			"pr":    pr.Number,
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "review failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reviewed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string, len(s.checks))
	overall := "ok"
	for name, check := range s.checks {
		status := check(ctx)
		services[name] = status
		if status != "reachable" {
			overall = "warning"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   overall,
		"services": services,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// GitHubHealthCheck probes the GitHub API root.
func GitHubHealthCheck(client *http.Client) HealthCheck {
	return func(ctx context.Context) string {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/", nil)
		if err != nil {
			return "unreachable (error: " + err.Error() + ")"
		}
		resp, err := client.Do(req)
		if err != nil {
			return "unreachable (error: " + err.Error() + ")"
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return "reachable"
		}
		return "unreachable (status: " + resp.Status + ")"
	}
}
