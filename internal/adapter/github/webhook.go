// Package github integrates with the GitHub API: webhook intake, App
// authentication, diff retrieval, and review posting.
package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/reviewbot/internal/domain"
)

// Webhook errors distinguish rejection (bad signature) from malformed
// payloads so the server can map them to 401 vs 400.
var (
	ErrBadSignature = fmt.Errorf("webhook signature mismatch")
	ErrBadPayload   = fmt.Errorf("malformed webhook payload")
)

// reviewableActions are the pull_request actions that trigger a review.
var reviewableActions = map[string]bool{
	"opened":           true,
	"reopened":         true,
	"synchronize":      true,
	"review_requested": true,
}

// ValidateSignature checks an X-Hub-Signature-256 header value against
// the HMAC-SHA256 of the payload under the shared secret.
func ValidateSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	scheme, digest, found := strings.Cut(signature, "=")
	if !found || scheme != "sha256" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(digest))
}

// pullRequestEvent mirrors the fields of a pull_request webhook payload
// the dispatcher needs.
type pullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number  int    `json:"number"`
		DiffURL string `json:"diff_url"`
		Head    struct {
			SHA string `json:"sha"`
			Ref string `json:"ref"`
		} `json:"head"`
		Base struct {
			Ref  string `json:"ref"`
			Repo struct {
				Name  string `json:"name"`
				Owner struct {
					Login string `json:"login"`
				} `json:"owner"`
			} `json:"repo"`
		} `json:"base"`
	} `json:"pull_request"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	RequestedTeam *struct {
		Slug string `json:"slug"`
	} `json:"requested_team"`
	RequestedTeams []struct {
		Slug string `json:"slug"`
	} `json:"requested_teams"`
}

// ParsePullRequestEvent validates the signature and decodes a
// pull_request event into a domain.PullRequest. It returns ok=false
// without error for events that should be ignored: non-reviewable
// actions, or review_requested events not addressed to triggerTeam.
func ParsePullRequestEvent(payload []byte, signature, secret, triggerTeam string) (domain.PullRequest, bool, error) {
	if !ValidateSignature(payload, signature, secret) {
		return domain.PullRequest{}, false, ErrBadSignature
	}

	var event pullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.PullRequest{}, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if event.PullRequest.DiffURL == "" || event.PullRequest.Base.Repo.Owner.Login == "" {
		return domain.PullRequest{}, false, fmt.Errorf("%w: missing pull_request fields", ErrBadPayload)
	}

	if !reviewableActions[event.Action] {
		return domain.PullRequest{}, false, nil
	}
	if event.Action == "review_requested" && triggerTeam != "" && !teamRequested(event, triggerTeam) {
		return domain.PullRequest{}, false, nil
	}

	number := event.PullRequest.Number
	if number == 0 {
		number = event.Number
	}
	pr := domain.PullRequest{
		Owner:          event.PullRequest.Base.Repo.Owner.Login,
		Repo:           event.PullRequest.Base.Repo.Name,
		Number:         number,
		HeadSHA:        event.PullRequest.Head.SHA,
		BaseRef:        event.PullRequest.Base.Ref,
		HeadRef:        event.PullRequest.Head.Ref,
		DiffURL:        event.PullRequest.DiffURL,
		InstallationID: event.Installation.ID,
	}
	return pr, true, nil
}

func teamRequested(event pullRequestEvent, slug string) bool {
	if event.RequestedTeam != nil && event.RequestedTeam.Slug == slug {
		return true
	}
	for _, team := range event.RequestedTeams {
		if team.Slug == slug {
			return true
		}
	}
	return false
}
