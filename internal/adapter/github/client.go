package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
)

const (
	providerName   = "github"
	apiVersion     = "2022-11-28"
	defaultTimeout = 30 * time.Second
)

// DiffFetcher retrieves pull request diffs in unified format.
type DiffFetcher struct {
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
}

// NewDiffFetcher constructs a fetcher with default timeout and retry
// settings.
func NewDiffFetcher() *DiffFetcher {
	return &DiffFetcher{
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf:  llmhttp.DefaultRetryConfig(),
	}
}

// SetTimeout overrides the HTTP client timeout.
func (f *DiffFetcher) SetTimeout(d time.Duration) {
	f.httpClient.Timeout = d
}

// FetchDiff downloads the unified diff at diffURL using the given
// installation token. Transient failures are retried with backoff.
func (f *DiffFetcher) FetchDiff(ctx context.Context, diffURL, token string) (string, error) {
	var diffText string

	err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, diffURL, nil)
		if reqErr != nil {
			return &llmhttp.Error{
				Type:     llmhttp.ErrTypeInvalidRequest,
				Message:  reqErr.Error(),
				Provider: providerName,
			}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github.v3.diff")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)

		resp, callErr := f.httpClient.Do(req)
		if callErr != nil {
			return llmhttp.NewTimeoutError(providerName, callErr.Error())
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read diff body: %w", readErr)
		}
		if resp.StatusCode != http.StatusOK {
			return llmhttp.FromStatusCode(providerName, resp.StatusCode, fmt.Sprintf("diff fetch returned HTTP %d", resp.StatusCode))
		}

		diffText = string(body)
		return nil
	}, f.retryConf)
	if err != nil {
		return "", fmt.Errorf("fetch diff from %s: %w", llmhttp.RedactURLSecrets(diffURL), err)
	}
	return diffText, nil
}
