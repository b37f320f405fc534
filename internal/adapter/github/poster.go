package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/example/reviewbot/internal/domain"
)

const inlineReviewBody = "Automated review: see inline comments for detailed code-level feedback."

// Poster publishes review results to a pull request: one review with
// position-anchored inline comments plus one issue comment carrying the
// summary, security issues, and general comments.
type Poster struct {
	baseURL string
}

// NewPoster constructs a Poster against the public GitHub API.
func NewPoster() *Poster {
	return &Poster{}
}

// SetBaseURL points the poster at a custom API endpoint (tests,
// GitHub Enterprise).
func (p *Poster) SetBaseURL(url string) {
	p.baseURL = url
}

func (p *Poster) client(ctx context.Context, token string) (*gh.Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := gh.NewClient(httpClient)
	if p.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(p.baseURL, p.baseURL)
		if err != nil {
			return nil, fmt.Errorf("configure api endpoint: %w", err)
		}
	}
	return client, nil
}

// PostReview publishes the result to the pull request. Inline posting
// failures degrade to a warning in the summary comment; only the
// summary comment failing is fatal.
func (p *Poster) PostReview(ctx context.Context, token string, pr domain.PullRequest, result domain.ReviewResult) error {
	client, err := p.client(ctx, token)
	if err != nil {
		return err
	}

	summaryBody := RenderSummaryComment(result)

	if len(result.LineComments) > 0 {
		comments := make([]*gh.DraftReviewComment, 0, len(result.LineComments))
		for _, finding := range result.LineComments {
			if finding.Position <= 0 {
				continue
			}
			comments = append(comments, &gh.DraftReviewComment{
				Path:     gh.Ptr(finding.File),
				Position: gh.Ptr(finding.Position),
				Body:     gh.Ptr(RenderInlineComment(finding)),
			})
		}
		if len(comments) > 0 {
			review := &gh.PullRequestReviewRequest{
				CommitID: gh.Ptr(pr.HeadSHA),
				Body:     gh.Ptr(inlineReviewBody),
				Event:    gh.Ptr("COMMENT"),
				Comments: comments,
			}
			if _, _, err := client.PullRequests.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, review); err != nil {
				summaryBody = fmt.Sprintf("**Warning:** failed to post inline comments: `%v`\n\n%s", err, summaryBody)
			}
		}
	}

	if summaryBody == "" {
		return nil
	}
	comment := &gh.IssueComment{Body: gh.Ptr(summaryBody)}
	if _, _, err := client.Issues.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, comment); err != nil {
		return fmt.Errorf("post summary comment on %s#%d: %w", pr.FullName(), pr.Number, err)
	}
	return nil
}
