package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FindingKind distinguishes the three kinds of review feedback.
type FindingKind int

const (
	// KindLine anchors a comment to a specific diff line.
	KindLine FindingKind = iota
	// KindGeneral applies to the pull request as a whole.
	KindGeneral
	// KindSecurity flags a potential vulnerability with a severity.
	KindSecurity
)

// String returns a human-readable name for the finding kind.
func (k FindingKind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindGeneral:
		return "general"
	case KindSecurity:
		return "security"
	default:
		return "unknown"
	}
}

// Finding is a single piece of review feedback produced by the pipeline.
type Finding struct {
	Kind     FindingKind
	File     string   // empty for general comments
	Line     int      // new-side line number; 0 for general comments
	Position int      // diff position; 0 until resolved by the validator
	Severity Severity // set for security findings, SeverityUnknown otherwise
	Message  string
}

// Signature returns a deterministic identity for deduplication.
// Two findings with the same file, position, and message collapse to one.
func (f Finding) Signature() string {
	payload := fmt.Sprintf("%s|%d|%s", f.File, f.Position, f.Message)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ReviewResult is the final payload handed to the posting adapter.
// Line comments carry resolved diff positions; security issues are
// ordered by severity descending, then file, then position.
type ReviewResult struct {
	Summary         string
	LineComments    []Finding
	GeneralComments []Finding
	SecurityIssues  []Finding
}

// HasFindings reports whether the result carries any feedback beyond the summary.
func (r ReviewResult) HasFindings() bool {
	return len(r.LineComments) > 0 || len(r.GeneralComments) > 0 || len(r.SecurityIssues) > 0
}

// Snippet is a knowledge-base reference used to ground the review.
type Snippet struct {
	Path    string
	Content string
}

// KnowledgeQuery describes the change a knowledge source grounds on.
// Listing-based sources read Prefix; retrieval-based sources read Diff.
type KnowledgeQuery struct {
	Prefix string
	Diff   string
}

// PullRequest carries the metadata identifying the change under review.
type PullRequest struct {
	Owner          string
	Repo           string
	Number         int
	HeadSHA        string
	BaseRef        string
	HeadRef        string
	DiffURL        string
	InstallationID int64
}

// FullName returns the owner/repo form used in logs and API calls.
func (pr PullRequest) FullName() string {
	return pr.Owner + "/" + pr.Repo
}
