package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindingSignature(t *testing.T) {
	a := Finding{Kind: KindLine, File: "a.go", Position: 3, Message: "fix this"}
	same := Finding{Kind: KindSecurity, File: "a.go", Position: 3, Message: "fix this"}
	different := Finding{Kind: KindLine, File: "a.go", Position: 4, Message: "fix this"}

	assert.Equal(t, a.Signature(), same.Signature(), "kind does not affect identity")
	assert.NotEqual(t, a.Signature(), different.Signature())
	assert.Len(t, a.Signature(), 64)
}

func TestFindingKindString(t *testing.T) {
	assert.Equal(t, "line", KindLine.String())
	assert.Equal(t, "general", KindGeneral.String())
	assert.Equal(t, "security", KindSecurity.String())
	assert.Equal(t, "unknown", FindingKind(9).String())
}

func TestReviewResultHasFindings(t *testing.T) {
	assert.False(t, ReviewResult{Summary: "clean"}.HasFindings())
	assert.True(t, ReviewResult{GeneralComments: []Finding{{Message: "m"}}}.HasFindings())
}

func TestPullRequestFullName(t *testing.T) {
	pr := PullRequest{Owner: "acme", Repo: "widgets"}
	assert.Equal(t, "acme/widgets", pr.FullName())
}
