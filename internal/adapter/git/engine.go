// Package git computes local unified diffs for the offline review
// command, backed by go-git.
package git

import (
	"context"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Engine produces unified diff text between two refs of a local
// repository.
type Engine struct {
	repoDir string
}

// NewEngine constructs an engine rooted at repoDir. The directory may
// be anywhere inside the working tree.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// DiffText returns the unified diff from baseRef to targetRef, in the
// same format GitHub serves for pull requests.
func (e *Engine) DiffText(ctx context.Context, baseRef, targetRef string) (string, error) {
	repo, err := gogit.PlainOpenWithOptions(e.repoDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return "", fmt.Errorf("resolve base ref %q: %w", baseRef, err)
	}
	targetCommit, err := resolveCommit(repo, targetRef)
	if err != nil {
		return "", fmt.Errorf("resolve target ref %q: %w", targetRef, err)
	}

	patch, err := baseCommit.PatchContext(ctx, targetCommit)
	if err != nil {
		return "", fmt.Errorf("compute patch %s..%s: %w", baseRef, targetRef, err)
	}
	return patch.String(), nil
}

// CurrentBranch returns the checked-out branch name, used as the
// default target ref.
func (e *Engine) CurrentBranch() (string, error) {
	repo, err := gogit.PlainOpenWithOptions(e.repoDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("detached HEAD")
	}
	return head.Name().Short(), nil
}

// resolveCommit tries the ref as given, then as a local branch, then as
// an origin remote branch.
func resolveCommit(repo *gogit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		"refs/heads/" + ref,
		"refs/remotes/origin/" + ref,
	}
	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	return nil, lastErr
}
