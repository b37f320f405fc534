package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reviewbot/internal/diff"
)

func commitFile(t *testing.T, wt *gogit.Worktree, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

// initRepo builds a repository with a main branch and a feature branch
// that modifies one file.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commitFile(t, wt, dir, "service.go", "package service\n", "initial")

	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature"),
		Create: true,
	}))
	commitFile(t, wt, dir, "service.go", "package service\n\nvar Debug bool\n", "add debug flag")

	return dir
}

func TestDiffTextBetweenBranches(t *testing.T) {
	dir := initRepo(t)
	engine := NewEngine(dir)

	text, err := engine.DiffText(context.Background(), "main", "feature")
	require.NoError(t, err)

	fs := diff.Parse(text)
	require.Len(t, fs.Files, 1)
	assert.Equal(t, "service.go", fs.Files[0].Path)
	assert.False(t, fs.Empty())

	_, ok := fs.Positions().Resolve("service.go", 3)
	assert.True(t, ok, "the added line is addressable")
}

func TestDiffTextUnknownRef(t *testing.T) {
	dir := initRepo(t)
	engine := NewEngine(dir)

	_, err := engine.DiffText(context.Background(), "main", "no-such-branch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `resolve target ref "no-such-branch"`)
}

func TestDiffTextOutsideRepository(t *testing.T) {
	engine := NewEngine(t.TempDir())
	_, err := engine.DiffText(context.Background(), "main", "feature")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repo")
}

func TestCurrentBranch(t *testing.T) {
	dir := initRepo(t)
	engine := NewEngine(dir)

	branch, err := engine.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature", branch)
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	dir := initRepo(t)
	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: head.Hash()}))

	_, err = NewEngine(dir).CurrentBranch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached HEAD")
}
