// Package cli builds the cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	ghadapter "github.com/example/reviewbot/internal/adapter/github"
	"github.com/example/reviewbot/internal/domain"
)

// LocalReviewer reviews a branch of the local repository.
type LocalReviewer interface {
	ReviewBranch(ctx context.Context, baseRef, targetRef string) (domain.ReviewResult, error)
	CurrentBranch() (string, error)
}

// HistoryRun is one row of the run-history listing.
type HistoryRun struct {
	RunID      string
	CreatedAt  time.Time
	Repository string
	PRNumber   int
	Findings   int
}

// HistoryLister lists recorded runs.
type HistoryLister interface {
	ListRuns(ctx context.Context, limit int) ([]HistoryRun, error)
}

// Arguments holds IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	LocalReviewer     LocalReviewer
	Serve             func(ctx context.Context, addr string) error
	History           HistoryLister
	Args              Arguments
	DefaultListenAddr string
	Version           string
}

// NewRootCommand constructs the root cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	version := deps.Version
	if version == "" {
		version = "v0.0.0"
	}

	root := &cobra.Command{
		Use:     "reviewbot",
		Short:   "Automated pull request code review",
		Version: version,
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(serveCommand(deps))
	root.AddCommand(reviewCommand(deps))
	if deps.History != nil {
		root.AddCommand(historyCommand(deps))
	}
	return root
}

func serveCommand(deps Dependencies) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Serve == nil {
				return fmt.Errorf("serve mode is not configured")
			}
			addr := listenAddr
			if addr == "" {
				addr = deps.DefaultListenAddr
			}
			return deps.Serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (host:port)")
	return cmd
}

func reviewCommand(deps Dependencies) *cobra.Command {
	var baseRef string
	var targetRef string

	cmd := &cobra.Command{
		Use:   "review [target]",
		Short: "Review a local branch against a base reference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.LocalReviewer == nil {
				return fmt.Errorf("local review is not configured")
			}
			if len(args) > 0 {
				targetRef = args[0]
			}
			if targetRef == "" {
				detected, err := deps.LocalReviewer.CurrentBranch()
				if err != nil {
					return fmt.Errorf("detect target branch: %w", err)
				}
				targetRef = detected
			}

			result, err := deps.LocalReviewer.ReviewBranch(cmd.Context(), baseRef, targetRef)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ghadapter.RenderResult(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseRef, "base", "main", "Base reference to diff against")
	cmd.Flags().StringVar(&targetRef, "target", "", "Target reference to review (defaults to the current branch)")
	return cmd
}

func historyCommand(deps Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent review runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := deps.History.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s#%d  findings=%d  %s\n",
					run.CreatedAt.Format(time.RFC3339), run.Repository, run.PRNumber, run.Findings, run.RunID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}
