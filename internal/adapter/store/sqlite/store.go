// Package sqlite persists review run history for later inspection.
// Persistence is best-effort: callers log store failures and continue,
// a review never fails because history could not be written.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/reviewbot/internal/domain"
)

// Run is one recorded review run.
type Run struct {
	RunID      string
	CreatedAt  time.Time
	Repository string
	PRNumber   int
	HeadSHA    string
	Summary    string
	Findings   int
}

// Store records runs and their findings in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path. Use ":memory:" in
// tests.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		repository TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		head_sha TEXT NOT NULL,
		summary TEXT
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		signature TEXT NOT NULL,
		kind TEXT NOT NULL,
		file TEXT,
		line INTEGER,
		position INTEGER,
		severity TEXT,
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	CREATE INDEX IF NOT EXISTS idx_findings_signature ON findings(signature);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records one run and all findings of its result in a single
// transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, result domain.ReviewResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, repository, pr_number, head_sha, summary)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.Unix(), run.Repository, run.PRNumber, run.HeadSHA, result.Summary,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	insert := func(findings []domain.Finding) error {
		for _, f := range findings {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO findings (run_id, signature, kind, file, line, position, severity, message)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, f.Signature(), f.Kind.String(), f.File, f.Line, f.Position, f.Severity.String(), f.Message,
			)
			if err != nil {
				return fmt.Errorf("insert finding: %w", err)
			}
		}
		return nil
	}
	for _, group := range [][]domain.Finding{result.LineComments, result.GeneralComments, result.SecurityIssues} {
		if err := insert(group); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.created_at, r.repository, r.pr_number, r.head_sha, r.summary,
		        (SELECT COUNT(*) FROM findings f WHERE f.run_id = r.run_id)
		 FROM runs r ORDER BY r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt int64
		var summary sql.NullString
		if err := rows.Scan(&run.RunID, &createdAt, &run.Repository, &run.PRNumber, &run.HeadSHA, &summary, &run.Findings); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		run.Summary = summary.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindingsByRun returns the findings recorded for one run.
func (s *Store) FindingsByRun(ctx context.Context, runID string) ([]domain.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, file, line, position, severity, message
		 FROM findings WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var kind, severity string
		if err := rows.Scan(&kind, &f.File, &f.Line, &f.Position, &severity, &f.Message); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Kind = parseKind(kind)
		if severity != domain.SeverityUnknown.String() {
			f.Severity = domain.ParseSeverity(severity)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func parseKind(s string) domain.FindingKind {
	switch s {
	case domain.KindGeneral.String():
		return domain.KindGeneral
	case domain.KindSecurity.String():
		return domain.KindSecurity
	default:
		return domain.KindLine
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
