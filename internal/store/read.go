package store

import (
	"context"
	"fmt"
	"time"
)

// RunSummary is one ledger row from the runs table.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	SourceRoot string
	OutputRoot string
	DryRun     bool
	Succeeded  int
	Failed     int
	Skipped    int
	ExitCode   int
}

// ItemRecord is one ledger row from the run_items table.
type ItemRecord struct {
	RunID      string
	SessionID  string
	Action     string
	State      string
	ErrorKind  string
	Message    string
	DurationMS int64
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, started_at, finished_at, source_root, output_root, dry_run,
		       succeeded, failed, skipped, exit_code
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		var dryRun int
		if err := rows.Scan(&r.RunID, &started, &finished, &r.SourceRoot, &r.OutputRoot,
			&dryRun, &r.Succeeded, &r.Failed, &r.Skipped, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunItems returns the per-session outcomes of one run, ordered by session id
// for deterministic display.
func (s *Store) RunItems(ctx context.Context, runID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, session_id, action, state, error_kind, message, duration_ms
		FROM run_items
		WHERE run_id = ?
		ORDER BY session_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var it ItemRecord
		if err := rows.Scan(&it.RunID, &it.SessionID, &it.Action, &it.State,
			&it.ErrorKind, &it.Message, &it.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SessionHistory returns every recorded outcome for one session across runs,
// newest run first. Useful when diagnosing a session that keeps failing.
func (s *Store) SessionHistory(ctx context.Context, sessionID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.run_id, i.session_id, i.action, i.state, i.error_kind, i.message, i.duration_ms
		FROM run_items i
		JOIN runs r ON r.id = i.run_id
		WHERE i.session_id = ?
		ORDER BY r.started_at DESC, r.id DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var it ItemRecord
		if err := rows.Scan(&it.RunID, &it.SessionID, &it.Action, &it.State,
			&it.ErrorKind, &it.Message, &it.DurationMS); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
