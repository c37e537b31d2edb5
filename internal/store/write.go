package store

import (
	"context"
	"fmt"
	"time"

	"github.com/braidyn-bc/nwbpack/internal/batch"
)

// RunMeta describes one batch run for the ledger.
type RunMeta struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	SourceRoot string
	OutputRoot string
	DryRun     bool
}

// RecordRun writes a run and its item outcomes in one transaction.
//
// Idempotent: re-recording the same run id is a no-op (ON CONFLICT DO
// NOTHING), matching the re-run-the-batch retry model.
func (s *Store) RecordRun(ctx context.Context, meta RunMeta, result batch.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	dryRun := 0
	if meta.DryRun {
		dryRun = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, source_root, output_root, dry_run, succeeded, failed, skipped, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		meta.RunID,
		meta.StartedAt.UTC().Format(time.RFC3339),
		meta.FinishedAt.UTC().Format(time.RFC3339),
		meta.SourceRoot,
		meta.OutputRoot,
		dryRun,
		result.Succeeded,
		result.Failed,
		result.Skipped,
		result.ExitCode(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for _, o := range result.Outcomes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_items
			(run_id, session_id, action, state, error_kind, message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, session_id) DO NOTHING
		`,
			meta.RunID,
			o.SessionID,
			string(o.Action),
			string(o.State),
			string(o.Kind),
			o.Message,
			o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("record run item %s: %w", o.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
