package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmorrow/vigil/internal/harness"
)

// SaveReport persists one sweep report: the run row, every scenario
// result, and every trace entry, in a single transaction.
//
// Uses ON CONFLICT DO NOTHING on the run row for idempotency - saving
// the same run twice is a no-op rather than an error.
func (s *Store) SaveReport(ctx context.Context, report *harness.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	defer tx.Rollback()

	passed, failed, errored := report.Counts()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, overall, passed, failed, errored)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.RunID,
		time.Now().UTC().Format(time.RFC3339),
		string(report.Overall()),
		passed,
		failed,
		errored,
	)
	if err != nil {
		return fmt.Errorf("save report: insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Run already saved; results and traces are immutable.
		return nil
	}

	for i, result := range report.Results {
		if err := saveResult(ctx, tx, report.RunID, i, result); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save report: commit: %w", err)
	}
	return nil
}

func saveResult(ctx context.Context, tx *sql.Tx, runID string, position int, result harness.Result) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO results (run_id, position, scenario_name, outcome, message, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		runID,
		position,
		result.ScenarioName,
		string(result.Outcome),
		result.Message,
		result.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save result %q: %w", result.ScenarioName, err)
	}

	for i, ev := range result.Trace {
		valueJSON := ""
		if ev.Value != nil {
			data, err := json.Marshal(ev.Value)
			if err != nil {
				return fmt.Errorf("save trace for %q: marshal value: %w", result.ScenarioName, err)
			}
			valueJSON = string(data)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO trace_events
			(run_id, scenario_name, position, type, state, command, subject, kind, value_json, detail, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			result.ScenarioName,
			i,
			ev.Type,
			ev.State,
			ev.Command,
			ev.Subject,
			ev.Kind,
			valueJSON,
			ev.Detail,
			ev.Seq,
		)
		if err != nil {
			return fmt.Errorf("save trace for %q: %w", result.ScenarioName, err)
		}
	}

	return nil
}
