package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmorrow/vigil/internal/harness"
)

// RunSummary is one row of the run history.
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Overall   string    `json:"overall"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Errored   int       `json:"errored"`
}

// ListRuns returns stored runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, overall, passed, failed, errored
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var createdAt string
		if err := rows.Scan(&r.ID, &createdAt, &r.Overall, &r.Passed, &r.Failed, &r.Errored); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("list runs: parse created_at %q: %w", createdAt, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// RunResults returns the scenario results of one run in execution
// order. Traces are not loaded; use ScenarioTrace for those.
func (s *Store) RunResults(ctx context.Context, runID string) ([]harness.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_name, outcome, message, elapsed_ms
		FROM results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run results: %w", err)
	}
	defer rows.Close()

	var results []harness.Result
	for rows.Next() {
		var r harness.Result
		var outcome string
		var elapsedMS int64
		if err := rows.Scan(&r.ScenarioName, &outcome, &r.Message, &elapsedMS); err != nil {
			return nil, fmt.Errorf("run results: scan: %w", err)
		}
		r.Outcome = harness.Outcome(outcome)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run results: %w", err)
	}
	return results, nil
}

// ScenarioTrace returns the stored trace of one scenario execution.
func (s *Store) ScenarioTrace(ctx context.Context, runID, scenarioName string) ([]harness.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, state, command, subject, kind, value_json, detail, seq
		FROM trace_events
		WHERE run_id = ? AND scenario_name = ?
		ORDER BY position
	`, runID, scenarioName)
	if err != nil {
		return nil, fmt.Errorf("scenario trace: %w", err)
	}
	defer rows.Close()

	var trace []harness.TraceEvent
	for rows.Next() {
		var ev harness.TraceEvent
		var valueJSON string
		if err := rows.Scan(&ev.Type, &ev.State, &ev.Command, &ev.Subject, &ev.Kind, &valueJSON, &ev.Detail, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scenario trace: scan: %w", err)
		}
		if valueJSON != "" {
			if err := json.Unmarshal([]byte(valueJSON), &ev.Value); err != nil {
				return nil, fmt.Errorf("scenario trace: unmarshal value %q: %w", valueJSON, err)
			}
		}
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scenario trace: %w", err)
	}
	return trace, nil
}
