package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures one execution trace for golden comparison.
// Elapsed is deliberately omitted: wall time is never deterministic.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Outcome      Outcome      `json:"outcome"`
	Message      string       `json:"message,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Determinism requires a collaborator whose event delivery order is
// fixed relative to the awaits in the scenario; a scenario that awaits
// each emission before proceeding satisfies this.
func RunWithGolden(t *testing.T, runner *Runner, scenario *Scenario) Result {
	t.Helper()

	result := runner.RunScenario(context.Background(), scenario)
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares an already obtained result's trace against the
// golden file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: result.ScenarioName,
		Outcome:      result.Outcome,
		Message:      result.Message,
		Trace:        result.Trace,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
}
