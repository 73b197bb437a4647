package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorrow/vigil/internal/store"
)

const passingScenario = `name: tune_ok
description: "Simulator acknowledges tune with a locked event"
resource:
  kind: tuner
  id: tuner0
steps:
  - command: tune
    args:
      kind: locked
    await:
      subject: tuner0
      kind: locked
      timeout: 2s
      interval: 5ms
  - expect:
      subject: tuner0
      kind: locked
      equals: true
`

const failingScenario = `name: tune_never
description: "Nothing ever emits on this subject"
resource:
  kind: tuner
  id: tuner1
steps:
  - await:
      subject: tuner1
      kind: locked
      timeout: 30ms
      interval: 5ms
`

const budgetlessScenario = `name: tune_budgetless
description: "Await with no wait budget of its own"
resource:
  kind: tuner
  id: tuner2
steps:
  - await:
      subject: tuner2
      kind: locked
      interval: 5ms
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644)
		require.NoError(t, err)
	}
	return dir
}

func executeRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetContext(context.Background())
	cmd.SetArgs(append([]string{"run"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_AllPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"tune_ok.yaml": passingScenario})

	out, err := executeRun(t, dir, "--latency", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tune_ok")
	assert.Contains(t, out, "All scenarios passed")
}

func TestRun_Failure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"tune_ok.yaml":    passingScenario,
		"tune_never.yaml": failingScenario,
	})

	out, err := executeRun(t, dir, "--latency", "1ms")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ tune_ok")
	assert.Contains(t, out, "✗ tune_never")
	assert.Contains(t, out, "1 passed, 1 failed, 0 errored")
}

func TestRun_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"tune_ok.yaml":    passingScenario,
		"tune_never.yaml": failingScenario,
	})

	out, err := executeRun(t, dir, "--latency", "1ms", "--filter", "tune_ok")
	require.NoError(t, err)
	assert.Contains(t, out, "tune_ok")
	assert.NotContains(t, out, "tune_never")
}

func TestRun_JSONOutput(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"tune_ok.yaml": passingScenario})

	out, err := executeRun(t, dir, "--latency", "1ms", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var report RunReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, "tune_ok", report.Scenarios[0].Name)
	assert.Equal(t, "pass", report.Scenarios[0].Outcome)
}

func TestRun_TimeoutFlag(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"tune_budgetless.yaml": budgetlessScenario})

	start := time.Now()
	out, err := executeRun(t, dir, "--timeout", "30ms")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tune_budgetless")
	assert.Less(t, time.Since(start), 5*time.Second, "flag did not override the default wait budget")
}

func TestRun_MissingDirectory(t *testing.T) {
	_, err := executeRun(t, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_InvalidScenarioFile(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"broken.yaml": "name: broken\nunknown_field: true\n",
	})

	_, err := executeRun(t, dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_EmptyDirectory(t *testing.T) {
	out, err := executeRun(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestRun_SavesHistory(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"tune_ok.yaml": passingScenario})
	dbPath := filepath.Join(t.TempDir(), "vigil.db")

	_, err := executeRun(t, dir, "--latency", "1ms", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "pass", runs[0].Overall)
	assert.Equal(t, 1, runs[0].Passed)
}
