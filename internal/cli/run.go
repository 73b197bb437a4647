package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmorrow/vigil/internal/collab"
	"github.com/tmorrow/vigil/internal/harness"
	"github.com/tmorrow/vigil/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter   string
	Database string
	Latency  time.Duration
	Timeout  time.Duration

	// Collaborator overrides the loopback simulator (for testing).
	Collaborator collab.Collaborator

	// IDGenerator overrides the run-ID generator (for testing).
	// If nil, defaults to UUIDGenerator.
	IDGenerator harness.IDGenerator
}

// RunReport is the run command's output payload.
type RunReport struct {
	RunID     string              `json:"run_id"`
	Scenarios []RunScenarioResult `json:"scenarios"`
	Passed    int                 `json:"passed"`
	Failed    int                 `json:"failed"`
	Errored   int                 `json:"errored"`
	Overall   string              `json:"overall"`
}

// RunScenarioResult holds one scenario outcome in the run output.
type RunScenarioResult struct {
	Name      string `json:"name"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir>",
		Short: "Run scenario files and report outcomes",
		Long: `Run every scenario file in a directory and report outcomes.

Scenarios execute against a loopback simulator that acknowledges each
command with a single event after a fixed latency, which makes run
useful for authoring and validating scenario files. Real subsystems are
driven through the harness library with their own collaborator.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed or errored
  2 - Command error (invalid paths, bad scenario files, etc.)

Examples:
  vigil run ./scenarios
  vigil run ./scenarios --filter "tune_*"
  vigil run ./scenarios --db ./vigil.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on name")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run history (optional)")
	cmd.Flags().DurationVar(&opts.Latency, "latency", 10*time.Millisecond, "simulator acknowledgement latency")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "default wait budget for scenarios that set none")

	return cmd
}

func runScenarios(opts *RunOptions, scenariosDir string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarios, err := harness.LoadScenarioDir(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	if opts.Timeout > 0 {
		for _, sc := range scenarios {
			if sc.Timeout == 0 {
				sc.Timeout = harness.Duration(opts.Timeout)
			}
		}
	}
	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(cmd, RunReport{Scenarios: []RunScenarioResult{}, Overall: string(harness.OutcomePass)})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	collaborator := opts.Collaborator
	if collaborator == nil {
		collaborator = collab.NewSimulator(opts.Latency)
	}
	runner := harness.NewRunner(collaborator, logger, opts.IDGenerator)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report := runner.RunSweep(ctx, scenarios)

	if opts.Database != "" {
		if err := saveRunHistory(ctx, opts.Database, report, logger); err != nil {
			return WrapExitError(ExitCommandError, "failed to save run history", err)
		}
	}

	out := buildRunReport(report)
	if opts.Format == "json" {
		return outputRunJSON(cmd, out)
	}
	return outputRunText(cmd, out)
}

func saveRunHistory(ctx context.Context, path string, report *harness.Report, logger *slog.Logger) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	if err := st.SaveReport(ctx, report); err != nil {
		return err
	}
	logger.Info("run history saved", "db", path, "run_id", report.RunID)
	return nil
}

func buildRunReport(report *harness.Report) RunReport {
	passed, failed, errored := report.Counts()
	out := RunReport{
		RunID:     report.RunID,
		Scenarios: make([]RunScenarioResult, 0, len(report.Results)),
		Passed:    passed,
		Failed:    failed,
		Errored:   errored,
		Overall:   string(report.Overall()),
	}
	for _, res := range report.Results {
		out.Scenarios = append(out.Scenarios, RunScenarioResult{
			Name:      res.ScenarioName,
			Outcome:   string(res.Outcome),
			Message:   res.Message,
			ElapsedMS: res.Elapsed.Milliseconds(),
		})
	}
	return out
}

func outputRunJSON(cmd *cobra.Command, out RunReport) error {
	unresolved := out.Failed + out.Errored

	response := CLIResponse{
		Status: "ok",
		Data:   out,
	}
	if unresolved > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_RUN_FAILED",
			Message: fmt.Sprintf("%d scenario(s) did not pass", unresolved),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if unresolved > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) did not pass", unresolved))
	}
	return nil
}

func outputRunText(cmd *cobra.Command, out RunReport) error {
	w := cmd.OutOrStdout()

	for _, sc := range out.Scenarios {
		if sc.Outcome == string(harness.OutcomePass) {
			fmt.Fprintf(w, "✓ %s\n", sc.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s)\n", sc.Name, sc.Outcome)
		if sc.Message != "" {
			fmt.Fprintf(w, "  %s\n", sc.Message)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s: %d passed, %d failed, %d errored\n", out.RunID, out.Passed, out.Failed, out.Errored)

	unresolved := out.Failed + out.Errored
	if unresolved > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) did not pass", unresolved))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
