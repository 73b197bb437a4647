package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmorrow/vigil/internal/harness"
	"github.com/tmorrow/vigil/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// RunHistory is the report command's output payload.
type RunHistory struct {
	Runs []store.RunSummary `json:"runs,omitempty"`

	// Populated when a single run is requested.
	RunID     string              `json:"run_id,omitempty"`
	Scenarios []RunScenarioResult `json:"scenarios,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored run history",
		Long: `Show run history stored by vigil run --db.

Without --run, lists recent runs. With --run, shows every scenario
outcome of that run.

Examples:
  vigil report --db ./vigil.db
  vigil report --db ./vigil.db --limit 5
  vigil report --db ./vigil.db --run 0193a1b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show scenario outcomes of one run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showReport(opts *ReportOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID != "" {
		return showRun(ctx, st, opts, cmd)
	}
	return listRuns(ctx, st, opts, cmd)
}

func listRuns(ctx context.Context, st *store.Store, opts *ReportOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return outputReportJSON(cmd, RunHistory{Runs: runs})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %-5s  %d passed, %d failed, %d errored\n",
			run.CreatedAt.Format(time.RFC3339),
			run.ID,
			run.Overall,
			run.Passed,
			run.Failed,
			run.Errored,
		)
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, opts *ReportOptions, cmd *cobra.Command) error {
	results, err := st.RunResults(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	if len(results) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}

	history := RunHistory{
		RunID:     opts.RunID,
		Scenarios: make([]RunScenarioResult, 0, len(results)),
	}
	for _, res := range results {
		history.Scenarios = append(history.Scenarios, RunScenarioResult{
			Name:      res.ScenarioName,
			Outcome:   string(res.Outcome),
			Message:   res.Message,
			ElapsedMS: res.Elapsed.Milliseconds(),
		})
	}

	if opts.Format == "json" {
		return outputReportJSON(cmd, history)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", opts.RunID)
	for _, sc := range history.Scenarios {
		if sc.Outcome == string(harness.OutcomePass) {
			fmt.Fprintf(w, "✓ %s (%dms)\n", sc.Name, sc.ElapsedMS)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s, %dms)\n", sc.Name, sc.Outcome, sc.ElapsedMS)
		if sc.Message != "" {
			fmt.Fprintf(w, "  %s\n", sc.Message)
		}
	}
	return nil
}

func outputReportJSON(cmd *cobra.Command, history RunHistory) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: "ok",
		Data:   history,
	})
}
