package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmorrow/vigil/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// FileValidation holds the validation result for one scenario file.
type FileValidation struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationReport holds the overall validation result.
type ValidationReport struct {
	Files   []FileValidation `json:"files"`
	Valid   int              `json:"valid"`
	Invalid int              `json:"invalid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file...>",
		Short: "Validate scenario files",
		Long: `Validate scenario files without running them.

Each file is checked against the scenario schema, decoded strictly, and
semantically validated (exactly-one-of step rules, sweep placeholders,
tolerance parameters).

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (file not readable, etc.)

Examples:
  vigil validate scenarios/tune_basic.yaml
  vigil validate scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFiles(opts, args, cmd)
		},
	}

	return cmd
}

func validateFiles(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	report := ValidationReport{
		Files: make([]FileValidation, 0, len(paths)),
	}

	for _, path := range paths {
		fv := validateFile(path)
		report.Files = append(report.Files, fv)
		if fv.Valid {
			report.Valid++
		} else {
			report.Invalid++
		}
	}

	if opts.Format == "json" {
		return outputValidationJSON(cmd, report)
	}
	return outputValidationText(cmd, report)
}

func validateFile(path string) FileValidation {
	fv := FileValidation{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		fv.Errors = append(fv.Errors, fmt.Sprintf("read: %v", err))
		return fv
	}

	if err := harness.ValidateSchema(data); err != nil {
		fv.Errors = append(fv.Errors, fmt.Sprintf("schema: %v", err))
		return fv
	}
	if _, err := harness.ParseScenario(data); err != nil {
		fv.Errors = append(fv.Errors, err.Error())
		return fv
	}

	fv.Valid = true
	return fv
}

func outputValidationJSON(cmd *cobra.Command, report ValidationReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}
	if report.Invalid > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_INVALID_SCENARIO",
			Message: fmt.Sprintf("%d file(s) invalid", report.Invalid),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if report.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) invalid", report.Invalid))
	}
	return nil
}

func outputValidationText(cmd *cobra.Command, report ValidationReport) error {
	w := cmd.OutOrStdout()

	for _, fv := range report.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s\n", fv.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.Path)
		for _, e := range fv.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Validation: %d valid, %d invalid\n", report.Valid, report.Invalid)

	if report.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) invalid", report.Invalid))
	}
	return nil
}
