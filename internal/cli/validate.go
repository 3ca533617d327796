package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/workflow"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Steps  int                        `json:"steps,omitempty"`
	Depth  int                        `json:"depth,omitempty"`
	Errors workflow.ValidationErrors `json:"errors,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	MaxDepth int
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Validate a workflow definition",
		Long: `Validate a workflow definition (YAML, JSON or CUE) without touching
the learning store.

Reports every problem found in one pass: cycles (W001), unknown
dependencies (W002), duplicate steps (W003), excessive depth (W004) and
empty step names (W005).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "maximum dependency depth (default from config)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
		}
		maxDepth = cfg.Adjust.MaxDepth
	}

	def, err := workflow.LoadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWorkflow, "failed to load workflow", err)
	}
	formatter.VerboseLog("Loaded %d step(s) from %s", len(def.Steps), path)

	if errs := workflow.ValidateSteps(def.Steps, maxDepth); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	g, err := def.Graph()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWorkflow, "failed to build workflow", err)
	}

	return outputValidateSuccess(formatter, g)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, g *workflow.Graph) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Steps: g.Len(), Depth: g.MaxDepth()})
	}

	fmt.Fprintf(formatter.Writer, "✓ Workflow valid (%d steps, depth %d)\n", g.Len(), g.MaxDepth())
	return nil
}

// outputValidationErrors outputs every validation error and returns an
// ExitFailure error.
func outputValidationErrors(formatter *OutputFormatter, errs workflow.ValidationErrors) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Step != "" {
			fmt.Fprintf(formatter.Writer, "step %s\n", err.Step)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
