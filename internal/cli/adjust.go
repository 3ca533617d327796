package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/adjust"
	"github.com/roach88/retrolearn/internal/workflow"
)

// AdjustOptions holds flags for the adjust command.
type AdjustOptions struct {
	*RootOptions
	contextFlags
	Unit string
}

// adjustOutput is the adjust command payload.
type adjustOutput struct {
	Adjusted bool            `json:"adjusted"`
	Reason   string          `json:"reason,omitempty"`
	State    adjust.State    `json:"state"`
	Workflow *workflow.Graph `json:"workflow"`
	Changes  []adjust.Record `json:"changes,omitempty"`
}

func (o adjustOutput) Text() string {
	var b strings.Builder
	if o.Adjusted {
		fmt.Fprintf(&b, "✓ Workflow adjusted (%d change(s))\n", len(o.Changes))
		for _, r := range o.Changes {
			fmt.Fprintf(&b, "  %s %s: %s\n", r.Kind, r.Step, r.Reason)
		}
	} else {
		fmt.Fprintf(&b, "- Workflow unchanged: %s\n", o.Reason)
	}
	b.WriteByte('\n')
	b.WriteString(workflow.RenderString(o.Workflow))
	return b.String()
}

// NewAdjustCommand creates the adjust command.
func NewAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdjustOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "adjust <workflow-file>",
		Short: "Adjust a planned workflow using relevant learnings",
		Long: `Adjust a planned workflow (YAML, JSON or CUE) using the learnings
relevant to the planning context. The result is always a valid acyclic
workflow: when nothing applies, the unit's adjustment budget is spent, or
the adjusted workflow fails validation, the original is printed unchanged.

Example:
  retrolearn adjust sprint.yaml --unit epic-3 --project-type web-app --tags api`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdjust(opts, args[0], cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit of work id the adjustment budget is tracked against (required)")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}

func runAdjust(opts *AdjustOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	base, err := loadWorkflow(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeWorkflow, "failed to load workflow", err)
	}
	f.VerboseLog("Loaded workflow %s: %d step(s)", path, base.Len())

	pc, err := opts.planningContext()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid planning context", err)
	}

	sess, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	res, err := sess.svc.AdjustWorkflow(cmd.Context(), base, opts.Unit, pc)
	var pre *adjust.PreconditionError
	if errors.As(err, &pre) {
		return outputValidationErrors(f, pre.Errors)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to adjust workflow", err)
	}

	return f.Success(adjustOutput{
		Adjusted: res.Adjusted,
		Reason:   res.Reason,
		State:    res.State,
		Workflow: res.Graph,
		Changes:  res.Records,
	})
}

// loadWorkflow reads a workflow file into a graph.
func loadWorkflow(path string) (*workflow.Graph, error) {
	def, err := workflow.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return def.Graph()
}

// ─── history ────────────────────────────────────────────────────────────────

type historyOutput []adjust.Record

func (h historyOutput) Text() string {
	if len(h) == 0 {
		return "No adjustments committed\n"
	}
	var b strings.Builder
	for _, r := range h {
		fmt.Fprintf(&b, "%s %s %s: %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Kind, r.Step, r.Reason)
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List the committed adjustments of a unit of work",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, unit, cmd)
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "unit of work id (required)")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}

func runHistory(opts *RootOptions, unit string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sess, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	records, err := sess.svc.AdjustmentHistory(cmd.Context(), unit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to load history", err)
	}
	if records == nil {
		records = []adjust.Record{}
	}
	return f.Success(historyOutput(records))
}
