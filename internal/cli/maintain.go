package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/maintenance"
)

type maintainOutput maintenance.Report

func (r maintainOutput) Text() string {
	return fmt.Sprintf("✓ Maintenance complete: %d decayed, %d deactivated, %d superseded, %d application(s) pruned\n",
		r.Decayed, r.Deactivated, r.Superseded, r.Pruned)
}

// NewMaintainCommand creates the maintain command.
func NewMaintainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "maintain",
		Short: "Run one maintenance pass over the learning store",
		Long: `Run one maintenance pass: recompute decay factors, deactivate
learnings that have been disproven, link superseded learnings to their
replacements and prune applications past the retention window.

Safe to run repeatedly and alongside a running server; a pass that finds
another in progress exits with code 1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaintain(rootOpts, cmd)
		},
	}
}

func runMaintain(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sess, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	report, err := sess.svc.RunMaintenance(cmd.Context())
	if errors.Is(err, maintenance.ErrRunInProgress) {
		return f.Fail(ExitFailure, ErrCodeMaintenance, "maintenance already running", nil)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeMaintenance, "maintenance failed", err)
	}
	return f.Success(maintainOutput(report))
}
