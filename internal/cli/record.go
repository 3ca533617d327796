package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/recorder"
	"github.com/roach88/retrolearn/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Unit string
	Note string
}

type recordOutput struct {
	Outcome  learning.Outcome  `json:"outcome"`
	Learning learning.Learning `json:"learning"`
}

func (o recordOutput) Text() string {
	l := o.Learning
	return fmt.Sprintf("✓ Recorded %s for %s: confidence %.3f, success rate %.3f over %d application(s)\n",
		o.Outcome, l.ID, l.ConfidenceScore, l.SuccessRate, l.ApplicationCount)
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <learning-id> <success|failure|partial>",
		Short: "Record the outcome of applying a learning",
		Long: `Record whether applying a learning helped a unit of work. Each outcome
updates the learning's success rate and confidence.

Example:
  retrolearn record L-001 success --unit epic-3 --note "caught two regressions"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit of work the learning was applied to (required)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "what happened")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}

func runRecord(opts *RecordOptions, learningID, outcome string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	o, err := learning.ParseOutcome(outcome)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid outcome", err)
	}

	sess, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	l, err := sess.svc.RecordOutcome(cmd.Context(), learningID, opts.Unit, string(o), opts.Note)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("learning %s not found", learningID), nil)
	case errors.Is(err, recorder.ErrInvalidOutcome):
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid outcome", err)
	case err != nil:
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to record outcome", err)
	}
	return f.Success(recordOutput{Outcome: o, Learning: l})
}
