package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/service"
)

// ScoreOptions holds flags for the score command.
type ScoreOptions struct {
	*RootOptions
	contextFlags
	Limit int
}

type scoreResult service.Relevant

func (r scoreResult) Text() string {
	var b strings.Builder
	if r.Degraded {
		fmt.Fprintf(&b, "! learnings unavailable: %s\n", r.Reason)
		return b.String()
	}
	if len(r.Learnings) == 0 {
		return "No relevant learnings\n"
	}
	for i, s := range r.Learnings {
		fmt.Fprintf(&b, "%d. %.3f %s [%s] %s\n", i+1, s.Score, s.Learning.ID, s.Learning.Category, s.Learning.Description)
	}
	return b.String()
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank the learnings relevant to a planning context",
		Long: `Rank active learnings against a planning context. Read-only.

Example:
  retrolearn score --scale 2 --project-type web-app --tags api,auth`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(opts, cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum learnings to return (default from config)")

	return cmd
}

func runScore(opts *ScoreOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	pc, err := opts.planningContext()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid planning context", err)
	}

	sess, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	res, err := sess.svc.GetRelevantLearnings(cmd.Context(), pc, opts.Limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "failed to score learnings", err)
	}
	return f.Success(scoreResult(res))
}
