package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/store"
)

// NewLearningCommand creates the learning command group.
func NewLearningCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Manage stored learnings",
	}
	cmd.AddCommand(newLearningAddCommand(rootOpts))
	cmd.AddCommand(newLearningImportCommand(rootOpts))
	cmd.AddCommand(newLearningListCommand(rootOpts))
	cmd.AddCommand(newLearningShowCommand(rootOpts))
	return cmd
}

// ─── add ────────────────────────────────────────────────────────────────────

type learningAddOptions struct {
	*RootOptions
	ID            string
	Description   string
	Category      string
	Tags          string
	Scale         int
	ProjectType   string
	Phase         string
	BaseRelevance float64
}

func newLearningAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &learningAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one learning",
		Long: `Add one learning captured in a retrospective.

Example:
  retrolearn learning add --category quality \
    --description "Regression bugs slipped through; testing was too thin" \
    --tags api,testing --project-type web-app`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "learning id (generated when empty)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what was learned (required)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "quality, process or architectural (required)")
	cmd.Flags().StringVar(&opts.Tags, "tags", "", "comma separated tags")
	cmd.Flags().IntVar(&opts.Scale, "scale", int(learning.ScaleAny), "scale level the learning applies to, 0-4 (-1 for any)")
	cmd.Flags().StringVar(&opts.ProjectType, "project-type", "", "project type the learning applies to")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "planning phase the learning targets")
	cmd.Flags().Float64Var(&opts.BaseRelevance, "base-relevance", 0, "intrinsic relevance in [0,1]")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runLearningAdd(opts *learningAddOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cat, err := learning.ParseCategory(opts.Category)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid --category", err)
	}

	sess, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	l := learning.Learning{
		ID:            opts.ID,
		Description:   opts.Description,
		Category:      cat,
		Tags:          learning.ParseTags(opts.Tags),
		ScaleLevel:    learning.ScaleLevel(opts.Scale),
		ProjectType:   opts.ProjectType,
		Phase:         opts.Phase,
		BaseRelevance: opts.BaseRelevance,
	}
	added, err := sess.svc.AddLearning(cmd.Context(), l)
	if errors.Is(err, store.ErrExists) {
		return f.Fail(ExitFailure, ErrCodeInvalidArg, "learning already exists", err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "failed to add learning", err)
	}

	if f.JSON() {
		return f.Success(added)
	}
	fmt.Fprintf(f.Writer, "✓ Added learning %s\n", added.ID)
	return nil
}

// ─── import ─────────────────────────────────────────────────────────────────

// learningFile is the import document: a list under "learnings".
type learningFile struct {
	Learnings []yaml.Node `yaml:"learnings"`
}

// decodeLearnings decodes each entry over a learning scoped to any scale,
// so an omitted scale_level does not read as level 0.
func decodeLearnings(data []byte) ([]learning.Learning, error) {
	var doc learningFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	ls := make([]learning.Learning, 0, len(doc.Learnings))
	for i := range doc.Learnings {
		l := learning.Learning{ScaleLevel: learning.ScaleAny}
		if err := doc.Learnings[i].Decode(&l); err != nil {
			return nil, fmt.Errorf("learning %d: %w", i+1, err)
		}
		ls = append(ls, l)
	}
	return ls, nil
}

type importResult struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

func (r importResult) Text() string {
	return fmt.Sprintf("✓ Imported %d of %d learning(s) (%d already present)\n", r.Inserted, r.Read, r.Skipped)
}

func newLearningImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import learnings from a YAML file",
		Long: `Import learnings from a YAML file of the form:

  learnings:
    - id: L-001
      description: Regression bugs slipped through; testing was too thin
      category: quality
      tags: [api, testing]

Learnings whose id is already stored are skipped, so re-importing the
same file is safe.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningImport(rootOpts, args[0], cmd)
		},
	}
}

func runLearningImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to read file", err)
	}

	ls, err := decodeLearnings(data)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid learnings file", err)
	}
	f.VerboseLog("Read %d learning(s) from %s", len(ls), path)

	sess, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	n, err := sess.svc.ImportLearnings(cmd.Context(), ls)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "failed to import learnings", err)
	}
	return f.Success(importResult{Read: len(ls), Inserted: n, Skipped: len(ls) - n})
}

// ─── list ───────────────────────────────────────────────────────────────────

type learningListOptions struct {
	*RootOptions
	All      bool
	Category string
	Limit    int
}

type learningList []learning.Learning

func (ls learningList) Text() string {
	if len(ls) == 0 {
		return "No learnings stored\n"
	}
	var b strings.Builder
	for _, l := range ls {
		status := ""
		switch {
		case l.Superseded():
			status = " (superseded by " + l.ReplacedBy + ")"
		case !l.Active:
			status = " (inactive)"
		}
		fmt.Fprintf(&b, "%s [%s] conf=%.2f applied=%d %s%s\n",
			l.ID, l.Category, l.ConfidenceScore, l.ApplicationCount, l.Description, status)
	}
	return b.String()
}

func newLearningListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &learningListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored learnings, most confident first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningList(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include inactive learnings")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only list one category")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum learnings to list (0 for all)")

	return cmd
}

func runLearningList(opts *learningListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	listOpts := store.ListOptions{IncludeInactive: opts.All, Limit: opts.Limit}
	if opts.Category != "" {
		cat, err := learning.ParseCategory(opts.Category)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid --category", err)
		}
		listOpts.Category = cat
	}

	sess, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	ls, err := sess.svc.ListLearnings(cmd.Context(), listOpts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list learnings", err)
	}
	if ls == nil {
		ls = []learning.Learning{}
	}
	return f.Success(learningList(ls))
}

// ─── show ───────────────────────────────────────────────────────────────────

type learningDetail struct {
	Learning     learning.Learning      `json:"learning"`
	Applications []learning.Application `json:"applications"`
}

func (d learningDetail) Text() string {
	l := d.Learning
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", l.ID, l.Category)
	fmt.Fprintf(&b, "  %s\n", l.Description)
	if len(l.Tags) > 0 {
		fmt.Fprintf(&b, "  tags:         %s\n", strings.Join(l.Tags, ", "))
	}
	if l.ProjectType != "" {
		fmt.Fprintf(&b, "  project type: %s\n", l.ProjectType)
	}
	if l.ScaleLevel != learning.ScaleAny {
		fmt.Fprintf(&b, "  scale level:  %d\n", l.ScaleLevel)
	}
	fmt.Fprintf(&b, "  confidence:   %.3f\n", l.ConfidenceScore)
	fmt.Fprintf(&b, "  success rate: %.3f over %d application(s)\n", l.SuccessRate, l.ApplicationCount)
	fmt.Fprintf(&b, "  decay:        %.3f\n", l.DecayFactor)
	fmt.Fprintf(&b, "  indexed:      %s\n", l.IndexedAt.Format("2006-01-02"))
	switch {
	case l.Superseded():
		fmt.Fprintf(&b, "  status:       superseded by %s\n", l.ReplacedBy)
	case !l.Active:
		fmt.Fprintf(&b, "  status:       inactive\n")
	default:
		fmt.Fprintf(&b, "  status:       active\n")
	}
	for _, a := range d.Applications {
		fmt.Fprintf(&b, "  %s %s %s", a.AppliedAt.Format("2006-01-02"), a.UnitID, a.Outcome)
		if a.Context != "" {
			fmt.Fprintf(&b, " - %s", a.Context)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func newLearningShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <learning-id>",
		Short:         "Show one learning with its recorded outcomes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningShow(rootOpts, args[0], cmd)
		},
	}
}

func runLearningShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sess, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	l, err := sess.svc.GetLearning(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("learning %s not found", id), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to load learning", err)
	}
	apps, err := sess.svc.Applications(cmd.Context(), id)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to load applications", err)
	}
	if apps == nil {
		apps = []learning.Application{}
	}
	return f.Success(learningDetail{Learning: l, Applications: apps})
}
