package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/learning"
)

// contextFlags are the planning context flags shared by score and adjust.
type contextFlags struct {
	Scale       int
	ProjectType string
	Tags        string
	Phase       string
	Categories  string
}

func (c *contextFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&c.Scale, "scale", int(learning.ScaleAny), "scale level of the unit of work, 0-4 (-1 for any)")
	cmd.Flags().StringVar(&c.ProjectType, "project-type", "", "project type, e.g. web-app")
	cmd.Flags().StringVar(&c.Tags, "tags", "", "comma separated context tags")
	cmd.Flags().StringVar(&c.Phase, "phase", "", "planning phase")
	cmd.Flags().StringVar(&c.Categories, "categories", "", "comma separated categories to consider (default: all)")
}

func (c *contextFlags) planningContext() (learning.PlanningContext, error) {
	pc := learning.PlanningContext{
		ScaleLevel:  learning.ScaleLevel(c.Scale),
		ProjectType: c.ProjectType,
		Tags:        learning.ParseTags(c.Tags),
		Phase:       c.Phase,
	}
	if !pc.ScaleLevel.Valid() {
		return learning.PlanningContext{}, fmt.Errorf("--scale must be -1 or 0-4, got %d", c.Scale)
	}
	for _, name := range learning.ParseTags(c.Categories) {
		cat, err := learning.ParseCategory(name)
		if err != nil {
			return learning.PlanningContext{}, err
		}
		pc.Categories = append(pc.Categories, cat)
	}
	return pc, nil
}
