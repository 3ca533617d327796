package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrolearn/internal/adjust"
)

func TestAdjust_Golden(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("learning", "import", env.writeFile("learnings.yaml", learningsYAML))
	path := env.writeFile("delivery.yaml", deliveryYAML)

	out := env.mustRun("adjust", path, "--unit", "epic-3", "--categories", "quality", "--tags", "testing")

	newGolden(t).Assert(t, "adjust_testing_gap", []byte(out))
}

func TestAdjust_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("learning", "import", env.writeFile("learnings.yaml", learningsYAML))
	path := env.writeFile("delivery.yaml", deliveryYAML)

	out := env.mustRun("--format", "json", "adjust", path, "--unit", "epic-3", "--categories", "quality")

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Adjusted bool            `json:"adjusted"`
			State    string          `json:"state"`
			Changes  []adjust.Record `json:"changes"`
			Workflow struct {
				Steps []struct {
					Name string `json:"name"`
				} `json:"steps"`
			} `json:"workflow"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Adjusted)
	assert.Equal(t, "committed", resp.Data.State)
	require.Len(t, resp.Data.Changes, 1)
	assert.Equal(t, "L-001", resp.Data.Changes[0].LearningID)
	assert.Len(t, resp.Data.Workflow.Steps, 4)
}

func TestAdjust_NoLearnings(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writeFile("delivery.yaml", deliveryYAML)

	out := env.mustRun("adjust", path, "--unit", "epic-3")
	assert.Contains(t, out, "- Workflow unchanged: no applicable adjustments")
	assert.Contains(t, out, "workflow: 3 steps, depth 2")
}

func TestAdjust_BudgetExhausted(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("learning", "import", env.writeFile("learnings.yaml", learningsYAML))
	path := env.writeFile("delivery.yaml", deliveryYAML)

	// Each committed adjustment spends one unit of the default budget of 3.
	for range 3 {
		env.mustRun("adjust", path, "--unit", "epic-3", "--categories", "quality")
	}
	out := env.mustRun("adjust", path, "--unit", "epic-3", "--categories", "quality")
	assert.Contains(t, out, "- Workflow unchanged: adjustment budget exhausted")
	assert.NotContains(t, out, "extended-testing")

	out = env.mustRun("history", "--unit", "epic-3")
	assert.Contains(t, out, "add extended-testing: testing gap: extend testing after implementation (learning L-001)")
}

func TestAdjust_InvalidBase(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writeFile("broken.yaml", brokenYAML)

	out, err := env.run("adjust", path, "--unit", "epic-3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "W001: dependency cycle a -> b -> a")
}

func TestAdjust_Errors(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writeFile("delivery.yaml", deliveryYAML)

	_, err := env.run("adjust", path)
	require.Error(t, err, "--unit is required")

	_, err = env.run("adjust", path, "--unit", "e", "--scale", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeInvalidArg)

	_, err = env.run("adjust", env.writeFile("empty.yaml", "name: nothing\n"), "--unit", "e")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeWorkflow)
}

func TestHistory_Empty(t *testing.T) {
	env := newCLIEnv(t)
	assert.Equal(t, "No adjustments committed\n", env.mustRun("history", "--unit", "epic-9"))
}
