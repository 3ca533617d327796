package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrolearn/internal/adjust"
	"github.com/roach88/retrolearn/internal/config"
	"github.com/roach88/retrolearn/internal/ids"
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/recorder"
	"github.com/roach88/retrolearn/internal/store"
	"github.com/roach88/retrolearn/internal/testutil"
	"github.com/roach88/retrolearn/internal/workflow"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *store.Store
	clock *testutil.FakeClock
}

func newFixture(t *testing.T, seed ...learning.Learning) fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "svc.db")

	clock := testutil.NewFakeClock(epoch)
	st, err := store.Open(cfg.Database.Path, store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, l := range seed {
		require.NoError(t, st.InsertLearning(t.Context(), l))
	}
	svc := New(st, cfg, WithClock(clock.Now), WithIDGenerator(ids.NewSequenceGenerator("id")))
	return fixture{svc: svc, store: st, clock: clock}
}

func testingGap() learning.Learning {
	return testutil.NewLearning("L-test", learning.CategoryQuality, epoch.AddDate(0, 0, -30),
		testutil.WithDescription("Regression bugs slipped through; testing was too thin"),
		testutil.WithTags("testing", "api"),
		testutil.WithScale(2),
		testutil.WithProjectType("web-app"),
	)
}

func planning() learning.PlanningContext {
	return learning.PlanningContext{
		ScaleLevel:  2,
		ProjectType: "web-app",
		Tags:        []string{"testing", "api"},
		Phase:       "implementation",
	}
}

func baseGraph() *workflow.Graph {
	return workflow.MustNew(
		workflow.Step{Name: "requirements", Phase: "planning"},
		workflow.Step{Name: "implementation", Phase: "implementation", DependsOn: []string{"requirements"}},
		workflow.Step{Name: "release", Phase: "delivery", DependsOn: []string{"implementation"}},
	)
}

func TestGetRelevantLearnings(t *testing.T) {
	f := newFixture(t, testingGap(),
		testutil.NewLearning("L-other", learning.CategoryProcess, epoch, testutil.Inactive()))

	got, err := f.svc.GetRelevantLearnings(t.Context(), planning(), 0)
	require.NoError(t, err)
	assert.False(t, got.Degraded)
	require.Len(t, got.Learnings, 1)
	assert.Equal(t, "L-test", got.Learnings[0].Learning.ID)
	assert.Greater(t, got.Learnings[0].Score, 0.2)
}

func TestGetRelevantLearnings_FailOpen(t *testing.T) {
	f := newFixture(t, testingGap())
	require.NoError(t, f.store.Close())

	got, err := f.svc.GetRelevantLearnings(t.Context(), planning(), 5)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.NotNil(t, got.Learnings)
	assert.Empty(t, got.Learnings)
	assert.NotEmpty(t, got.Reason)
}

func TestGetRelevantLearnings_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetRelevantLearnings(t.Context(), learning.PlanningContext{ScaleLevel: 9}, 5)
	assert.Error(t, err)

	_, err = f.svc.GetRelevantLearnings(t.Context(), planning(), -1)
	assert.Error(t, err)
}

func TestAdjustWorkflow_AppliesLearning(t *testing.T) {
	f := newFixture(t, testingGap())
	base := baseGraph()

	res, err := f.svc.AdjustWorkflow(t.Context(), base, "epic-7", planning())
	require.NoError(t, err)
	require.True(t, res.Adjusted, res.Reason)
	assert.Equal(t, adjust.StateCommitted, res.State)
	assert.True(t, res.Graph.Has(adjust.StepExtendedTesting))
	assert.False(t, res.Graph.HasCycle())
	assert.Equal(t, 3, base.Len(), "base graph is not mutated")

	history, err := f.svc.AdjustmentHistory(t.Context(), "epic-7")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "L-test", history[0].LearningID)
	assert.Equal(t, adjust.StepExtendedTesting, history[0].Step)
}

func TestAdjustWorkflow_BudgetExhausted(t *testing.T) {
	f := newFixture(t, testingGap())

	for i := range 3 {
		res, err := f.svc.AdjustWorkflow(t.Context(), baseGraph(), "epic-7", planning())
		require.NoError(t, err)
		require.True(t, res.Adjusted, "adjustment %d", i+1)
	}

	base := baseGraph()
	res, err := f.svc.AdjustWorkflow(t.Context(), base, "epic-7", planning())
	require.NoError(t, err)
	assert.False(t, res.Adjusted)
	assert.Equal(t, adjust.ReasonBudgetExhausted, res.Reason)
	assert.Same(t, base, res.Graph)

	// Another unit has its own budget.
	res, err = f.svc.AdjustWorkflow(t.Context(), baseGraph(), "epic-8", planning())
	require.NoError(t, err)
	assert.True(t, res.Adjusted)
}

func TestAdjustWorkflow_NoLearnings(t *testing.T) {
	f := newFixture(t)
	base := baseGraph()

	res, err := f.svc.AdjustWorkflow(t.Context(), base, "epic-7", planning())
	require.NoError(t, err)
	assert.False(t, res.Adjusted)
	assert.Equal(t, adjust.ReasonNoChanges, res.Reason)
	assert.Same(t, base, res.Graph)
}

func TestAdjustWorkflow_StoreDownFailsOpen(t *testing.T) {
	f := newFixture(t, testingGap())
	require.NoError(t, f.store.Close())
	base := baseGraph()

	res, err := f.svc.AdjustWorkflow(t.Context(), base, "epic-7", planning())
	require.NoError(t, err)
	assert.False(t, res.Adjusted)
	assert.Same(t, base, res.Graph)
	assert.NotEmpty(t, res.Reason)
}

func TestAdjustWorkflow_InvalidBase(t *testing.T) {
	f := newFixture(t, testingGap())
	base := workflow.MustNew(
		workflow.Step{Name: "a", DependsOn: []string{"b"}},
		workflow.Step{Name: "b", DependsOn: []string{"a"}},
	)

	_, err := f.svc.AdjustWorkflow(t.Context(), base, "epic-7", planning())
	require.Error(t, err)
	assert.True(t, adjust.IsPreconditionError(err))
}

func TestAdjustWorkflow_RequiresUnit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AdjustWorkflow(t.Context(), baseGraph(), "", planning())
	assert.Error(t, err)
}

func TestRecordOutcome(t *testing.T) {
	f := newFixture(t, testingGap())

	before, err := f.svc.GetRelevantLearnings(t.Context(), planning(), 1)
	require.NoError(t, err)
	require.Len(t, before.Learnings, 1)

	l, err := f.svc.RecordOutcome(t.Context(), "L-test", "epic-7", "success", "caught two regressions")
	require.NoError(t, err)
	assert.Equal(t, 1, l.ApplicationCount)

	// The cached candidate list is dropped, so the new confidence is visible.
	after, err := f.svc.GetRelevantLearnings(t.Context(), planning(), 1)
	require.NoError(t, err)
	require.Len(t, after.Learnings, 1)
	assert.Greater(t, after.Learnings[0].Score, before.Learnings[0].Score)
}

func TestRecordOutcome_Invalid(t *testing.T) {
	f := newFixture(t, testingGap())

	_, err := f.svc.RecordOutcome(t.Context(), "L-test", "epic-7", "great", "")
	assert.ErrorIs(t, err, recorder.ErrInvalidOutcome)

	_, err = f.svc.RecordOutcome(t.Context(), "missing", "epic-7", "failure", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunMaintenance(t *testing.T) {
	f := newFixture(t,
		testutil.NewLearning("weak", learning.CategoryProcess, epoch.AddDate(0, 0, -10),
			testutil.WithStats(5, 1), testutil.WithConfidence(0.15)),
	)

	report, err := f.svc.RunMaintenance(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 1, report.Decayed)

	l, err := f.svc.GetLearning(t.Context(), "weak")
	require.NoError(t, err)
	assert.False(t, l.Active)
}

func TestAddLearning_Defaults(t *testing.T) {
	f := newFixture(t)

	l, err := f.svc.AddLearning(t.Context(), learning.Learning{
		Description: "Design reviews caught interface drift",
		Category:    learning.CategoryArchitectural,
		Tags:        []string{"API", " Design "},
		ScaleLevel:  learning.ScaleAny,
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", l.ID)
	assert.InDelta(t, learning.InitialConfidence, l.ConfidenceScore, 1e-12)
	assert.InDelta(t, 1.0, l.DecayFactor, 1e-12)
	assert.True(t, l.Active)
	assert.True(t, l.IndexedAt.Equal(epoch))
	assert.Equal(t, []string{"api", "design"}, l.Tags)

	stored, err := f.svc.GetLearning(t.Context(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, l.Tags, stored.Tags)
}

func TestImportLearnings(t *testing.T) {
	f := newFixture(t, testingGap())

	n, err := f.svc.ImportLearnings(t.Context(), []learning.Learning{
		testingGap(),
		{ID: "L-new", Description: "Daily standups were too slow", Category: learning.CategoryProcess, ScaleLevel: learning.ScaleAny},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := f.svc.ListLearnings(t.Context(), store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportLearnings_RateOnlyHistorySurvivesNextOutcome(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ImportLearnings(t.Context(), []learning.Learning{{
		ID:               "L-hist",
		Description:      "Load tests before launch caught capacity issues",
		Category:         learning.CategoryQuality,
		ScaleLevel:       learning.ScaleAny,
		ApplicationCount: 10,
		SuccessRate:      0.8,
		ConfidenceScore:  0.85,
		IndexedAt:        epoch.AddDate(0, 0, -3),
	}})
	require.NoError(t, err)

	stored, err := f.svc.GetLearning(t.Context(), "L-hist")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, stored.Successes, 1e-9)

	l, err := f.svc.RecordOutcome(t.Context(), "L-hist", "epic-1", "success", "")
	require.NoError(t, err)
	assert.Equal(t, 11, l.ApplicationCount)
	assert.InDelta(t, 9.0/11, l.SuccessRate, 1e-9)

	l, err = f.svc.RecordOutcome(t.Context(), "L-hist", "epic-2", "failure", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, l.SuccessRate, 1e-9)
	assert.Greater(t, l.ConfidenceScore, 0.8)
}

func TestImportLearnings_DecayFromIndexedAt(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ImportLearnings(t.Context(), []learning.Learning{
		{ID: "L-old", Description: "Estimates ignored integration work", Category: learning.CategoryProcess,
			ScaleLevel: learning.ScaleAny, IndexedAt: epoch.AddDate(0, 0, -365)},
		{ID: "L-set", Description: "Pair on risky migrations", Category: learning.CategoryProcess,
			ScaleLevel: learning.ScaleAny, IndexedAt: epoch.AddDate(0, 0, -365), DecayFactor: 0.9},
	})
	require.NoError(t, err)

	old, err := f.svc.GetLearning(t.Context(), "L-old")
	require.NoError(t, err)
	assert.InDelta(t, learning.Decay(365), old.DecayFactor, 1e-9)
	assert.InDelta(t, 0.566, old.DecayFactor, 0.001)

	set, err := f.svc.GetLearning(t.Context(), "L-set")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, set.DecayFactor, 1e-9)

	report, err := f.svc.RunMaintenance(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Decayed, "only the explicit factor differs from the age-derived one")
}
