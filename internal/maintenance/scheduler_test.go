package maintenance

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/observability"
	"github.com/roach88/retrolearn/internal/store"
	"github.com/roach88/retrolearn/internal/testutil"
)

func openStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "maintenance.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, ls ...learning.Learning) {
	t.Helper()
	for _, l := range ls {
		require.NoError(t, s.InsertLearning(t.Context(), l))
	}
}

func TestRunOnce_DeactivatesOnlyWithEvidence(t *testing.T) {
	s := openStore(t)
	seed(t, s,
		testutil.NewLearning("weak", learning.CategoryProcess, at(0), testutil.WithStats(5, 1), testutil.WithConfidence(0.15)),
		testutil.NewLearning("young", learning.CategoryProcess, at(0), testutil.WithStats(2, 0.4), testutil.WithConfidence(0.15)),
	)
	clock := testutil.NewFakeClock(at(1))
	sched := New(s, WithClock(clock.Now))

	report, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)

	weak, err := s.GetLearning(t.Context(), "weak")
	require.NoError(t, err)
	assert.False(t, weak.Active)

	young, err := s.GetLearning(t.Context(), "young")
	require.NoError(t, err)
	assert.True(t, young.Active)
}

func TestRunOnce_Decay(t *testing.T) {
	s := openStore(t)
	seed(t, s,
		testutil.NewLearning("fresh", learning.CategoryQuality, at(0)),
		testutil.NewLearning("month", learning.CategoryQuality, at(-30)),
		testutil.NewLearning("year", learning.CategoryQuality, at(-365)),
	)
	sched := New(s, WithClock(testutil.NewFakeClock(at(0)).Now))

	report, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Decayed, "fresh learning keeps 1.0")

	for id, want := range map[string]float64{"fresh": 1.0, "month": 0.923, "year": 0.566} {
		l, err := s.GetLearning(t.Context(), id)
		require.NoError(t, err)
		assert.InDelta(t, want, l.DecayFactor, 0.001, id)
	}
}

func TestRunOnce_SupersedesAndExcludesFromCandidates(t *testing.T) {
	s := openStore(t)
	seed(t, s,
		testutil.NewLearning("old", learning.CategoryArchitectural, at(0), testutil.WithConfidence(0.4)),
		testutil.NewLearning("new", learning.CategoryArchitectural, at(20), testutil.WithConfidence(0.8)),
	)
	sched := New(s, WithClock(testutil.NewFakeClock(at(21)).Now))

	report, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Superseded)

	old, err := s.GetLearning(t.Context(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new", old.ReplacedBy)

	cands, err := s.ListCandidates(t.Context(), learning.Filter{})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "new", cands[0].ID)
}

func TestRunOnce_DeactivatedLearningIsNotSuperseded(t *testing.T) {
	s := openStore(t)
	seed(t, s,
		testutil.NewLearning("old", learning.CategoryProcess, at(0), testutil.WithStats(6, 1), testutil.WithConfidence(0.05)),
		testutil.NewLearning("new", learning.CategoryProcess, at(5), testutil.WithConfidence(0.5)),
	)
	sched := New(s, WithClock(testutil.NewFakeClock(at(6)).Now))

	report, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Zero(t, report.Superseded)

	old, err := s.GetLearning(t.Context(), "old")
	require.NoError(t, err)
	assert.False(t, old.Active)
	assert.Empty(t, old.ReplacedBy)
}

func TestRunOnce_PrunesApplications(t *testing.T) {
	s := openStore(t)
	seed(t, s, testutil.NewLearning("l1", learning.CategoryQuality, at(-800)))
	update := func(cur learning.Learning) learning.Stats {
		return learning.ApplyOutcome(cur.Stats(), learning.OutcomeSuccess)
	}
	for i, when := range []time.Time{at(-700), at(-400), at(-10)} {
		_, err := s.RecordApplication(t.Context(), learning.Application{
			ID: string(rune('a' + i)), LearningID: "l1", UnitID: "epic-1",
			Outcome: learning.OutcomeSuccess, AppliedAt: when,
		}, update)
		require.NoError(t, err)
	}

	sched := New(s, WithClock(testutil.NewFakeClock(at(0)).Now))
	report, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pruned)
}

func TestRunOnce_ZeroRetentionKeepsApplications(t *testing.T) {
	s := openStore(t)
	seed(t, s, testutil.NewLearning("l1", learning.CategoryQuality, at(-800)))
	_, err := s.RecordApplication(t.Context(), learning.Application{
		ID: "a", LearningID: "l1", UnitID: "epic-1",
		Outcome: learning.OutcomeSuccess, AppliedAt: at(-700),
	}, func(cur learning.Learning) learning.Stats {
		return learning.ApplyOutcome(cur.Stats(), learning.OutcomeSuccess)
	})
	require.NoError(t, err)

	policy := DefaultPolicy()
	policy.Retention = 0
	sched := New(s, WithPolicy(policy), WithClock(testutil.NewFakeClock(at(0)).Now))
	report, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, report.Pruned)

	apps, err := s.ListApplications(t.Context(), "l1")
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestRunOnce_Idempotent(t *testing.T) {
	s := openStore(t)
	seed(t, s,
		testutil.NewLearning("weak", learning.CategoryProcess, at(-30), testutil.WithStats(5, 1), testutil.WithConfidence(0.15)),
		testutil.NewLearning("old", learning.CategoryQuality, at(-60), testutil.WithConfidence(0.3)),
		testutil.NewLearning("new", learning.CategoryQuality, at(-1), testutil.WithConfidence(0.9)),
	)
	clock := testutil.NewFakeClock(at(0))
	sched := New(s, WithClock(clock.Now))

	first, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Report{Decayed: 3, Deactivated: 1, Superseded: 1}, first)

	second, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Report{}, second)
}

// blockingRepo parks ActiveLearnings until released.
type blockingRepo struct {
	Repository
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingRepo) ActiveLearnings(ctx context.Context) ([]learning.Learning, error) {
	b.calls.Add(1)
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return nil, nil
}

func (b *blockingRepo) UpdateDecayFactors(context.Context, map[string]float64) (int, error) {
	return 0, nil
}

func (b *blockingRepo) PruneApplications(context.Context, time.Time) (int, error) {
	return 0, nil
}

func TestRunOnce_InProcessExclusion(t *testing.T) {
	repo := &blockingRepo{entered: make(chan struct{}), release: make(chan struct{})}
	sched := New(repo)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := sched.RunOnce(context.Background())
		assert.NoError(t, err)
	}()
	<-repo.entered

	_, err := sched.RunOnce(t.Context())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(repo.release)
	wg.Wait()
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestRunOnce_CrossProcessLease(t *testing.T) {
	clock := testutil.NewFakeClock(at(0))
	s := openStore(t, store.WithClock(clock.Now))

	// Another process holds the lease.
	require.NoError(t, s.AcquireLease(t.Context(), LeaseName, "other-host", time.Hour))

	sched := New(s, WithLease(s, time.Hour), WithHolder("this-host"), WithClock(clock.Now))
	_, err := sched.RunOnce(t.Context())
	assert.ErrorIs(t, err, store.ErrLeaseHeld)

	clock.Advance(2 * time.Hour)
	_, err = sched.RunOnce(t.Context())
	require.NoError(t, err)

	// The lease is released after the run.
	assert.NoError(t, s.AcquireLease(t.Context(), LeaseName, "other-host", time.Hour))
}

type failingDecayRepo struct {
	blockingRepo
}

func (f *failingDecayRepo) UpdateDecayFactors(context.Context, map[string]float64) (int, error) {
	return 0, errors.New("disk I/O error")
}

func (f *failingDecayRepo) PruneApplications(context.Context, time.Time) (int, error) {
	return 4, nil
}

func TestRunOnce_StepFailureDoesNotStopLaterSteps(t *testing.T) {
	m := observability.InitMetrics(prometheus.NewRegistry())
	sched := New(&failingDecayRepo{}, WithMetrics(m))

	report, err := sched.RunOnce(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decay")
	assert.Equal(t, 4, report.Pruned)
	assert.InDelta(t, 1, promtest.ToFloat64(m.MaintenanceRunsTotal.WithLabelValues("error")), 1e-9)
	assert.InDelta(t, 4, promtest.ToFloat64(m.MaintenanceChangesTotal.WithLabelValues("pruned")), 1e-9)
}

func TestRunOnce_AfterRunHook(t *testing.T) {
	s := openStore(t)
	seed(t, s, testutil.NewLearning("l1", learning.CategoryQuality, at(-30)))

	var got []Report
	sched := New(s, WithClock(testutil.NewFakeClock(at(0)).Now), AfterRun(func(r Report) { got = append(got, r) }))

	_, err := sched.RunOnce(t.Context())
	require.NoError(t, err)
	_, err = sched.RunOnce(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []Report{{Decayed: 1}}, got, "hook fires only for runs with changes")
}

func TestStart_RunsImmediatelyAndOnInterval(t *testing.T) {
	repo := &blockingRepo{}
	sched := New(repo, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	assert.Eventually(t, func() bool { return repo.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
