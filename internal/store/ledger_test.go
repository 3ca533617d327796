package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrolearn/internal/adjust"
)

func testRecord(id, step string) adjust.Record {
	return adjust.Record{
		ID:         id,
		LearningID: "l1",
		Kind:       adjust.KindAdd,
		Step:       step,
		Reason:     "add " + step,
		CreatedAt:  testEpoch,
	}
}

func TestCountAdjustments_UnknownUnit(t *testing.T) {
	s := createTestStore(t)

	n, err := s.CountAdjustments(t.Context(), "epic-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitAdjustments_AdvancesAndRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.CommitAdjustments(ctx, "epic-1", 0, 3, []adjust.Record{
		testRecord("r1", "extended-testing"),
		testRecord("r2", "integration-tests"),
	}))
	require.NoError(t, s.CommitAdjustments(ctx, "epic-1", 1, 3, []adjust.Record{
		testRecord("r3", "coverage-report"),
	}))

	n, err := s.CountAdjustments(ctx, "epic-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.ListAdjustments(ctx, "epic-1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"extended-testing", "integration-tests", "coverage-report"},
		[]string{recs[0].Step, recs[1].Step, recs[2].Step})
	assert.Equal(t, "epic-1", recs[0].UnitID)
	assert.Equal(t, adjust.KindAdd, recs[0].Kind)
}

func TestCommitAdjustments_StaleExpected(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.CommitAdjustments(ctx, "epic-1", 0, 3, []adjust.Record{testRecord("r1", "a")}))

	err := s.CommitAdjustments(ctx, "epic-1", 0, 3, []adjust.Record{testRecord("r2", "b")})
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.ErrorIs(t, err, adjust.ErrBudgetExhausted)

	recs, err := s.ListAdjustments(ctx, "epic-1")
	require.NoError(t, err)
	assert.Len(t, recs, 1, "a failed commit writes no records")
}

func TestCommitAdjustments_LimitReached(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	for i := range 3 {
		require.NoError(t, s.CommitAdjustments(ctx, "epic-1", i, 3,
			[]adjust.Record{testRecord(fmt.Sprintf("r%d", i), "s")}))
	}

	err := s.CommitAdjustments(ctx, "epic-1", 3, 3, []adjust.Record{testRecord("r9", "s")})
	assert.ErrorIs(t, err, ErrBudgetExhausted)

	n, err := s.CountAdjustments(ctx, "epic-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCommitAdjustments_UnitsIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.CommitAdjustments(ctx, "epic-1", 0, 1, []adjust.Record{testRecord("r1", "a")}))
	require.NoError(t, s.CommitAdjustments(ctx, "epic-2", 0, 1, []adjust.Record{testRecord("r2", "a")}))

	recs, err := s.ListAdjustments(ctx, "epic-2")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCommitAdjustments_ConcurrentSameExpected(t *testing.T) {
	s := createTestStore(t)

	const racers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		exhausted atomic.Int32
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CommitAdjustments(t.Context(), "epic-1", 0, 3,
				[]adjust.Record{testRecord(fmt.Sprintf("r%d", i), "s")})
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, ErrBudgetExhausted):
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(racers-1), exhausted.Load())

	n, err := s.CountAdjustments(t.Context(), "epic-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
