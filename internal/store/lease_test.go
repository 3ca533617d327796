package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrolearn/internal/testutil"
)

func TestLease_Exclusive(t *testing.T) {
	clock := testutil.NewFakeClock(testEpoch)
	s := createTestStore(t, WithClock(clock.Now))
	ctx := t.Context()

	require.NoError(t, s.AcquireLease(ctx, "maintenance", "worker-a", time.Hour))

	err := s.AcquireLease(ctx, "maintenance", "worker-b", time.Hour)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	// Renewal by the current holder succeeds.
	require.NoError(t, s.AcquireLease(ctx, "maintenance", "worker-a", time.Hour))
}

func TestLease_ExpiredIsTakenOver(t *testing.T) {
	clock := testutil.NewFakeClock(testEpoch)
	s := createTestStore(t, WithClock(clock.Now))
	ctx := t.Context()

	require.NoError(t, s.AcquireLease(ctx, "maintenance", "worker-a", time.Hour))
	clock.Advance(time.Hour + time.Second)

	require.NoError(t, s.AcquireLease(ctx, "maintenance", "worker-b", time.Hour))
	assert.ErrorIs(t, s.AcquireLease(ctx, "maintenance", "worker-a", time.Hour), ErrLeaseHeld)
}

func TestLease_Release(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.AcquireLease(ctx, "maintenance", "worker-a", time.Hour))

	// Releasing someone else's lease is a no-op.
	require.NoError(t, s.ReleaseLease(ctx, "maintenance", "worker-b"))
	assert.ErrorIs(t, s.AcquireLease(ctx, "maintenance", "worker-b", time.Hour), ErrLeaseHeld)

	require.NoError(t, s.ReleaseLease(ctx, "maintenance", "worker-a"))
	assert.NoError(t, s.AcquireLease(ctx, "maintenance", "worker-b", time.Hour))
}
