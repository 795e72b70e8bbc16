package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_SerializesSameCase(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(blockedCtx, "case-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release2, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)
	release2()
}

func TestMemoryLocker_IndependentCases(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release1, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)
	defer release1()

	release2, err := locker.Acquire(ctx, "case-2")
	require.NoError(t, err)
	defer release2()
}

func TestMemoryLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)

	release()
	release()

	again, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)
	again()
}
