package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/cemtrack/internal/config"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T, timeout time.Duration) (*Coordinator, *LocalLocker) {
	t.Helper()
	policy := config.DefaultLedgerPolicy()
	policy.LockTimeout = timeout
	locker := NewLocalLocker()
	return NewCoordinator(CoordinatorParams{
		Locker: locker,
		Policy: config.NewStaticLedgerPolicy(policy),
		Log:    zap.NewNop(),
	}), locker
}

func assertUnlocked(t *testing.T, l *LocalLocker) {
	t.Helper()
	release, err := l.Acquire(context.Background(), 10*time.Millisecond)
	require.NoError(t, err, "lock should have been released")
	release()
}

func TestCoordinatorReleasesAfterSuccess(t *testing.T) {
	c, l := newTestCoordinator(t, time.Second)

	ran := false
	err := c.Do(context.Background(), "test", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assertUnlocked(t, l)
}

func TestCoordinatorReleasesAfterError(t *testing.T) {
	c, l := newTestCoordinator(t, time.Second)
	boom := errors.New("boom")

	err := c.Do(context.Background(), "test", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assertUnlocked(t, l)
}

func TestCoordinatorReleasesAfterPanic(t *testing.T) {
	c, l := newTestCoordinator(t, time.Second)

	func() {
		defer func() { _ = recover() }()
		_ = c.Do(context.Background(), "test", func(context.Context) error { panic("boom") })
	}()
	assertUnlocked(t, l)
}

func TestCoordinatorTimeoutSkipsCallback(t *testing.T) {
	c, l := newTestCoordinator(t, 20*time.Millisecond)

	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	ran := false
	err = c.Do(context.Background(), "test", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.False(t, ran)
}

func TestCoordinatorUsesReloadedTimeout(t *testing.T) {
	policy := config.DefaultLedgerPolicy()
	policy.LockTimeout = time.Hour
	holder := config.NewStaticLedgerPolicy(policy)
	locker := NewLocalLocker()
	c := NewCoordinator(CoordinatorParams{Locker: locker, Policy: holder, Log: zap.NewNop()})

	release, err := locker.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	policy.LockTimeout = 10 * time.Millisecond
	holder.Set(policy)

	err = c.Do(context.Background(), "test", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
}
