package lock

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
)

// LocalLocker is a process-wide single-slot semaphore.
type LocalLocker struct {
	slot chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slot: make(chan struct{}, 1)}
}

func (l *LocalLocker) Acquire(ctx context.Context, timeout time.Duration) (func(), error) {
	select {
	case l.slot <- struct{}{}:
		return l.releaser(), nil
	default:
	}

	if timeout <= 0 {
		return nil, domain.ErrLockTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.slot <- struct{}{}:
		return l.releaser(), nil
	case <-timer.C:
		return nil, domain.ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-l.slot })
	}
}
