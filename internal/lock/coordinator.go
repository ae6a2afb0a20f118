package lock

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/cemtrack/internal/config"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type CoordinatorParams struct {
	fx.In

	Locker  Locker
	Policy  *config.LedgerPolicyHolder
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// Coordinator runs ledger mutations one at a time.
type Coordinator struct {
	locker  Locker
	policy  *config.LedgerPolicyHolder
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewCoordinator(p CoordinatorParams) *Coordinator {
	return &Coordinator{
		locker:  p.Locker,
		policy:  p.Policy,
		log:     p.Log.Named("lock.coordinator"),
		metrics: p.Metrics,
	}
}

// Do holds the ledger lock while fn runs. The lock is released on every exit
// from fn, panics included. The wait is bounded by the policy lock timeout.
func (c *Coordinator) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	timeout := c.policy.Get().LockTimeout

	start := time.Now()
	release, err := c.locker.Acquire(ctx, timeout)
	waited := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrLockTimeout) {
			outcome = "timeout"
			c.log.Warn("ledger lock timeout",
				zap.String("operation", op),
				zap.Duration("timeout", timeout),
			)
		}
		c.metrics.RecordLockWait(ctx, op, outcome, waited)
		return err
	}
	c.metrics.RecordLockWait(ctx, op, "acquired", waited)
	defer release()

	return fn(ctx)
}
