package service

import (
	"context"
	"fmt"
	"strings"

	bagdomain "github.com/smallbiznis/cemtrack/internal/bag/domain"
	"github.com/smallbiznis/cemtrack/internal/bagid"
	"github.com/smallbiznis/cemtrack/internal/clock"
	"github.com/smallbiznis/cemtrack/internal/config"
	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/lock"
	"github.com/smallbiznis/cemtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cemtrack/internal/observability/metrics"
	"github.com/smallbiznis/cemtrack/internal/observability/tracing"
	"github.com/smallbiznis/cemtrack/internal/sequence"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Store       ledgerdomain.Store
	Coordinator *lock.Coordinator
	Policy      *config.LedgerPolicyHolder
	Clock       clock.Clock
	Log         *zap.Logger
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	store       ledgerdomain.Store
	coordinator *lock.Coordinator
	policy      *config.LedgerPolicyHolder
	clock       clock.Clock
	log         *zap.Logger
	metrics     *obsmetrics.Metrics
}

func NewService(p ServiceParam) bagdomain.Service {
	return &Service{
		store:       p.Store,
		coordinator: p.Coordinator,
		policy:      p.Policy,
		clock:       p.Clock,
		log:         p.Log.Named("bag.service"),
		metrics:     p.Metrics,
	}
}

// RegisterBatch allocates count consecutive bag ids for plant and batch on
// the current day and appends them as PRODUCED bags. Allocation and append
// happen under the ledger lock.
func (s *Service) RegisterBatch(ctx context.Context, req bagdomain.RegisterBatchRequest) (resp *bagdomain.RegisterBatchResponse, err error) {
	policy := s.policy.Get()

	plant := strings.TrimSpace(req.Plant)
	batch := strings.TrimSpace(req.Batch)
	if plant == "" {
		return nil, ledgerdomain.ErrInvalidPlant
	}
	if batch == "" {
		return nil, ledgerdomain.ErrInvalidBatch
	}
	if req.Count < 1 || req.Count > policy.MaxBatchSize {
		return nil, ledgerdomain.ErrInvalidCount
	}

	ctx, span := tracing.StartSpan(ctx, "bag.RegisterBatch",
		attribute.String("plant_id", plant),
		attribute.String("batch_no", batch),
		attribute.Int("count", req.Count),
	)
	defer func() { tracing.EndSpan(span, err) }()

	var ids []string
	err = s.coordinator.Do(ctx, "registerBatch", func(ctx context.Context) error {
		now := s.clock.Now().In(policy.Location())
		key := sequence.Key{Plant: plant, Batch: batch, Date: now}

		start, err := sequence.ForPolicy(policy.SequencePolicy, s.store).Next(ctx, key, req.Count)
		if err != nil {
			return err
		}

		rows := make([]*ledgerdomain.Bag, 0, req.Count)
		ids = make([]string, 0, req.Count)
		for i := 0; i < req.Count; i++ {
			id := bagid.Generate(plant, batch, start+i, now)
			ids = append(ids, id)
			rows = append(rows, &ledgerdomain.Bag{
				BagID:     id,
				BatchNo:   batch,
				PlantID:   plant,
				CreatedAt: now,
				Status:    ledgerdomain.BagStatusProduced,
			})
		}

		if err := s.store.Bags().AppendBatch(ctx, rows); err != nil {
			return fmt.Errorf("append bags: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("register batch failed",
			zap.String("plant_id", plant),
			zap.String("batch_no", batch),
			zap.Int("count", req.Count),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordBagsRegistered(ctx, plant, len(ids))
	logger.WithContext(ctx, s.log).Info("batch registered",
		zap.String("plant_id", plant),
		zap.String("batch_no", batch),
		zap.Int("count", len(ids)),
		zap.String("first_bag_id", ids[0]),
		zap.String("last_bag_id", ids[len(ids)-1]),
	)

	return &bagdomain.RegisterBatchResponse{
		Success: true,
		Count:   len(ids),
		IDs:     ids,
	}, nil
}
