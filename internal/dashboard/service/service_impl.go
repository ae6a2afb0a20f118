package service

import (
	"context"
	"fmt"

	dashboard "github.com/smallbiznis/cemtrack/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Store ledgerdomain.Store
	Log   *zap.Logger
}

type Service struct {
	store ledgerdomain.Store
	log   *zap.Logger
}

func NewService(p ServiceParam) dashboard.Service {
	return &Service{
		store: p.Store,
		log:   p.Log.Named("dashboard.service"),
	}
}

// GetStats counts rows without taking the ledger lock, so totals may trail a
// write that is still in flight.
func (s *Service) GetStats(ctx context.Context) (stats *dashboard.Stats, err error) {
	ctx, span := tracing.StartSpan(ctx, "dashboard.GetStats")
	defer func() { tracing.EndSpan(span, err) }()

	bags, err := s.store.Bags().RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bags: %w", err)
	}
	usage, err := s.store.UsageRecords().RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count usage records: %w", err)
	}

	return &dashboard.Stats{
		TotalBags:         bags,
		TotalUsageRecords: usage,
	}, nil
}
