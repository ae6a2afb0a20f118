package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/cemtrack/internal/clock"
	"github.com/smallbiznis/cemtrack/internal/config"
	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/lock"
	obscontext "github.com/smallbiznis/cemtrack/internal/observability/context"
	"github.com/smallbiznis/cemtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cemtrack/internal/observability/metrics"
	"github.com/smallbiznis/cemtrack/internal/observability/tracing"
	usagedomain "github.com/smallbiznis/cemtrack/internal/usage/domain"
	"github.com/smallbiznis/cemtrack/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

	newID func() string
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		store:       p.Store,
		coordinator: p.Coordinator,
		policy:      p.Policy,
		clock:       p.Clock,
		log:         p.Log.Named("usage.service"),
		metrics:     p.Metrics,
		newID:       uuid.NewString,
	}
}

// RecordUsage appends one usage event for a bag and, depending on the ledger
// policy, moves the bag to USED in the same atomic write.
func (s *Service) RecordUsage(ctx context.Context, req usagedomain.RecordUsageRequest) (resp *usagedomain.RecordUsageResponse, err error) {
	policy := s.policy.Get()

	bagID := strings.TrimSpace(req.BagID)
	if bagID == "" {
		return nil, ledgerdomain.ErrInvalidBagID
	}
	workerID := strings.TrimSpace(req.WorkerID)
	if workerID == "" {
		return nil, ledgerdomain.ErrInvalidWorker
	}
	siteID := strings.TrimSpace(req.SiteID)
	if siteID == "" {
		siteID = policy.DefaultSiteID
	}
	flag := photoFlag(req.PhotoBase64)
	ctx = obscontext.WithActor(ctx, "worker", workerID)

	ctx, span := tracing.StartSpan(ctx, "usage.RecordUsage",
		attribute.String("bag_id", bagID),
		attribute.String("site_id", siteID),
		attribute.String("photo_flag", string(flag)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	record := &ledgerdomain.UsageRecord{
		UsageID:   s.newID(),
		BagID:     bagID,
		WorkerID:  workerID,
		SiteID:    siteID,
		PhotoFlag: flag,
		Metadata:  usageMetadata(req.Geo),
	}

	var duplicate bool
	err = s.coordinator.Do(ctx, "recordUsage", func(ctx context.Context) error {
		bag, err := s.store.FindBag(ctx, bagID)
		switch {
		case errors.Is(err, ledgerdomain.ErrBagNotFound):
			if policy.ValidateBag {
				return err
			}
			bag = nil
		case err != nil:
			return fmt.Errorf("find bag: %w", err)
		}

		duplicate = bag != nil && bag.Status == ledgerdomain.BagStatusUsed
		if duplicate && policy.RejectDuplicateUsage {
			return ledgerdomain.ErrDuplicateUsage
		}

		record.Timestamp = s.clock.Now()
		return s.store.Atomic(ctx, func(tx ledgerdomain.Store) error {
			if err := tx.UsageRecords().Append(ctx, record); err != nil {
				return fmt.Errorf("append usage record: %w", err)
			}
			if !policy.MarkBagUsed || bag == nil || duplicate {
				return nil
			}
			if _, err := tx.MarkBagUsed(ctx, bagID, siteID); err != nil {
				return fmt.Errorf("mark bag used: %w", err)
			}
			return nil
		})
	})

	log := logger.WithContext(ctx, s.log).With(
		zap.String("bag_id", bagID),
		zap.String("site_id", siteID),
	)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrDuplicateUsage) {
			s.metrics.RecordDuplicateUsage(ctx, "rejected")
		}
		log.Warn("record usage failed", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordUsage(ctx, string(flag))
	if duplicate {
		s.metrics.RecordDuplicateUsage(ctx, "recorded")
		log.Warn("usage recorded for bag already marked used", zap.String("usage_id", record.UsageID))
	} else {
		log.Info("usage recorded", zap.String("usage_id", record.UsageID))
	}

	return &usagedomain.RecordUsageResponse{
		Success:   true,
		UsageID:   record.UsageID,
		Duplicate: duplicate,
	}, nil
}

// List returns the usage history of one bag in insertion order. It reads
// without taking the ledger lock.
func (s *Service) List(ctx context.Context, req usagedomain.ListUsageRequest) (usagedomain.ListUsageResponse, error) {
	bagID := strings.TrimSpace(req.BagID)
	if bagID == "" {
		return usagedomain.ListUsageResponse{}, ledgerdomain.ErrInvalidBagID
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	limit := page.Limit()

	after := ""
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return usagedomain.ListUsageResponse{}, err
		}
		after = cursor.ID
	}

	items := make([]*ledgerdomain.UsageRecord, 0, limit+1)
	skipping := after != ""
	for rec, err := range s.store.UsageRecords().Scan(ctx) {
		if err != nil {
			if errors.Is(err, ledgerdomain.ErrSchemaMissing) {
				break
			}
			return usagedomain.ListUsageResponse{}, err
		}
		if rec.BagID != bagID {
			continue
		}
		if skipping {
			skipping = rec.UsageID != after
			continue
		}
		items = append(items, rec)
		if len(items) > limit {
			break
		}
	}
	if skipping {
		return usagedomain.ListUsageResponse{}, pagination.ErrInvalidPageToken
	}

	items, info, err := pagination.BuildCursorPageInfo(items, limit, func(r *ledgerdomain.UsageRecord) string {
		return r.UsageID
	})
	if err != nil {
		return usagedomain.ListUsageResponse{}, err
	}
	return usagedomain.ListUsageResponse{
		PageInfo:     *info,
		UsageRecords: items,
	}, nil
}

func photoFlag(photo string) ledgerdomain.PhotoFlag {
	if strings.TrimSpace(photo) != "" {
		return ledgerdomain.PhotoFlagPresent
	}
	return ledgerdomain.PhotoFlagAbsent
}

func usageMetadata(geo *usagedomain.Geo) datatypes.JSONMap {
	if geo == nil {
		return nil
	}
	return datatypes.JSONMap{
		"geo": map[string]any{
			"lat": geo.Lat,
			"lng": geo.Lng,
		},
	}
}
