// Package gormstore persists the ledger tables through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/pkg/db"
	"github.com/smallbiznis/cemtrack/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	// AutoProvision creates missing tables on first access.
	AutoProvision bool
	// PageSize bounds rows fetched per scan query. Zero uses the repository default.
	PageSize int
}

type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	opts  Options
	prov  *provisioner

	bags  repository.Repository[domain.Bag]
	usage repository.Repository[domain.UsageRecord]
}

type provisioner struct {
	mu   sync.Mutex
	done bool
}

func New(conn *gorm.DB, genID *snowflake.Node, log *zap.Logger, opts Options) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		db:    conn,
		log:   log.Named("ledger.gormstore"),
		genID: genID,
		opts:  opts,
		prov:  &provisioner{},
	}
	s.bags = repository.WithPageSize(
		repository.ProvideStore[domain.Bag](conn, "row_id", func(b *domain.Bag) int64 { return b.RowID.Int64() }),
		opts.PageSize,
	)
	s.usage = repository.WithPageSize(
		repository.ProvideStore[domain.UsageRecord](conn, "row_id", func(u *domain.UsageRecord) int64 { return u.RowID.Int64() }),
		opts.PageSize,
	)
	return s
}

func (s *Store) withTx(tx *gorm.DB) *Store {
	clone := *s
	clone.db = tx
	clone.bags = s.bags.WithTrx(tx)
	clone.usage = s.usage.WithTrx(tx)
	return &clone
}

func (s *Store) Bags() domain.Table[domain.Bag] {
	return &table[domain.Bag]{
		s:    s,
		repo: s.bags,
		assign: func(b *domain.Bag, id snowflake.ID) {
			if b.RowID == 0 {
				b.RowID = id
			}
		},
	}
}

func (s *Store) UsageRecords() domain.Table[domain.UsageRecord] {
	return &table[domain.UsageRecord]{
		s:    s,
		repo: s.usage,
		assign: func(u *domain.UsageRecord, id snowflake.ID) {
			if u.RowID == 0 {
				u.RowID = id
			}
		},
	}
}

func (s *Store) FindBag(ctx context.Context, bagID string) (*domain.Bag, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	bag, err := s.bags.FindOne(ctx, &domain.Bag{BagID: bagID})
	if err != nil {
		return nil, classify(err)
	}
	if bag == nil {
		return nil, domain.ErrBagNotFound
	}
	return bag, nil
}

func (s *Store) MarkBagUsed(ctx context.Context, bagID, siteID string) (int64, error) {
	bag, err := s.FindBag(ctx, bagID)
	if err != nil {
		return 0, err
	}
	if bag.Status != domain.BagStatusProduced {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&domain.Bag{}).
		Where("row_id = ? AND status = ?", bag.RowID, domain.BagStatusProduced).
		Updates(map[string]any{
			"status":          domain.BagStatusUsed,
			"current_site_id": siteID,
		})
	if result.Error != nil {
		return 0, classify(result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(domain.Store) error) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.withTx(tx))
	})
	return classify(err)
}

// ScanBagIDs yields bag ids starting with prefix in insertion order.
func (s *Store) ScanBagIDs(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := s.ensureSchema(ctx); err != nil {
			yield("", err)
			return
		}
		pattern := escapeLike(prefix) + "%"
		scope := func(stmt *gorm.DB) *gorm.DB {
			return stmt.Select("row_id", "bag_id").Where("bag_id LIKE ? ESCAPE '!'", pattern)
		}
		for bag, err := range s.bags.Iterate(ctx, scope) {
			if err != nil {
				yield("", classify(err))
				return
			}
			if !yield(bag.BagID, nil) {
				return
			}
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureSchema creates the ledger tables once per store when auto-provisioning
// is enabled. Failures are retried on the next access.
func (s *Store) ensureSchema(ctx context.Context) error {
	if !s.opts.AutoProvision {
		return nil
	}
	s.prov.mu.Lock()
	defer s.prov.mu.Unlock()
	if s.prov.done {
		return nil
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&domain.Bag{}, &domain.UsageRecord{}); err != nil {
		return fmt.Errorf("%w: provision ledger tables: %v", domain.ErrStoreUnavailable, err)
	}
	s.prov.done = true
	s.log.Info("ledger tables provisioned")
	return nil
}

func (s *Store) nextID() snowflake.ID {
	return s.genID.Generate()
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrSchemaMissing),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrBagNotFound),
		errors.Is(err, domain.ErrDuplicateUsage),
		errors.Is(err, domain.ErrLockTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case db.IsMissingTableErr(err):
		return fmt.Errorf("%w: %v", domain.ErrSchemaMissing, err)
	case db.IsConnectionErr(err):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	case db.IsDuplicateKeyErr(err):
		// Two writers share a snowflake node id.
		return fmt.Errorf("row id collision: %w", err)
	default:
		return err
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.BagIDScanner = (*Store)(nil)
)
