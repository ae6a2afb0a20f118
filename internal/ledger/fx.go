package ledger

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cemtrack/internal/config"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/ledger/store/gormstore"
	"github.com/smallbiznis/cemtrack/internal/ledger/store/memstore"
	"github.com/smallbiznis/cemtrack/internal/migration"
	"github.com/smallbiznis/cemtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module wires the ledger store for the configured backend. The gorm backend
// also brings in the database connection and migrations.
func Module(cfg config.Config) fx.Option {
	if cfg.Store.Backend == config.StoreBackendMemory {
		return fx.Module("ledger.store",
			fx.Provide(NewMemoryStore),
		)
	}
	return fx.Module("ledger.store",
		db.Module,
		migration.Module,
		fx.Provide(NewGormStore),
	)
}

type GormStoreParams struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewGormStore(p GormStoreParams) domain.Store {
	return gormstore.New(p.DB, p.GenID, p.Log, gormstore.Options{
		AutoProvision: p.Cfg.Store.AutoProvision,
	})
}

func NewMemoryStore(lc fx.Lifecycle, log *zap.Logger) domain.Store {
	store := memstore.New()
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	log.Named("ledger.store").Warn("using in-memory ledger store; data is lost on restart")
	return store
}
