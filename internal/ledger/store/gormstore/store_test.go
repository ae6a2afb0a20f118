package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupStore(t *testing.T, opts Options) (*Store, *gorm.DB) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return New(conn, mustNode(t), zap.NewNop(), opts), conn
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func newBag(id string) *domain.Bag {
	return &domain.Bag{
		BagID:     id,
		BatchNo:   "B100",
		PlantID:   "P1",
		CreatedAt: time.Date(2024, 3, 7, 8, 0, 0, 0, time.UTC),
		Status:    domain.BagStatusProduced,
	}
}

func collectBagIDs(t *testing.T, ctx context.Context, table domain.Table[domain.Bag]) []string {
	t.Helper()
	var ids []string
	for bag, err := range table.Scan(ctx) {
		require.NoError(t, err)
		ids = append(ids, bag.BagID)
	}
	return ids
}

func TestTablesAreProvisionedLazily(t *testing.T) {
	ctx := context.Background()
	store, conn := setupStore(t, Options{AutoProvision: true})

	assert.False(t, conn.Migrator().HasTable(&domain.Bag{}))

	count, err := store.Bags().RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.True(t, conn.Migrator().HasTable(&domain.Bag{}))
	assert.True(t, conn.Migrator().HasTable(&domain.UsageRecord{}))

	// Provisioning twice is harmless.
	store.prov.done = false
	_, err = store.UsageRecords().RowCount(ctx)
	require.NoError(t, err)
}

func TestSchemaMissingWithoutAutoProvision(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: false})

	err := store.Bags().Append(ctx, newBag("CEM-P1-20240307-B100-00001"))
	assert.ErrorIs(t, err, domain.ErrSchemaMissing)

	_, err = store.FindBag(ctx, "CEM-P1-20240307-B100-00001")
	assert.ErrorIs(t, err, domain.ErrSchemaMissing)

	for _, err := range store.Bags().Scan(ctx) {
		assert.ErrorIs(t, err, domain.ErrSchemaMissing)
	}

	count, err := store.Bags().RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAppendBatchPreservesOrderAcrossPages(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true, PageSize: 3})

	var rows []*domain.Bag
	var want []string
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("CEM-P1-20240307-B100-%05d", i)
		rows = append(rows, newBag(id))
		want = append(want, id)
	}
	require.NoError(t, store.Bags().AppendBatch(ctx, rows))

	for _, row := range rows {
		assert.NotZero(t, row.RowID)
	}

	assert.Equal(t, want, collectBagIDs(t, ctx, store.Bags()))
	// A second range starts over from the first row.
	assert.Equal(t, want, collectBagIDs(t, ctx, store.Bags()))

	count, err := store.Bags().RowCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, count)
}

func TestAppendIsVisibleToNextScan(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})

	require.NoError(t, store.Bags().Append(ctx, newBag("A")))
	assert.Equal(t, []string{"A"}, collectBagIDs(t, ctx, store.Bags()))

	require.NoError(t, store.Bags().Append(ctx, newBag("B")))
	assert.Equal(t, []string{"A", "B"}, collectBagIDs(t, ctx, store.Bags()))
}

func TestAppendBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})

	first := newBag("A")
	first.RowID = 42
	second := newBag("B")
	second.RowID = 42

	err := store.Bags().AppendBatch(ctx, []*domain.Bag{first, second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row id collision")

	count, err := store.Bags().RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindBagReturnsFirstInsertedRow(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})

	first := newBag("DUP")
	first.PlantID = "FIRST"
	second := newBag("DUP")
	second.PlantID = "SECOND"
	require.NoError(t, store.Bags().AppendBatch(ctx, []*domain.Bag{first, second}))

	bag, err := store.FindBag(ctx, "DUP")
	require.NoError(t, err)
	assert.Equal(t, "FIRST", bag.PlantID)

	_, err = store.FindBag(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBagNotFound)
}

func TestMarkBagUsedTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})
	require.NoError(t, store.Bags().Append(ctx, newBag("A")))

	changed, err := store.MarkBagUsed(ctx, "A", "SITE-9")
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	bag, err := store.FindBag(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.BagStatusUsed, bag.Status)
	assert.Equal(t, "SITE-9", bag.CurrentSiteID)

	changed, err = store.MarkBagUsed(ctx, "A", "SITE-10")
	require.NoError(t, err)
	assert.Zero(t, changed)

	bag, err = store.FindBag(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "SITE-9", bag.CurrentSiteID)

	_, err = store.MarkBagUsed(ctx, "missing", "SITE-9")
	assert.ErrorIs(t, err, domain.ErrBagNotFound)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})
	require.NoError(t, store.Bags().Append(ctx, newBag("A")))

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx domain.Store) error {
		if err := tx.UsageRecords().Append(ctx, &domain.UsageRecord{
			UsageID:   "u1",
			BagID:     "A",
			WorkerID:  "w1",
			SiteID:    "S1",
			Timestamp: time.Now().UTC(),
			PhotoFlag: domain.PhotoFlagAbsent,
		}); err != nil {
			return err
		}
		if _, err := tx.MarkBagUsed(ctx, "A", "S1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := store.UsageRecords().RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	bag, err := store.FindBag(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.BagStatusProduced, bag.Status)
}

func TestAtomicCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})
	require.NoError(t, store.Bags().Append(ctx, newBag("A")))

	err := store.Atomic(ctx, func(tx domain.Store) error {
		if err := tx.UsageRecords().Append(ctx, &domain.UsageRecord{
			UsageID:   "u1",
			BagID:     "A",
			WorkerID:  "w1",
			SiteID:    "S1",
			Timestamp: time.Now().UTC(),
			PhotoFlag: domain.PhotoFlagPresent,
			Metadata:  map[string]any{"geo": map[string]any{"lat": -6.2, "lng": 106.8}},
		}); err != nil {
			return err
		}
		_, err := tx.MarkBagUsed(ctx, "A", "S1")
		return err
	})
	require.NoError(t, err)

	var records []*domain.UsageRecord
	for rec, err := range store.UsageRecords().Scan(ctx) {
		require.NoError(t, err)
		records = append(records, rec)
	}
	require.Len(t, records, 1)
	assert.Equal(t, domain.PhotoFlagPresent, records[0].PhotoFlag)
	assert.Contains(t, records[0].Metadata, "geo")
}

func TestScanBagIDsMatchesPrefixLiterally(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})

	require.NoError(t, store.Bags().AppendBatch(ctx, []*domain.Bag{
		newBag("CEM-P_1-20240307-B1-00001"),
		newBag("CEM-PX1-20240307-B1-00002"),
		newBag("CEM-P_1-20240307-B1-00003"),
		newBag("CEM-P%1-20240307-B1-00004"),
	}))

	var ids []string
	for id, err := range store.ScanBagIDs(ctx, "CEM-P_1-20240307-B1-") {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"CEM-P_1-20240307-B1-00001", "CEM-P_1-20240307-B1-00003"}, ids)
}

func TestPingAfterClose(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, Options{AutoProvision: true})

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreUnavailable)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "a!_b!%c!!", escapeLike("a_b%c!"))
}
