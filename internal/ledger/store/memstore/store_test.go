package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bagIDs(t *testing.T, s *Store) []string {
	t.Helper()
	var ids []string
	for bag, err := range s.Bags().Scan(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, bag.BagID)
	}
	return ids
}

func TestAppendAndScan(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Bags().AppendBatch(ctx, []*domain.Bag{
		{BagID: "A", Status: domain.BagStatusProduced},
		{BagID: "B", Status: domain.BagStatusProduced},
	}))
	require.NoError(t, s.Bags().Append(ctx, &domain.Bag{BagID: "C", Status: domain.BagStatusProduced}))

	assert.Equal(t, []string{"A", "B", "C"}, bagIDs(t, s))
	assert.Equal(t, []string{"A", "B", "C"}, bagIDs(t, s))

	count, err := s.Bags().RowCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = s.UsageRecords().RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanStopsEarly(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bags().AppendBatch(ctx, []*domain.Bag{{BagID: "A"}, {BagID: "B"}}))

	seen := 0
	for range s.Bags().Scan(ctx) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	// The read lock is released after an early break.
	require.NoError(t, s.Bags().Append(ctx, &domain.Bag{BagID: "C"}))
}

func TestMarkBagUsed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bags().Append(ctx, &domain.Bag{BagID: "A", Status: domain.BagStatusProduced}))

	changed, err := s.MarkBagUsed(ctx, "A", "S1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	changed, err = s.MarkBagUsed(ctx, "A", "S2")
	require.NoError(t, err)
	assert.Zero(t, changed)

	bag, err := s.FindBag(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.BagStatusUsed, bag.Status)
	assert.Equal(t, "S1", bag.CurrentSiteID)

	_, err = s.MarkBagUsed(ctx, "missing", "S1")
	assert.ErrorIs(t, err, domain.ErrBagNotFound)
}

func TestAtomicRestoresOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bags().Append(ctx, &domain.Bag{BagID: "A", Status: domain.BagStatusProduced}))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx domain.Store) error {
		require.NoError(t, tx.UsageRecords().Append(ctx, &domain.UsageRecord{UsageID: "u1", BagID: "A"}))
		require.NoError(t, tx.Bags().Append(ctx, &domain.Bag{BagID: "B"}))
		_, err := tx.MarkBagUsed(ctx, "A", "S1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"A"}, bagIDs(t, s))
	bag, err := s.FindBag(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.BagStatusProduced, bag.Status)

	count, err := s.UsageRecords().RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanBagIDs(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bags().AppendBatch(ctx, []*domain.Bag{
		{BagID: "CEM-P1-20240307-B1-00001"},
		{BagID: "CEM-P1-20240307-B2-00001"},
		{BagID: "CEM-P1-20240307-B1-00002"},
	}))

	var ids []string
	for id, err := range s.ScanBagIDs(ctx, "CEM-P1-20240307-B1-") {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"CEM-P1-20240307-B1-00001", "CEM-P1-20240307-B1-00002"}, ids)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), domain.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Bags().Append(ctx, &domain.Bag{BagID: "A"}), domain.ErrStoreUnavailable)
	_, err := s.Bags().RowCount(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Bags().AppendBatch(ctx, []*domain.Bag{{BagID: "x"}, {BagID: "y"}})
		}()
	}
	wg.Wait()

	count, err := s.Bags().RowCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 40, count)
}
