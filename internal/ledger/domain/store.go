package domain

import (
	"context"
	"iter"
)

// Table is an append-only table. Scan yields rows in insertion order and may
// be ranged over more than once.
type Table[T any] interface {
	Append(ctx context.Context, row *T) error
	// AppendBatch writes all rows contiguously, in order, or none of them.
	AppendBatch(ctx context.Context, rows []*T) error
	Scan(ctx context.Context) iter.Seq2[*T, error]
	RowCount(ctx context.Context) (int64, error)
}

type Store interface {
	Bags() Table[Bag]
	UsageRecords() Table[UsageRecord]

	// FindBag returns the first bag with the given id, or ErrBagNotFound.
	FindBag(ctx context.Context, bagID string) (*Bag, error)
	// MarkBagUsed moves the first matching PRODUCED bag to USED and reports
	// how many rows changed.
	MarkBagUsed(ctx context.Context, bagID, siteID string) (int64, error)

	// Atomic runs fn against a store whose writes commit together or not at all.
	Atomic(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

// BagIDScanner is implemented by stores that can narrow a bag id scan by
// prefix without reading every row.
type BagIDScanner interface {
	ScanBagIDs(ctx context.Context, prefix string) iter.Seq2[string, error]
}
