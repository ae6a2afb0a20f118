package repository

import (
	"context"
	"iter"

	"gorm.io/gorm"
)

// Repository is an append-oriented generic table over gorm.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	FindOne(ctx context.Context, query *T) (*T, error)
	Count(ctx context.Context) (int64, error)
	// Iterate pages through the table ordered by the key column.
	Iterate(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) iter.Seq2[*T, error]
}
