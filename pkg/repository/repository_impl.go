package repository

import (
	"context"
	"errors"
	"iter"

	"gorm.io/gorm"
)

const defaultPageSize = 500

// KeyFunc returns the ordering key of a row.
type KeyFunc[T any] func(*T) int64

type store[T any] struct {
	db       *gorm.DB
	keyCol   string
	key      KeyFunc[T]
	pageSize int
}

// ProvideStore builds a Repository ordered by keyCol. key must return the
// value of keyCol for a row.
func ProvideStore[T any](db *gorm.DB, keyCol string, key KeyFunc[T]) Repository[T] {
	return &store[T]{db: db, keyCol: keyCol, key: key, pageSize: defaultPageSize}
}

// WithPageSize overrides how many rows Iterate fetches per query.
func WithPageSize[T any](r Repository[T], size int) Repository[T] {
	s, ok := r.(*store[T])
	if !ok || size <= 0 {
		return r
	}
	clone := *s
	clone.pageSize = size
	return &clone
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	clone := *r
	clone.db = tx
	return &clone
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(resources, r.pageSize).Error
	})
}

func (r *store[T]) FindOne(ctx context.Context, query *T) (*T, error) {
	var result T
	err := r.db.WithContext(ctx).Where(query).Order(r.keyCol + " ASC").First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Count(&count).Error
	return count, err
}

func (r *store[T]) Iterate(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		var (
			after   int64
			started bool
		)
		for {
			stmt := r.db.WithContext(ctx).Model(new(T)).Scopes(scopes...)
			if started {
				stmt = stmt.Where(r.keyCol+" > ?", after)
			}

			var page []*T
			if err := stmt.Order(r.keyCol + " ASC").Limit(r.pageSize).Find(&page).Error; err != nil {
				yield(nil, err)
				return
			}

			for _, row := range page {
				if !yield(row, nil) {
					return
				}
			}
			if len(page) < r.pageSize {
				return
			}
			after = r.key(page[len(page)-1])
			started = true
		}
	}
}
