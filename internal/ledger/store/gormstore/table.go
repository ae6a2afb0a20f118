package gormstore

import (
	"context"
	"iter"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cemtrack/pkg/db"
	"github.com/smallbiznis/cemtrack/pkg/repository"
)

type table[T any] struct {
	s      *Store
	repo   repository.Repository[T]
	assign func(*T, snowflake.ID)
}

func (t *table[T]) Append(ctx context.Context, row *T) error {
	if err := t.s.ensureSchema(ctx); err != nil {
		return err
	}
	t.assign(row, t.s.nextID())
	return classify(t.repo.Create(ctx, row))
}

func (t *table[T]) AppendBatch(ctx context.Context, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.s.ensureSchema(ctx); err != nil {
		return err
	}
	for _, row := range rows {
		t.assign(row, t.s.nextID())
	}
	return classify(t.repo.BatchCreate(ctx, rows))
}

func (t *table[T]) Scan(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		if err := t.s.ensureSchema(ctx); err != nil {
			yield(nil, err)
			return
		}
		for row, err := range t.repo.Iterate(ctx) {
			if err != nil {
				yield(nil, classify(err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// RowCount reports zero for a table that does not exist yet.
func (t *table[T]) RowCount(ctx context.Context) (int64, error) {
	if err := t.s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	count, err := t.repo.Count(ctx)
	if err != nil {
		if db.IsMissingTableErr(err) {
			return 0, nil
		}
		return 0, classify(err)
	}
	return count, nil
}
