package memstore

import (
	"context"
	"iter"

	"github.com/bwmarrin/snowflake"
)

type table[T any] struct {
	s     *Store
	rows  func(*state) *[]T
	setID func(*T, snowflake.ID)
}

func (t *table[T]) Append(ctx context.Context, row *T) error {
	return t.AppendBatch(ctx, []*T{row})
}

func (t *table[T]) AppendBatch(ctx context.Context, rows []*T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	unlock, err := t.s.write()
	if err != nil {
		return err
	}
	defer unlock()

	dst := t.rows(t.s.st)
	for _, row := range rows {
		t.s.st.nextID++
		t.setID(row, snowflake.ID(t.s.st.nextID))
		*dst = append(*dst, *row)
	}
	return nil
}

func (t *table[T]) Scan(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		unlock, err := t.s.read()
		if err != nil {
			yield(nil, err)
			return
		}
		src := *t.rows(t.s.st)
		snapshot := make([]T, len(src))
		copy(snapshot, src)
		unlock()

		for i := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&snapshot[i], nil) {
				return
			}
		}
	}
}

func (t *table[T]) RowCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	unlock, err := t.s.read()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return int64(len(*t.rows(t.s.st))), nil
}
