package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts items into table with the COPY protocol. row maps
// one item to its column values, in the order of columns.
func CopyFrom[T any](ctx context.Context, c Copier, table string, columns []string, items []T, row func(T) []any) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	src := pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
		return row(items[i]), nil
	})
	n, err := c.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}
