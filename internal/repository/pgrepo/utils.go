package pgrepo

import (
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

// safeConvertUintToInt32 converts uint to int32 and fails when the value does not fit.
func safeConvertUintToInt32(val uint) (int32, error) {
	if val > uint(math.MaxInt32) {
		return 0, fmt.Errorf("value is out of range: %d", val)
	}
	return int32(val), nil
}

func collect[T any](rows pgx.Rows, scan func(row pgx.Row) (*T, error)) ([]T, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) { //nolint:wrapcheck
		item, err := scan(row)
		if err != nil {
			var zero T
			return zero, err
		}
		return *item, nil
	})
}
