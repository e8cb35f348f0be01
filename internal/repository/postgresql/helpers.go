package postgresql

import (
	"database/sql/driver"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Numeric columns are scanned as text and parsed, so the database stays the
// source of truth for precision.
func parseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing numeric column %q: %w", s, err)
	}
	return d, nil
}

func intArray(ids []int) driver.Valuer {
	arr := make([]int64, len(ids))
	for i, id := range ids {
		arr[i] = int64(id)
	}
	return pq.Array(arr)
}
