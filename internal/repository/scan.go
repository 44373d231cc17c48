package repository

import (
	"strconv"
	"time"

	"github.com/ederavi/bistro-pos/internal/database"
)

// Helpers for reading typed values out of builder rows. The MySQL driver
// hands back int64/time.Time for typed columns, but counts and flags can
// also arrive as strings depending on the statement, so each helper accepts
// both.

func rowInt64(r database.Row, col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func rowString(r database.Row, col string) string {
	if s, ok := r[col].(string); ok {
		return s
	}
	return ""
}

func rowBool(r database.Row, col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v == "1" || v == "true"
	default:
		return false
	}
}

func rowTime(r database.Row, col string) *time.Time {
	if t, ok := r[col].(time.Time); ok {
		return &t
	}
	return nil
}
