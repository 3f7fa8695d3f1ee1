package store

import (
	"database/sql"
	"time"
)

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanNullID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	val := v.Int64
	return &val
}

func scanNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	val := v.Time
	return &val
}
