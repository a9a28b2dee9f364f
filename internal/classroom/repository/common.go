package repository

import (
	"database/sql"
	"time"
)

// Clock supplies the current time; tests replace it to control timestamps.
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}
