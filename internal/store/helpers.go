package store

import (
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
)

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeFormat is RFC 3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing fractional zeros, which breaks lexicographic comparisons like the
// available_at gate in ClaimNext for mixed-precision values.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
// Concurrent inserts of the same catalog entity rely on this to fall back to
// a refetch instead of surfacing the error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// SQLITE_CONSTRAINT is the low byte; extended codes add detail.
		if sqliteErr.Code()&0xff == 19 {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
