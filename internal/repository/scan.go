package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/court-reservation/internal/database"
)

// timestamp normalizes times before they are written: UTC, microsecond
// precision (the finest DATETIME(6) keeps).
func timestamp(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

// nullTime scans timestamp columns from every supported driver.  MySQL
// (parseTime) and pgx return time.Time, SQLite returns text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST", // time.Time.String
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("repository: cannot scan %T into time", src)
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("repository: unrecognized timestamp %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// nullableID maps an optional id to a driver value.
func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...any) error
}

// insertID executes an INSERT and returns the generated id.
func insertID(ctx context.Context, tx *sql.Tx, d database.Dialect, q string, args ...any) (uint64, error) {
	if d.Returning() {
		var id int64
		if err := tx.QueryRowContext(ctx, d.Rebind(q+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return uint64(id), nil
	}
	res, err := tx.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
