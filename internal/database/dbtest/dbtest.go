// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/database"
)

// Open returns a fresh, fully migrated in-memory database.  It is closed
// when the test ends.
func Open(t testing.TB) (*sql.DB, database.Dialect) {
	t.Helper()
	db, d, err := database.Open(database.Config{Driver: database.DriverSQLite, URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, d, zap.NewNop()).Run(context.Background()))
	return db, d
}

// Exec runs a statement for fixture setup and fails the test on error.
func Exec(t testing.TB, db *sql.DB, q string, args ...any) {
	t.Helper()
	_, err := db.Exec(q, args...)
	require.NoError(t, err)
}

// BlockWindow inserts a weekly blocked window fixture.
func BlockWindow(t testing.TB, db *sql.DB, resourceID uint64, weekday int, start, end string) {
	t.Helper()
	Exec(t, db, `INSERT INTO blocked_windows (resource_id, weekday, start_time, end_time) VALUES (?, ?, ?, ?)`,
		resourceID, weekday, start, end)
}

// FailInserts makes every INSERT into table abort, for atomicity tests.
func FailInserts(t testing.TB, db *sql.DB, table string) {
	t.Helper()
	Exec(t, db, `CREATE TRIGGER fail_insert_`+table+` BEFORE INSERT ON `+table+
		` BEGIN SELECT RAISE(ABORT, 'forced failure'); END`)
}

// FailUpdates makes every UPDATE of table abort.
func FailUpdates(t testing.TB, db *sql.DB, table string) {
	t.Helper()
	Exec(t, db, `CREATE TRIGGER fail_update_`+table+` BEFORE UPDATE ON `+table+
		` BEGIN SELECT RAISE(ABORT, 'forced failure'); END`)
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
