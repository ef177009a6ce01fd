// Package database opens the backing store and owns the per-driver
// differences (placeholders, locking clauses, migrations) so the
// repositories can share one set of queries.
package database

import (
	"strconv"
	"strings"
)

// Driver names a supported database.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Dialect adapts queries written with '?' placeholders to a driver.
type Dialect struct {
	Driver Driver
}

// Rebind rewrites '?' placeholders to $1..$n for PostgreSQL.  Question
// marks inside single quoted literals are left alone.
func (d Dialect) Rebind(q string) string {
	if d.Driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(q); i++ {
		ch := q[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// ForUpdate returns the row locking suffix for SELECT statements.
// SQLite has no row locks; its transactions already serialize writers.
func (d Dialect) ForUpdate() string {
	if d.Driver == DriverSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// Returning reports whether generated ids are read with RETURNING
// instead of LastInsertId.
func (d Dialect) Returning() bool { return d.Driver == DriverPostgres }

// GooseDialect is the dialect name goose expects for this driver.
func (d Dialect) GooseDialect() string {
	if d.Driver == DriverSQLite {
		return "sqlite3"
	}
	return string(d.Driver)
}

// MigrationsDir is the embedded directory holding this driver's migrations.
func (d Dialect) MigrationsDir() string {
	return "migrations/" + string(d.Driver)
}
