package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config selects and addresses the backing database.  MySQL is addressed
// by its parts, PostgreSQL and SQLite by URL (a DSN or a file path).
type Config struct {
	Driver Driver
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	URL    string
}

// Open connects to the configured database, verifies the connection and
// returns the handle together with the dialect the repositories need.
func Open(cfg Config) (*sql.DB, Dialect, error) {
	d := Dialect{Driver: cfg.Driver}
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverMySQL, "":
		d.Driver = DriverMySQL
		db, err = openMySQL(cfg)
	case DriverPostgres:
		db, err = openPostgres(cfg.URL)
	case DriverSQLite:
		db, err = openSQLite(cfg.URL)
	default:
		return nil, d, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, d, err
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, d, err
	}
	return db, d, nil
}

func openMySQL(cfg Config) (*sql.DB, error) {
	auth := cfg.User
	if cfg.Pass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, cfg.Host, cfg.Port, cfg.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func openPostgres(url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	// Simple protocol lets the server infer DATE and TIME parameter types
	// from the columns, so the same string encoded values work everywhere.
	dsn := url
	switch {
	case strings.Contains(dsn, "default_query_exec_mode"):
	case strings.Contains(dsn, "://") && strings.Contains(dsn, "?"):
		dsn += "&default_query_exec_mode=simple_protocol"
	case strings.Contains(dsn, "://"):
		dsn += "?default_query_exec_mode=simple_protocol"
	default:
		dsn += " default_query_exec_mode=simple_protocol"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// openSQLite opens a file or in-memory database.  SQLite allows a single
// writer, so the pool is limited to one connection; for ":memory:" this
// also keeps every caller on the same database.
func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if !strings.HasPrefix(path, ":memory:") {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}
