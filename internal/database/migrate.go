package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrator applies the embedded schema migrations with goose.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewMigrator creates a migrator for db.  The handle stays owned by the caller.
func NewMigrator(db *sql.DB, dialect Dialect, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, dialect: dialect, logger: logger}
}

func (mg *Migrator) prepare() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{mg.logger.Sugar()})
	if err := goose.SetDialect(mg.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run applies all pending migrations.
func (mg *Migrator) Run(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := mg.prepare(); err != nil {
		return err
	}

	mg.logger.Info("applying database migrations", zap.String("driver", string(mg.dialect.Driver)))
	if err := goose.UpContext(ctx, mg.db, mg.dialect.MigrationsDir()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	mg.logger.Info("migrations applied")
	return nil
}

// Version reports the current schema version.
func (mg *Migrator) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := mg.prepare(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, mg.db)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// Status logs the applied/pending state of every migration.
func (mg *Migrator) Status(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := mg.prepare(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, mg.db, mg.dialect.MigrationsDir())
}

// gooseLogger routes goose output through zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }
