package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/config"
	"github.com/iliyamo/court-reservation/internal/database"
	"github.com/iliyamo/court-reservation/internal/handler"
	"github.com/iliyamo/court-reservation/internal/processor"
	"github.com/iliyamo/court-reservation/internal/queue"
	"github.com/iliyamo/court-reservation/internal/repository"
	"github.com/iliyamo/court-reservation/internal/router"
	"github.com/iliyamo/court-reservation/internal/service"
)

// App wires the long lived dependencies of the HTTP server.
type App struct {
	DB      *sql.DB
	Store   *repository.Store
	Service *service.RequestService
	Events  queue.Publisher
	Redis   *redis.Client
	Echo    *echo.Echo
	Logger  *zap.Logger
}

// OpenDB connects to the configured database and applies pending
// migrations.
func OpenDB(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sql.DB, database.Dialect, error) {
	db, d, err := database.Open(cfg.DB)
	if err != nil {
		return nil, d, err
	}
	if err := database.NewMigrator(db, d, logger).Run(ctx); err != nil {
		_ = db.Close()
		return nil, d, fmt.Errorf("migrate: %w", err)
	}
	return db, d, nil
}

// New builds the server.  Redis and RabbitMQ are optional: without Redis
// caching and rate limiting are off, and without a broker events are
// dropped.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	db, d, err := OpenDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(db, d)

	var resolver processor.Resolver
	switch cfg.ProcessorMode {
	case config.ProcessorStatic:
		resolver = processor.Static{ProcessorID: cfg.DefaultProcessorID}
	default:
		resolver = processor.NewHTTPResolver(processor.HTTPConfig{
			BaseURL: cfg.CatalogURL,
			Timeout: cfg.CatalogTimeout,
		}, logger)
	}

	var events queue.Publisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		p, err := queue.NewRabbitPublisher(cfg.RabbitURL, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			events = p
		}
	}

	svc := service.NewRequestService(store, resolver, events, logger, service.Options{
		TxTimeout:       cfg.TxTimeout,
		TxRetries:       cfg.TxRetries,
		RejectPastDates: cfg.RejectPastDates,
		Location:        cfg.BookingLocation,
	})

	rdb := config.NewRedisClient(cfg.Redis, logger)
	e := router.New(router.Deps{
		Handler:   handler.New(svc, logger),
		Redis:     rdb,
		Cache:     cfg.Cache,
		RateLimit: cfg.RateLimit,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
	})

	return &App{DB: db, Store: store, Service: svc, Events: events, Redis: rdb, Echo: e, Logger: logger}, nil
}

// Close releases everything New opened.
func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
