// Package router registers the HTTP routes and their middleware chains.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/config"
	"github.com/iliyamo/court-reservation/internal/handler"
	"github.com/iliyamo/court-reservation/internal/middleware"
	"github.com/iliyamo/court-reservation/internal/utils"
)

// Deps groups what the routes need.  Redis may be nil, in which case
// caching and rate limiting are off.
type Deps struct {
	Handler   *handler.Handler
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	JWTSecret string
	Logger    *zap.Logger
}

// New builds an Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Logger))
	Register(e, d)
	return e
}

// Register maps the API onto e.
//
// Reads go through the response cache.  Writes are rate limited and purge
// the cache once they complete.  Deletes require an ADMIN token.
func Register(e *echo.Echo, d Deps) {
	h := d.Handler
	cache := middleware.NewRedisCache(d.Cache, d.Redis, d.Logger)
	purge := middleware.PurgeCache(d.Cache, d.Redis, d.Logger)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger)

	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")

	v1.GET("/availability", h.CheckAvailability, cache)

	v1.POST("/reservations", h.CreateReservation, limit, purge)
	v1.GET("/reservations", h.ListReservations, cache)
	v1.GET("/reservations/:id", h.GetReservation, cache)

	v1.PUT("/requests/:id/decision", h.DecideRequest, limit, purge)
	v1.GET("/requests", h.ListRequests, cache)
	v1.GET("/requests/:id", h.GetRequest, cache)

	auth := middleware.JWTAuth(d.JWTSecret)
	admin := middleware.RequireRole(utils.RoleAdmin)
	v1.DELETE("/requests/:id", h.DeleteRequest, auth, admin, purge)
	v1.DELETE("/reservations/:id", h.DeleteReservation, auth, admin, purge)
}
