package handler

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/service"
)

// Handler serves the reservation API on top of the workflow engine.
type Handler struct {
	Svc    *service.RequestService
	Logger *zap.Logger
}

// New constructs a Handler and panics if the service is nil.
func New(svc *service.RequestService, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("nil service passed to handler.New")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Svc: svc, Logger: logger}
}

// fail writes err as {"error": kind, "message": text}.  Causes of internal
// and transient faults are logged, never returned.
func (h *Handler) fail(c echo.Context, err error, extra echo.Map) error {
	ae := apperror.As(err)
	status := apperror.Status(ae.Kind)
	if ae.Kind == apperror.KindInternal || ae.Kind == apperror.KindTransient {
		rid, _ := c.Get("request_id").(string)
		h.Logger.Error("request failed",
			zap.String("request_id", rid),
			zap.String("route", c.Path()),
			zap.String("kind", string(ae.Kind)),
			zap.Error(ae.Err))
	}
	body := echo.Map{"error": ae.Kind, "message": ae.Message}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name, what string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid " + what + " id")
	}
	return id, nil
}

// queryUint parses an optional positive integer query parameter.
func queryUint(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, apperror.Validation("invalid " + name)
	}
	return n, nil
}

func queryLimit(c echo.Context) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperror.Validation("invalid limit")
	}
	return n, nil
}
