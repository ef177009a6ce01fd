package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DeleteRequest handles DELETE /v1/requests/:id (admin only).
func (h *Handler) DeleteRequest(c echo.Context) error {
	id, err := pathID(c, "id", "request")
	if err != nil {
		return h.fail(c, err, nil)
	}
	if err := h.Svc.DeleteRequest(c.Request().Context(), id); err != nil {
		return h.fail(c, err, nil)
	}
	h.audit(c, "request", id)
	return c.NoContent(http.StatusNoContent)
}

// DeleteReservation handles DELETE /v1/reservations/:id (admin only).  The
// linked request is removed with it.
func (h *Handler) DeleteReservation(c echo.Context) error {
	id, err := pathID(c, "id", "reservation")
	if err != nil {
		return h.fail(c, err, nil)
	}
	if err := h.Svc.DeleteReservation(c.Request().Context(), id); err != nil {
		return h.fail(c, err, nil)
	}
	h.audit(c, "reservation", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) audit(c echo.Context, entity string, id uint64) {
	actor, _ := c.Get("user_id").(string)
	h.Logger.Info("admin delete", zap.String("entity", entity), zap.Uint64("id", id), zap.String("actor", actor))
}
