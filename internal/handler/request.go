package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/service"
)

type decideRequest struct {
	Action      string `json:"action"`
	ProcessorID uint64 `json:"processor_id"`
	Reason      string `json:"reason"`
}

// DecideRequest handles PUT /v1/requests/:id/decision.  When an approval
// loses the slot to a concurrent booking the request is rejected anyway
// and the 409 body carries the resulting statuses.
func (h *Handler) DecideRequest(c echo.Context) error {
	id, err := pathID(c, "id", "request")
	if err != nil {
		return h.fail(c, err, nil)
	}
	var body decideRequest
	if err := c.Bind(&body); err != nil {
		return h.fail(c, apperror.Validation("invalid request body"), nil)
	}
	res, err := h.Svc.Decide(c.Request().Context(), service.DecideInput{
		RequestID:   id,
		ProcessorID: body.ProcessorID,
		Action:      service.Action(strings.ToLower(strings.TrimSpace(body.Action))),
		Reason:      body.Reason,
	})
	if err != nil {
		var extra echo.Map
		if res != nil {
			extra = echo.Map{"status": res.Status, "reservation_status": res.ReservationStatus}
		}
		return h.fail(c, err, extra)
	}
	return c.JSON(http.StatusOK, res)
}

// GetRequest handles GET /v1/requests/:id.
func (h *Handler) GetRequest(c echo.Context) error {
	id, err := pathID(c, "id", "request")
	if err != nil {
		return h.fail(c, err, nil)
	}
	item, err := h.Svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}

// ListRequests handles GET /v1/requests.  A processor's inbox is
// ?processor_id=N&status=pending.
func (h *Handler) ListRequests(c echo.Context) error {
	q := service.RequestQuery{Status: c.QueryParam("status")}
	var err error
	if q.ProcessorID, err = queryUint(c, "processor_id"); err != nil {
		return h.fail(c, err, nil)
	}
	if q.RequesterID, err = queryUint(c, "requester_id"); err != nil {
		return h.fail(c, err, nil)
	}
	if q.ResourceID, err = queryUint(c, "resource_id"); err != nil {
		return h.fail(c, err, nil)
	}
	if q.Limit, err = queryLimit(c); err != nil {
		return h.fail(c, err, nil)
	}
	items, err := h.Svc.ListRequests(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}
