package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/service"
)

type createReservationRequest struct {
	ResourceID  uint64  `json:"resource_id"`
	RequesterID uint64  `json:"requester_id"`
	TeamID      *uint64 `json:"team_id"`
	Date        string  `json:"date"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Duration    int     `json:"duration"`
	Amount      int64   `json:"amount"`
	Message     string  `json:"message"`
}

// CreateReservation handles POST /v1/reservations.  It submits a booking
// request: on success the reservation and its approval request are both
// pending and 201 is returned with their ids.
func (h *Handler) CreateReservation(c echo.Context) error {
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return h.fail(c, apperror.Validation("invalid request body"), nil)
	}
	res, err := h.Svc.Submit(c.Request().Context(), service.SubmitInput{
		ResourceID:      body.ResourceID,
		RequesterID:     body.RequesterID,
		TeamID:          body.TeamID,
		Date:            body.Date,
		Start:           body.Start,
		End:             body.End,
		DurationMinutes: body.Duration,
		AmountCents:     body.Amount,
		Message:         body.Message,
	})
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListReservations handles GET /v1/reservations, newest first.  Optional
// filters: resource_id, requester_id, date, status, limit.
func (h *Handler) ListReservations(c echo.Context) error {
	resourceID, err := queryUint(c, "resource_id")
	if err != nil {
		return h.fail(c, err, nil)
	}
	requesterID, err := queryUint(c, "requester_id")
	if err != nil {
		return h.fail(c, err, nil)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return h.fail(c, err, nil)
	}
	items, err := h.Svc.ListReservations(c.Request().Context(), service.ReservationQuery{
		ResourceID:  resourceID,
		RequesterID: requesterID,
		Date:        c.QueryParam("date"),
		Status:      c.QueryParam("status"),
		Limit:       limit,
	})
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// GetReservation handles GET /v1/reservations/:id.
func (h *Handler) GetReservation(c echo.Context) error {
	id, err := pathID(c, "id", "reservation")
	if err != nil {
		return h.fail(c, err, nil)
	}
	item, err := h.Svc.GetReservation(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}
