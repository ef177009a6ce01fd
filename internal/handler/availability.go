package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-reservation/internal/service"
)

// CheckAvailability handles GET /v1/availability?resource_id=&date=&start=&end=.
// The answer is advisory; only a submission reserves the window.
func (h *Handler) CheckAvailability(c echo.Context) error {
	resourceID, err := queryUint(c, "resource_id")
	if err != nil {
		return h.fail(c, err, nil)
	}
	res, err := h.Svc.CheckAvailability(c.Request().Context(), service.AvailabilityQuery{
		ResourceID: resourceID,
		Date:       c.QueryParam("date"),
		Start:      c.QueryParam("start"),
		End:        c.QueryParam("end"),
	})
	if err != nil {
		return h.fail(c, err, nil)
	}
	body := echo.Map{"available": res.Free()}
	if !res.Free() {
		body["conflict"] = echo.Map{"kind": res.Kind, "entity_id": res.EntityID}
	}
	return c.JSON(http.StatusOK, body)
}
