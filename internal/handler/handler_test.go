package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/court-reservation/internal/apperror"
)

func TestFailHidesInternalCause(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := &Handler{Logger: zap.New(core)}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Set("request_id", "rid-1")

	require.NoError(t, h.fail(c, errors.New("dial tcp 10.0.0.7:3306: refused"), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_fault", body["error"])

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "rid-1", logs.All()[0].ContextMap()["request_id"])
}

func TestFailStatusAndDetails(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperror.Validation("bad"), http.StatusBadRequest},
		{apperror.NotFound("gone"), http.StatusNotFound},
		{apperror.Forbidden("no"), http.StatusForbidden},
		{apperror.Transient(errors.New("deadlock")), http.StatusServiceUnavailable},
		{apperror.Conflict("taken").WithDetail("kind", "reservation").WithDetail("entity_id", uint64(4)), http.StatusConflict},
	}
	h := &Handler{Logger: zap.NewNop()}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, h.fail(c, tc.err, echo.Map{"status": "rejected"}))
		assert.Equal(t, tc.status, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "rejected", body["status"])
		if tc.status == http.StatusConflict {
			assert.Equal(t, map[string]any{"kind": "reservation", "entity_id": float64(4)}, body["details"])
		}
	}
}

func TestNewPanicsWithoutService(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil) })
}
