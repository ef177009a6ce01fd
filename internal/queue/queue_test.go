package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/court-reservation/internal/model"
)

func sampleEvent() ReservationEvent {
	reason := "slot occupied at approval time"
	res := &model.Reservation{
		ID: 11, ResourceID: 5, RequesterID: 7,
		Date:        model.Date{Year: 2024, Month: time.June, Day: 1},
		Window:      model.Window{Start: model.MustTime("10:00"), End: model.MustTime("11:00")},
		AmountCents: 5000, Status: model.ReservationCancelled,
	}
	req := &model.ApprovalRequest{ID: 12, ProcessorID: 100, Status: model.RequestRejected, RejectionReason: &reason}
	return NewReservationEvent(EventRejected, res, req, time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC))
}

func TestNewReservationEvent(t *testing.T) {
	ev := sampleEvent()
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "2024-06-01", ev.Date)
	assert.Equal(t, "10:00:00", ev.Start)
	assert.Equal(t, "cancelled", ev.ReservationStatus)
	assert.Equal(t, "slot occupied at approval time", ev.Reason)
	assert.NotEqual(t, ev.EventID, sampleEvent().EventID)
}

func TestHandleMessageAppendsAuditLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "reservations.log")
	c := NewAuditConsumer("", path, nil)

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(body))
	require.NoError(t, c.HandleMessage(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "reservation.rejected")
	assert.Contains(t, lines[0], "reservation_id=11")
	assert.Contains(t, lines[0], "slot=2024-06-01 10:00:00-11:00:00")
	assert.Contains(t, lines[0], `reason="slot occupied at approval time"`)
}

func TestHandleMessageRejectsBadPayload(t *testing.T) {
	c := NewAuditConsumer("", filepath.Join(t.TempDir(), "r.log"), nil)
	assert.Error(t, c.HandleMessage([]byte("not json")))
	assert.Error(t, c.HandleMessage([]byte(`{"type":""}`)))
}
