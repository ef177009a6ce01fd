// Package queue defines the reservation events exchanged over the message
// broker together with their publisher and audit consumer.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/court-reservation/internal/model"
)

// EventsQueue is the durable queue every reservation event is routed to.
const EventsQueue = "reservation.events"

// EventType names what happened to a reservation.
type EventType string

const (
	EventRequested EventType = "reservation.requested"
	EventApproved  EventType = "reservation.approved"
	EventRejected  EventType = "reservation.rejected"
)

// ReservationEvent is published after a workflow transition commits.  It
// carries enough for consumers to log, notify or bill without querying
// the primary database.
type ReservationEvent struct {
	EventID           string    `json:"event_id"`
	Type              EventType `json:"type"`
	ReservationID     uint64    `json:"reservation_id"`
	RequestID         uint64    `json:"request_id"`
	ResourceID        uint64    `json:"resource_id"`
	RequesterID       uint64    `json:"requester_id"`
	ProcessorID       uint64    `json:"processor_id"`
	Date              string    `json:"date"`
	Start             string    `json:"start"`
	End               string    `json:"end"`
	AmountCents       int64     `json:"amount"`
	ReservationStatus string    `json:"reservation_status"`
	RequestStatus     string    `json:"request_status"`
	Reason            string    `json:"reason,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewReservationEvent snapshots a reservation and its request.
func NewReservationEvent(t EventType, res *model.Reservation, req *model.ApprovalRequest, at time.Time) ReservationEvent {
	ev := ReservationEvent{
		EventID:           uuid.NewString(),
		Type:              t,
		ReservationID:     res.ID,
		RequestID:         req.ID,
		ResourceID:        res.ResourceID,
		RequesterID:       res.RequesterID,
		ProcessorID:       req.ProcessorID,
		Date:              res.Date.String(),
		Start:             res.Window.Start.String(),
		End:               res.Window.End.String(),
		AmountCents:       res.AmountCents,
		ReservationStatus: string(res.Status),
		RequestStatus:     string(req.Status),
		OccurredAt:        at.UTC(),
	}
	if req.RejectionReason != nil {
		ev.Reason = *req.RejectionReason
	}
	return ev
}
