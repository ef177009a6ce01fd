package model

import "time"

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// ApprovalRequest is the decision record layered on top of exactly one
// reservation.  ProcessorID is fixed when the request is created and is
// the only principal allowed to decide it.
type ApprovalRequest struct {
	ID              uint64        `json:"id"`
	ReservationID   uint64        `json:"reservation_id"`
	ResourceID      uint64        `json:"resource_id"`
	RequesterID     uint64        `json:"requester_id"`
	ProcessorID     uint64        `json:"processor_id"`
	Message         string        `json:"message"`
	RejectionReason *string       `json:"rejection_reason"`
	DecidedAt       *time.Time    `json:"decided_at"`
	Status          RequestStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsPending reports whether the request still awaits a decision.
func (r *ApprovalRequest) IsPending() bool { return r.Status == RequestPending }
