package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCancelled:
		return true
	}
	return false
}

// Reservation is a claim on a court for a contiguous window on one date.
// It is created pending by the request workflow and only the approval
// step moves it to confirmed or cancelled.
//
// Fields:
//  ID              – reservations.id
//  ResourceID      – court being booked.
//  RequesterID     – user asking for the slot.
//  TeamID          – optional team the booking is made for.
//  Date, Window    – the booked day and half-open time window.
//  DurationMinutes – declared length, always equal to the window length.
//  AmountCents     – total price in minor units.
//  Status          – pending, confirmed or cancelled.
type Reservation struct {
	ID              uint64            `json:"id"`
	ResourceID      uint64            `json:"resource_id"`
	RequesterID     uint64            `json:"requester_id"`
	TeamID          *uint64           `json:"team_id,omitempty"`
	Date            Date              `json:"date"`
	Window          Window            `json:"window"`
	DurationMinutes int               `json:"duration"`
	AmountCents     int64             `json:"amount"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
