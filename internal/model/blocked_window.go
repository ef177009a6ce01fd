package model

import "time"

// BlockedWindow is a standing weekly unavailability rule for a court,
// maintained by the schedule service.  It is read-only here.
type BlockedWindow struct {
	ID         uint64       `json:"id"`
	ResourceID uint64       `json:"resource_id"`
	Weekday    time.Weekday `json:"weekday"`
	Window     Window       `json:"window"`
}
