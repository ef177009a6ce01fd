// Package availability decides whether a time window on a court is free.
//
// Check is the only place the conflict rules live.  Submission, approval
// and the preview endpoint all call it against the same transaction that
// performs their writes, so what was checked is what gets committed.
package availability

import (
	"context"
	"time"

	"github.com/iliyamo/court-reservation/internal/model"
)

// Source supplies the facts Check needs.  Implementations read through a
// single connection or transaction.
type Source interface {
	// OverlappingReservation returns an active reservation intersecting
	// the query window, skipping q.ExcludeReservationID.
	OverlappingReservation(ctx context.Context, q model.SlotQuery) (uint64, bool, error)
	// OverlappingPendingRequest returns a pending request whose linked
	// reservation intersects the query window.
	OverlappingPendingRequest(ctx context.Context, q model.SlotQuery) (uint64, bool, error)
	// BlockedWindows lists the weekly rules of a court for one weekday.
	BlockedWindows(ctx context.Context, resourceID uint64, day time.Weekday) ([]model.BlockedWindow, error)
}

// Kind classifies a check outcome.
type Kind string

const (
	Available      Kind = "available"
	Reservation    Kind = "reservation"
	PendingRequest Kind = "pending_request"
	BlockedWindow  Kind = "blocked_window"
	// Unavailable means the facts could not be read.  It never grants.
	Unavailable Kind = "unavailable"
)

// Result is the outcome of Check.  EntityID names the conflicting row for
// the three conflict kinds; Err carries the read failure for Unavailable.
type Result struct {
	Kind     Kind
	EntityID uint64
	Err      error
}

// Free reports whether the window may be granted.
func (r Result) Free() bool { return r.Kind == Available }

// Check evaluates q against src.  Rules apply in order and the first
// conflict wins: active reservations, then pending requests, then blocked
// windows of the date's weekday.
func Check(ctx context.Context, src Source, q model.SlotQuery) Result {
	if id, ok, err := src.OverlappingReservation(ctx, q); err != nil {
		return Result{Kind: Unavailable, Err: err}
	} else if ok {
		return Result{Kind: Reservation, EntityID: id}
	}

	if id, ok, err := src.OverlappingPendingRequest(ctx, q); err != nil {
		return Result{Kind: Unavailable, Err: err}
	} else if ok {
		return Result{Kind: PendingRequest, EntityID: id}
	}

	blocked, err := src.BlockedWindows(ctx, q.ResourceID, q.Date.Weekday())
	if err != nil {
		return Result{Kind: Unavailable, Err: err}
	}
	for _, bw := range blocked {
		if bw.Window.Overlaps(q.Window) {
			return Result{Kind: BlockedWindow, EntityID: bw.ID}
		}
	}
	return Result{Kind: Available}
}
