package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/availability"
	"github.com/iliyamo/court-reservation/internal/model"
	"github.com/iliyamo/court-reservation/internal/queue"
	"github.com/iliyamo/court-reservation/internal/repository"
)

// DecideInput is a processor's decision on one request.
type DecideInput struct {
	RequestID   uint64
	ProcessorID uint64
	Action      Action
	Reason      string
}

// DecideResult reports the terminal state of both rows.
type DecideResult struct {
	RequestID         uint64                  `json:"request_id"`
	ReservationID     uint64                  `json:"reservation_id"`
	Status            model.RequestStatus     `json:"status"`
	ReservationStatus model.ReservationStatus `json:"reservation_status"`
}

// Decide approves or rejects a pending request.  Approval re-runs the
// availability check excluding the request's own reservation; if the slot
// was taken meanwhile the request is rejected, that rejection is
// committed, and the caller gets a slot_conflict error together with the
// result describing the rejection.
func (s *RequestService) Decide(ctx context.Context, in DecideInput) (*DecideResult, error) {
	if err := validateDecide(in); err != nil {
		return nil, err
	}

	var (
		res       *model.Reservation
		req       *model.ApprovalRequest
		conflict  error
		decidedAt = s.now()
	)
	err := s.inTx(ctx, "decide", func(ctx context.Context, tx *sql.Tx) error {
		conflict = nil
		var err error
		req, err = s.store.Requests.GetByIDTx(ctx, tx, in.RequestID, true)
		if errors.Is(err, repository.ErrRequestNotFound) {
			return apperror.NotFound("request not found or already processed")
		}
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return apperror.NotFound("request not found or already processed")
		}
		if req.ProcessorID != in.ProcessorID {
			return apperror.Forbidden("processor is not allowed to decide this request")
		}

		res, err = s.store.Reservations.GetByIDTx(ctx, tx, req.ReservationID, true)
		if errors.Is(err, repository.ErrReservationNotFound) {
			// A pending request always has its reservation.
			return apperror.Internal(fmt.Errorf("request %d has no reservation %d", req.ID, req.ReservationID))
		}
		if err != nil {
			return err
		}

		if in.Action == ActionReject {
			return s.resolve(ctx, tx, req, res, model.RequestRejected, in.Reason, decidedAt)
		}

		if err := s.store.LockSlotTx(ctx, tx, res.ResourceID, res.Date); err != nil {
			return err
		}
		sq := model.SlotQuery{
			ResourceID:           res.ResourceID,
			Date:                 res.Date,
			Window:               res.Window,
			ExcludeReservationID: res.ID,
		}
		check := availability.Check(ctx, s.store.View(tx), sq)
		switch check.Kind {
		case availability.Available:
			return s.resolve(ctx, tx, req, res, model.RequestApproved, "", decidedAt)
		case availability.Unavailable:
			return check.Err
		}
		conflict = conflictError(check)
		return s.resolve(ctx, tx, req, res, model.RequestRejected, rejectedAtApproval, decidedAt)
	})
	if err != nil {
		s.logFailure("decide", err, zap.Uint64("request_id", in.RequestID), zap.Uint64("processor_id", in.ProcessorID))
		return nil, err
	}

	result := &DecideResult{
		RequestID:         req.ID,
		ReservationID:     res.ID,
		Status:            req.Status,
		ReservationStatus: res.Status,
	}
	evType := queue.EventApproved
	if req.Status == model.RequestRejected {
		evType = queue.EventRejected
	}
	s.logger.Info("request decided",
		zap.Uint64("request_id", req.ID),
		zap.Uint64("reservation_id", res.ID),
		zap.String("status", string(req.Status)),
		zap.Bool("auto_rejected", conflict != nil))
	s.publish(ctx, queue.NewReservationEvent(evType, res, req, decidedAt))

	if conflict != nil {
		return result, conflict
	}
	return result, nil
}

// resolve writes the paired terminal transition and mirrors it onto the
// in-memory rows.
func (s *RequestService) resolve(ctx context.Context, tx *sql.Tx, req *model.ApprovalRequest, res *model.Reservation, to model.RequestStatus, reason string, at time.Time) error {
	var reasonPtr *string
	if to == model.RequestRejected && reason != "" {
		reasonPtr = &reason
	}
	resTo := model.ReservationCancelled
	if to == model.RequestApproved {
		resTo = model.ReservationConfirmed
	}

	if err := s.store.Requests.DecideTx(ctx, tx, req.ID, to, reasonPtr, at); err != nil {
		return fmt.Errorf("update request %d: %w", req.ID, err)
	}
	if err := s.store.Reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationPending, resTo, at); err != nil {
		return fmt.Errorf("update reservation %d: %w", res.ID, err)
	}

	decided := at.UTC()
	req.Status = to
	req.RejectionReason = reasonPtr
	req.DecidedAt = &decided
	res.Status = resTo
	return nil
}
