package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/model"
	"github.com/iliyamo/court-reservation/internal/repository"
)

// DeleteRequest removes an approval request.  A pending request takes its
// pending reservation down to cancelled in the same transaction so the
// slot is released rather than held by an orphan.
func (s *RequestService) DeleteRequest(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperror.Validation("request id is required")
	}
	err := s.inTx(ctx, "delete_request", func(ctx context.Context, tx *sql.Tx) error {
		req, err := s.store.Requests.GetByIDTx(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if req.IsPending() {
			err := s.store.Reservations.UpdateStatusTx(ctx, tx, req.ReservationID,
				model.ReservationPending, model.ReservationCancelled, s.now())
			if err != nil && !errors.Is(err, repository.ErrStateChanged) {
				return err
			}
		}
		return s.store.Requests.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		s.logFailure("delete_request", err, zap.Uint64("request_id", id))
		return err
	}
	s.logger.Info("request deleted", zap.Uint64("request_id", id))
	return nil
}

// DeleteReservation removes a reservation and, through the foreign key,
// its approval request.
func (s *RequestService) DeleteReservation(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperror.Validation("reservation id is required")
	}
	err := s.inTx(ctx, "delete_reservation", func(ctx context.Context, tx *sql.Tx) error {
		return s.store.Reservations.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		s.logFailure("delete_reservation", err, zap.Uint64("reservation_id", id))
		return err
	}
	s.logger.Info("reservation deleted", zap.Uint64("reservation_id", id))
	return nil
}
