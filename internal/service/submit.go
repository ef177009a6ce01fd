package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/availability"
	"github.com/iliyamo/court-reservation/internal/model"
	"github.com/iliyamo/court-reservation/internal/processor"
	"github.com/iliyamo/court-reservation/internal/queue"
)

// SubmitInput is a booking request as received from a client.  Date and
// times stay textual so every caller shares one validation path.
type SubmitInput struct {
	ResourceID      uint64
	RequesterID     uint64
	TeamID          *uint64
	Date            string
	Start           string
	End             string
	DurationMinutes int
	AmountCents     int64
	Message         string
}

// SubmitResult identifies the created pair.
type SubmitResult struct {
	ReservationID uint64              `json:"reservation_id"`
	RequestID     uint64              `json:"request_id"`
	Status        model.RequestStatus `json:"status"`
}

// Submit creates a pending reservation and its approval request when the
// window is free.  Both rows are written in one transaction under the slot
// lock, after the availability check on that same transaction.
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	date, window, err := s.validateSubmit(in)
	if err != nil {
		return nil, err
	}

	processorID, err := s.resolveProcessor(ctx, in.ResourceID)
	if err != nil {
		return nil, err
	}

	var (
		res *model.Reservation
		req *model.ApprovalRequest
	)
	err = s.inTx(ctx, "submit", func(ctx context.Context, tx *sql.Tx) error {
		if err := s.store.LockSlotTx(ctx, tx, in.ResourceID, date); err != nil {
			return err
		}
		sq := model.SlotQuery{ResourceID: in.ResourceID, Date: date, Window: window}
		if check := availability.Check(ctx, s.store.View(tx), sq); !check.Free() {
			return conflictError(check)
		}

		now := s.now()
		res = &model.Reservation{
			ResourceID:      in.ResourceID,
			RequesterID:     in.RequesterID,
			TeamID:          in.TeamID,
			Date:            date,
			Window:          window,
			DurationMinutes: in.DurationMinutes,
			AmountCents:     in.AmountCents,
			Status:          model.ReservationPending,
			CreatedAt:       now,
		}
		if err := s.store.Reservations.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		req = &model.ApprovalRequest{
			ReservationID: res.ID,
			ResourceID:    in.ResourceID,
			RequesterID:   in.RequesterID,
			ProcessorID:   processorID,
			Message:       in.Message,
			Status:        model.RequestPending,
			CreatedAt:     now,
		}
		return s.store.Requests.CreateTx(ctx, tx, req)
	})
	if err != nil {
		s.logFailure("submit", err, zap.Uint64("resource_id", in.ResourceID), zap.String("date", date.String()))
		return nil, err
	}

	s.logger.Info("reservation requested",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("request_id", req.ID),
		zap.Uint64("resource_id", res.ResourceID),
		zap.String("date", res.Date.String()),
		zap.String("window", res.Window.String()),
		zap.Uint64("processor_id", processorID))
	s.publish(ctx, queue.NewReservationEvent(queue.EventRequested, res, req, res.CreatedAt))

	return &SubmitResult{ReservationID: res.ID, RequestID: req.ID, Status: req.Status}, nil
}

func (s *RequestService) resolveProcessor(ctx context.Context, resourceID uint64) (uint64, error) {
	id, err := s.resolver.ResolveProcessor(ctx, resourceID)
	switch {
	case err == nil && id != 0:
		return id, nil
	case err == nil:
		return 0, apperror.Internal(errors.New("resolver returned no processor"))
	case errors.Is(err, processor.ErrUnknownResource):
		return 0, apperror.NotFound("resource not found")
	case errors.Is(err, processor.ErrUnavailable):
		return 0, apperror.Transient(err)
	}
	return 0, apperror.Internal(err)
}

// logFailure logs faults at error level and expected outcomes at debug.
func (s *RequestService) logFailure(op string, err error, fields ...zap.Field) {
	ae := apperror.As(err)
	fields = append(fields, zap.String("op", op), zap.String("kind", string(ae.Kind)), zap.Error(err))
	switch ae.Kind {
	case apperror.KindInternal, apperror.KindTransient:
		s.logger.Error("operation failed", fields...)
	default:
		s.logger.Debug("operation refused", fields...)
	}
}
