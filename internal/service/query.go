package service

import (
	"context"
	"strconv"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/availability"
	"github.com/iliyamo/court-reservation/internal/model"
	"github.com/iliyamo/court-reservation/internal/repository"
)

const defaultListLimit = 200

// GetReservation returns one reservation.
func (s *RequestService) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	if id == 0 {
		return nil, apperror.Validation("reservation id is required")
	}
	res, err := s.store.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, translate(repository.Classify(err))
	}
	return res, nil
}

// ReservationQuery filters ListReservations.  Empty fields match all.
type ReservationQuery struct {
	ResourceID  uint64
	RequesterID uint64
	Date        string
	Status      string
	Limit       int
}

// ListReservations returns reservations newest first.
func (s *RequestService) ListReservations(ctx context.Context, q ReservationQuery) ([]model.Reservation, error) {
	f := repository.ReservationFilter{ResourceID: q.ResourceID, RequesterID: q.RequesterID, Limit: clampLimit(q.Limit)}
	if q.Date != "" {
		d, err := model.ParseDate(q.Date)
		if err != nil {
			return nil, apperror.Validation(err.Error())
		}
		f.Date = d
	}
	if q.Status != "" {
		st := model.ReservationStatus(q.Status)
		if !st.Valid() {
			return nil, apperror.Validation("unknown reservation status " + strconv.Quote(q.Status))
		}
		f.Status = st
	}
	out, err := s.store.Reservations.List(ctx, f)
	if err != nil {
		return nil, translate(repository.Classify(err))
	}
	return out, nil
}

// GetRequest returns one approval request.
func (s *RequestService) GetRequest(ctx context.Context, id uint64) (*model.ApprovalRequest, error) {
	if id == 0 {
		return nil, apperror.Validation("request id is required")
	}
	req, err := s.store.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, translate(repository.Classify(err))
	}
	return req, nil
}

// RequestQuery filters ListRequests.
type RequestQuery struct {
	ProcessorID uint64
	RequesterID uint64
	ResourceID  uint64
	Status      string
	Limit       int
}

// ListRequests returns approval requests newest first, e.g. a processor's inbox.
func (s *RequestService) ListRequests(ctx context.Context, q RequestQuery) ([]model.ApprovalRequest, error) {
	f := repository.RequestFilter{
		ProcessorID: q.ProcessorID,
		RequesterID: q.RequesterID,
		ResourceID:  q.ResourceID,
		Limit:       clampLimit(q.Limit),
	}
	if q.Status != "" {
		st := model.RequestStatus(q.Status)
		if !st.Valid() {
			return nil, apperror.Validation("unknown request status " + strconv.Quote(q.Status))
		}
		f.Status = st
	}
	out, err := s.store.Requests.List(ctx, f)
	if err != nil {
		return nil, translate(repository.Classify(err))
	}
	return out, nil
}

// AvailabilityQuery asks about one window without booking it.
type AvailabilityQuery struct {
	ResourceID uint64
	Date       string
	Start      string
	End        string
}

// CheckAvailability previews the decision Submit would make right now.
// It takes no lock, so the answer can be stale by the time a submission
// arrives.  Read faults are returned as errors, never as "available".
func (s *RequestService) CheckAvailability(ctx context.Context, q AvailabilityQuery) (availability.Result, error) {
	if q.ResourceID == 0 {
		return availability.Result{}, apperror.Validation("resource_id is required")
	}
	date, window, err := parseSlot(q.Date, q.Start, q.End)
	if err != nil {
		return availability.Result{}, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()
	res := availability.Check(cctx, s.store.View(s.store.DB()), model.SlotQuery{ResourceID: q.ResourceID, Date: date, Window: window})
	if res.Kind == availability.Unavailable {
		return res, translate(repository.Classify(res.Err))
	}
	return res, nil
}

func clampLimit(n int) int {
	if n <= 0 || n > defaultListLimit {
		return defaultListLimit
	}
	return n
}
