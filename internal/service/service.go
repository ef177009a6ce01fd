// Package service implements the reservation request workflow: a
// requester submits a window, the court's processor approves or rejects
// it.  Every read-then-write runs in one transaction under the slot lock
// of its (court, date), so concurrent submissions and approvals for
// overlapping windows cannot both succeed.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/availability"
	"github.com/iliyamo/court-reservation/internal/processor"
	"github.com/iliyamo/court-reservation/internal/queue"
	"github.com/iliyamo/court-reservation/internal/repository"
)

// Options tunes transaction handling and input checks.
type Options struct {
	// TxTimeout bounds every transaction attempt.
	TxTimeout time.Duration
	// TxRetries is how many times a transient fault is retried.
	TxRetries int
	// RejectPastDates refuses submissions for days before today in Location.
	RejectPastDates bool
	Location        *time.Location
}

func (o *Options) defaults() {
	if o.TxTimeout <= 0 {
		o.TxTimeout = 5 * time.Second
	}
	if o.TxRetries < 0 {
		o.TxRetries = 0
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

// RequestService is the workflow engine.  It holds no per-request state
// and is safe for concurrent use.
type RequestService struct {
	store    *repository.Store
	resolver processor.Resolver
	events   queue.Publisher
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

// NewRequestService wires the engine.  A nil publisher drops events.
func NewRequestService(store *repository.Store, resolver processor.Resolver, events queue.Publisher, logger *zap.Logger, opts Options) *RequestService {
	opts.defaults()
	if events == nil {
		events = queue.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		store:    store,
		resolver: resolver,
		events:   events,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// SetClock replaces the time source.  Used by tests.
func (s *RequestService) SetClock(now func() time.Time) { s.now = now }

const rejectedAtApproval = "slot occupied at approval time"

// inTx runs fn in a transaction bounded by TxTimeout and repeats it when
// the store reports a transient fault.  fn must not keep state across
// attempts.  The returned error is always an *apperror.Error.
func (s *RequestService) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrTransient) || attempt >= s.opts.TxRetries || ctx.Err() != nil {
			break
		}
		backoff := time.Duration(attempt+1) * 25 * time.Millisecond
		s.logger.Warn("transient store fault, retrying",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return translate(err)
		case <-t.C:
		}
	}
	return translate(err)
}

func (s *RequestService) attempt(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()
	return s.store.WithTx(tctx, func(tx *sql.Tx) error { return fn(tctx, tx) })
}

// translate maps repository errors onto the public error kinds.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperror.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, repository.ErrTransient):
		return apperror.Transient(err)
	case errors.Is(err, repository.ErrSlotTaken):
		return apperror.Conflict("requested window is no longer available").WithDetail("kind", "reservation")
	case errors.Is(err, repository.ErrReservationNotFound):
		return apperror.NotFound("reservation not found")
	case errors.Is(err, repository.ErrRequestNotFound):
		return apperror.NotFound("request not found")
	}
	return apperror.Internal(err)
}

// conflictError describes a failed availability check.  Read faults are
// passed through so inTx classifies them; they never become conflicts.
func conflictError(res availability.Result) error {
	var msg string
	switch res.Kind {
	case availability.Reservation:
		msg = "requested window overlaps an existing reservation"
	case availability.PendingRequest:
		msg = "requested window overlaps a pending request"
	case availability.BlockedWindow:
		msg = "requested window falls in a blocked period"
	default:
		return res.Err
	}
	return apperror.Conflict(msg).
		WithDetail("kind", string(res.Kind)).
		WithDetail("entity_id", res.EntityID)
}

// publish sends ev without letting a broker failure affect the caller.
// The transition it describes is already committed.
func (s *RequestService) publish(ctx context.Context, ev queue.ReservationEvent) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("type", string(ev.Type)),
			zap.Uint64("request_id", ev.RequestID),
			zap.Error(err))
	}
}
