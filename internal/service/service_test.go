package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/availability"
	"github.com/iliyamo/court-reservation/internal/database/dbtest"
	"github.com/iliyamo/court-reservation/internal/model"
	"github.com/iliyamo/court-reservation/internal/processor"
	"github.com/iliyamo/court-reservation/internal/queue"
	"github.com/iliyamo/court-reservation/internal/repository"
)

const processorID = 100

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *RequestService
	store  *repository.Store
	db     *sql.DB
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, d := dbtest.Open(t)
	store := repository.NewStore(db, d)
	events := &recordingPublisher{}
	svc := NewRequestService(store, processor.Static{ProcessorID: processorID}, events, zap.NewNop(), Options{TxTimeout: 5 * time.Second, TxRetries: 2})
	svc.SetClock(func() time.Time { return time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC) })
	return &fixture{svc: svc, store: store, db: db, events: events}
}

func submitInput(resource uint64, date, start, end string) SubmitInput {
	st, en := model.MustTime(start), model.MustTime(end)
	return SubmitInput{
		ResourceID:      resource,
		RequesterID:     7,
		Date:            date,
		Start:           start,
		End:             end,
		DurationMinutes: int(en-st) / 60,
		AmountCents:     5000,
	}
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperror.As(err).Kind, "error: %v", err)
}

func TestScenarioSubmitApproveResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, first.Status)

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:30", "10:30"))
	requireKind(t, err, apperror.KindConflict)

	decided, err := f.svc.Decide(ctx, DecideInput{RequestID: first.RequestID, ProcessorID: processorID, Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, decided.Status)
	assert.Equal(t, model.ReservationConfirmed, decided.ReservationStatus)

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "10:00", "11:00"))
	require.NoError(t, err)

	res, err := f.svc.GetReservation(ctx, first.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, res.Status)

	req, err := f.svc.GetRequest(ctx, first.RequestID)
	require.NoError(t, err)
	require.NotNil(t, req.DecidedAt)
	assert.Nil(t, req.RejectionReason)

	assert.Equal(t, []queue.EventType{queue.EventRequested, queue.EventApproved, queue.EventRequested}, f.events.types())
}

// insertPendingPair writes a pending pair directly, bypassing the checker,
// the way rows from an older deployment might look.
func insertPendingPair(t *testing.T, f *fixture, resource uint64, date model.Date, start, end string) (*model.Reservation, *model.ApprovalRequest) {
	t.Helper()
	ctx := context.Background()
	w := model.Window{Start: model.MustTime(start), End: model.MustTime(end)}
	res := &model.Reservation{ResourceID: resource, RequesterID: 8, Date: date, Window: w,
		DurationMinutes: w.Minutes(), AmountCents: 100, Status: model.ReservationPending}
	req := &model.ApprovalRequest{ResourceID: resource, RequesterID: 8, ProcessorID: processorID, Status: model.RequestPending}
	require.NoError(t, f.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := f.store.Reservations.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		req.ReservationID = res.ID
		return f.store.Requests.CreateTx(ctx, tx, req)
	}))
	return res, req
}

func TestScenarioApprovalRaceAutoRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, DecideInput{RequestID: first.RequestID, ProcessorID: processorID, Action: ActionApprove})
	require.NoError(t, err)

	// A second pending pair for an overlapping window that got in before
	// the first approval committed.
	secondRes, secondReq := insertPendingPair(t, f, 5, model.Date{Year: 2024, Month: time.June, Day: 1}, "09:30", "10:30")

	result, err := f.svc.Decide(ctx, DecideInput{RequestID: secondReq.ID, ProcessorID: processorID, Action: ActionApprove})
	requireKind(t, err, apperror.KindConflict)
	require.NotNil(t, result)
	assert.Equal(t, model.RequestRejected, result.Status)
	assert.Equal(t, model.ReservationCancelled, result.ReservationStatus)
	assert.Equal(t, "reservation", apperror.As(err).Details["kind"])
	assert.Equal(t, first.ReservationID, apperror.As(err).Details["entity_id"])

	res, err := f.svc.GetReservation(ctx, secondRes.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)

	req, err := f.svc.GetRequest(ctx, secondReq.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, req.Status)
	require.NotNil(t, req.RejectionReason)
	assert.Equal(t, "slot occupied at approval time", *req.RejectionReason)

	types := f.events.types()
	assert.Equal(t, queue.EventRejected, types[len(types)-1])
}

func TestApproveExcludesOwnReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	// The request's own pending reservation and pending request both
	// cover the window and must not block approval.
	got, err := f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID, Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, got.Status)
}

func TestBoundaryOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "10:00", "11:00"))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	assert.NoError(t, err)

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-02", "09:00", "10:01"))
	assert.NoError(t, err)

	f2 := newFixture(t)
	_, err = f2.svc.Submit(ctx, submitInput(5, "2024-06-01", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f2.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:01"))
	requireKind(t, err, apperror.KindConflict)
	assert.Equal(t, string(availability.Reservation), apperror.As(err).Details["kind"])
}

func TestRejectIsNotRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	got, err := f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID, Action: ActionReject, Reason: "maintenance"})
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, got.Status)
	assert.Equal(t, model.ReservationCancelled, got.ReservationStatus)

	_, err = f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID, Action: ActionReject})
	requireKind(t, err, apperror.KindNotFound)
	_, err = f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID, Action: ActionApprove})
	requireKind(t, err, apperror.KindNotFound)

	req, err := f.svc.GetRequest(ctx, sub.RequestID)
	require.NoError(t, err)
	require.NotNil(t, req.RejectionReason)
	assert.Equal(t, "maintenance", *req.RejectionReason)
	assert.Len(t, f.events.types(), 2)

	// The cancelled slot is free again.
	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	assert.NoError(t, err)
}

func TestDecideByForeignProcessorIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	for _, action := range []Action{ActionApprove, ActionReject} {
		_, err := f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID + 1, Action: action})
		requireKind(t, err, apperror.KindForbidden)
	}
	req, err := f.svc.GetRequest(ctx, sub.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)
}

func TestDecideUnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Decide(context.Background(), DecideInput{RequestID: 99, ProcessorID: processorID, Action: ActionApprove})
	requireKind(t, err, apperror.KindNotFound)
}

func TestSubmitIsAtomic(t *testing.T) {
	f := newFixture(t)
	dbtest.FailInserts(t, f.db, "approval_requests")

	_, err := f.svc.Submit(context.Background(), submitInput(5, "2024-06-01", "09:00", "10:00"))
	requireKind(t, err, apperror.KindInternal)
	assert.Equal(t, "internal error", apperror.As(err).Message)
	assert.Zero(t, dbtest.Count(t, f.db, "reservations"))
	assert.Zero(t, dbtest.Count(t, f.db, "approval_requests"))
	assert.Empty(t, f.events.types())
}

func TestDecideIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)
	dbtest.FailUpdates(t, f.db, "reservations")

	for _, action := range []Action{ActionApprove, ActionReject} {
		_, err = f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID, Action: action})
		requireKind(t, err, apperror.KindInternal)
	}

	req, err := f.svc.GetRequest(ctx, sub.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.Nil(t, req.DecidedAt)
	res, err := f.svc.GetReservation(ctx, sub.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, res.Status)
}

func TestBlockedWindowsUseCivilWeekday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// 2024-06-01 is a Saturday.
	dbtest.BlockWindow(t, f.db, 5, int(time.Saturday), "12:00:00", "14:00:00")

	_, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "13:00", "15:00"))
	requireKind(t, err, apperror.KindConflict)
	assert.Equal(t, string(availability.BlockedWindow), apperror.As(err).Details["kind"])

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "14:00", "15:00"))
	assert.NoError(t, err)
	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-02", "13:00", "15:00"))
	assert.NoError(t, err)
}

func TestPendingRequestBlocksSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	requireKind(t, err, apperror.KindConflict)

	_, err = f.svc.Submit(ctx, submitInput(6, "2024-06-01", "09:00", "10:00"))
	assert.NoError(t, err)
}

func TestReadFaultFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Exec(t, f.db, `DROP TABLE blocked_windows`)

	_, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	requireKind(t, err, apperror.KindInternal)
	assert.Zero(t, dbtest.Count(t, f.db, "reservations"))

	_, err = f.svc.CheckAvailability(ctx, AvailabilityQuery{ResourceID: 5, Date: "2024-06-01", Start: "09:00", End: "10:00"})
	requireKind(t, err, apperror.KindInternal)
}

func TestConcurrentSubmissionsGrantOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		granted   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := fmt.Sprintf("09:%02d", i*5)
			in := submitInput(5, "2024-06-01", start, "10:30")
			_, err := f.svc.Submit(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case apperror.IsKind(err, apperror.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, dbtest.Count(t, f.db, "reservations"))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := submitInput(5, "2024-06-01", "09:00", "10:00")

	cases := map[string]func(in *SubmitInput){
		"missing resource":  func(in *SubmitInput) { in.ResourceID = 0 },
		"missing requester": func(in *SubmitInput) { in.RequesterID = 0 },
		"missing date":      func(in *SubmitInput) { in.Date = "" },
		"bad date":          func(in *SubmitInput) { in.Date = "2024-02-30" },
		"bad time":          func(in *SubmitInput) { in.Start = "9am" },
		"inverted window":   func(in *SubmitInput) { in.Start, in.End = "10:00", "09:00" },
		"empty window":      func(in *SubmitInput) { in.End = "09:00" },
		"duration mismatch": func(in *SubmitInput) { in.DurationMinutes = 90 },
		"missing amount":    func(in *SubmitInput) { in.AmountCents = 0 },
		"negative amount":   func(in *SubmitInput) { in.AmountCents = -5 },
		"past date":         func(in *SubmitInput) { in.Date = "2024-05-29" },
	}
	f.svc.opts.RejectPastDates = true
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			_, err := f.svc.Submit(ctx, in)
			requireKind(t, err, apperror.KindValidation)
		})
	}
	assert.Zero(t, dbtest.Count(t, f.db, "reservations"))

	// Today in the booking time zone is allowed.
	in := valid
	in.Date = "2024-05-30"
	_, err := f.svc.Submit(ctx, in)
	assert.NoError(t, err)
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Decide(ctx, DecideInput{RequestID: 1, ProcessorID: processorID, Action: "maybe"})
	requireKind(t, err, apperror.KindValidation)
	_, err = f.svc.Decide(ctx, DecideInput{RequestID: 1, Action: ActionApprove})
	requireKind(t, err, apperror.KindValidation)
}

func TestProcessorResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.resolver = processor.Func(func(context.Context, uint64) (uint64, error) { return 0, processor.ErrUnknownResource })
	_, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	requireKind(t, err, apperror.KindNotFound)

	f.svc.resolver = processor.Func(func(context.Context, uint64) (uint64, error) { return 0, processor.ErrUnavailable })
	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	requireKind(t, err, apperror.KindTransient)

	f.svc.resolver = processor.Func(func(_ context.Context, id uint64) (uint64, error) { return 300 + id, nil })
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)
	req, err := f.svc.GetRequest(ctx, sub.RequestID)
	require.NoError(t, err)
	assert.Equal(t, uint64(305), req.ProcessorID)
}

func TestPublishFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.events.err = errors.New("broker down")

	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, DecideInput{RequestID: sub.RequestID, ProcessorID: processorID, Action: ActionApprove})
	assert.NoError(t, err)
}

func TestInTxRetriesTransientFaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := 0
	err := f.svc.inTx(ctx, "test", func(context.Context, *sql.Tx) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: lock wait", repository.ErrTransient)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = f.svc.inTx(ctx, "test", func(context.Context, *sql.Tx) error {
		calls++
		return fmt.Errorf("%w: deadlock", repository.ErrTransient)
	})
	requireKind(t, err, apperror.KindTransient)
	assert.Equal(t, 3, calls)

	calls = 0
	err = f.svc.inTx(ctx, "test", func(context.Context, *sql.Tx) error {
		calls++
		return apperror.Conflict("taken")
	})
	requireKind(t, err, apperror.KindConflict)
	assert.Equal(t, 1, calls)
}

func TestTransactionTimeoutIsTransient(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.TxTimeout = 10 * time.Millisecond
	f.svc.opts.TxRetries = 0

	err := f.svc.inTx(context.Background(), "test", func(ctx context.Context, _ *sql.Tx) error {
		<-ctx.Done()
		return ctx.Err()
	})
	requireKind(t, err, apperror.KindTransient)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	res, err := f.svc.CheckAvailability(ctx, AvailabilityQuery{ResourceID: 5, Date: "2024-06-01", Start: "09:30", End: "10:30"})
	require.NoError(t, err)
	assert.Equal(t, availability.Reservation, res.Kind)
	assert.Equal(t, sub.ReservationID, res.EntityID)

	res, err = f.svc.CheckAvailability(ctx, AvailabilityQuery{ResourceID: 5, Date: "2024-06-01", Start: "10:00", End: "10:30"})
	require.NoError(t, err)
	assert.True(t, res.Free())

	_, err = f.svc.CheckAvailability(ctx, AvailabilityQuery{Date: "2024-06-01", Start: "10:00", End: "10:30"})
	requireKind(t, err, apperror.KindValidation)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)
	b, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, DecideInput{RequestID: a.RequestID, ProcessorID: processorID, Action: ActionApprove})
	require.NoError(t, err)

	all, err := f.svc.ListReservations(ctx, ReservationQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ReservationID, all[0].ID)

	confirmed, err := f.svc.ListReservations(ctx, ReservationQuery{Status: "confirmed", Date: "2024-06-01"})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, a.ReservationID, confirmed[0].ID)

	inbox, err := f.svc.ListRequests(ctx, RequestQuery{ProcessorID: processorID, Status: "pending"})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, b.RequestID, inbox[0].ID)

	_, err = f.svc.ListReservations(ctx, ReservationQuery{Status: "archived"})
	requireKind(t, err, apperror.KindValidation)
	_, err = f.svc.ListRequests(ctx, RequestQuery{Status: "done"})
	requireKind(t, err, apperror.KindValidation)

	_, err = f.svc.GetReservation(ctx, 999)
	requireKind(t, err, apperror.KindNotFound)
}

func TestDeleteRequestReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRequest(ctx, sub.RequestID))
	res, err := f.svc.GetReservation(ctx, sub.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)

	_, err = f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	assert.NoError(t, err)

	requireKind(t, f.svc.DeleteRequest(ctx, sub.RequestID), apperror.KindNotFound)
}

func TestDeleteReservationCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, submitInput(5, "2024-06-01", "09:00", "10:00"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteReservation(ctx, sub.ReservationID))
	_, err = f.svc.GetRequest(ctx, sub.RequestID)
	requireKind(t, err, apperror.KindNotFound)
	requireKind(t, f.svc.DeleteReservation(ctx, sub.ReservationID), apperror.KindNotFound)
}
