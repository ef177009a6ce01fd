package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/court-reservation/internal/database"
	"github.com/iliyamo/court-reservation/internal/model"
)

// ApprovalRequestRepo persists approval requests.  Each request is bound
// to exactly one reservation (unique reservation_id).
type ApprovalRequestRepo struct {
	db *sql.DB
	d  database.Dialect
}

func NewApprovalRequestRepo(db *sql.DB, d database.Dialect) *ApprovalRequestRepo {
	return &ApprovalRequestRepo{db: db, d: d}
}

const requestCols = `id, reservation_id, resource_id, requester_id, processor_id, message,
	rejection_reason, decided_at, status, created_at, updated_at`

func scanRequest(row rowScanner) (*model.ApprovalRequest, error) {
	var (
		req       model.ApprovalRequest
		message   sql.NullString
		reason    sql.NullString
		decidedAt nullTime
		status    string
		createdAt nullTime
		updatedAt nullTime
	)
	err := row.Scan(
		&req.ID, &req.ReservationID, &req.ResourceID, &req.RequesterID, &req.ProcessorID,
		&message, &reason, &decidedAt, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Message = message.String
	if reason.Valid {
		s := reason.String
		req.RejectionReason = &s
	}
	req.DecidedAt = decidedAt.ptr()
	req.Status = model.RequestStatus(status)
	req.CreatedAt = createdAt.Time
	req.UpdatedAt = updatedAt.Time
	return &req, nil
}

// CreateTx inserts req inside tx and populates its generated ID.
func (r *ApprovalRequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.ApprovalRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	req.CreatedAt = timestamp(req.CreatedAt)
	req.UpdatedAt = req.CreatedAt
	const q = `INSERT INTO approval_requests (reservation_id, resource_id, requester_id, processor_id,
		message, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := insertID(ctx, tx, r.d, q,
		req.ReservationID, req.ResourceID, req.RequesterID, req.ProcessorID,
		req.Message, string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return err
	}
	req.ID = id
	return nil
}

// GetByID returns a request or ErrRequestNotFound.
func (r *ApprovalRequestRepo) GetByID(ctx context.Context, id uint64) (*model.ApprovalRequest, error) {
	return r.get(ctx, r.db, id, false)
}

// GetByIDTx reads a request inside tx.  With forUpdate the row stays
// locked until the transaction ends, which serializes competing decisions.
func (r *ApprovalRequestRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (*model.ApprovalRequest, error) {
	return r.get(ctx, tx, id, forUpdate)
}

func (r *ApprovalRequestRepo) get(ctx context.Context, q DBTX, id uint64, forUpdate bool) (*model.ApprovalRequest, error) {
	query := `SELECT ` + requestCols + ` FROM approval_requests WHERE id = ?`
	if forUpdate {
		query += r.d.ForUpdate()
	}
	req, err := scanRequest(q.QueryRowContext(ctx, r.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	return req, err
}

// RequestFilter narrows List.  Zero fields are ignored.
type RequestFilter struct {
	ProcessorID uint64
	RequesterID uint64
	ResourceID  uint64
	Status      model.RequestStatus
	Limit       int
}

// List returns requests matching f, newest first.
func (r *ApprovalRequestRepo) List(ctx context.Context, f RequestFilter) ([]model.ApprovalRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.ProcessorID != 0 {
		where = append(where, "processor_id = ?")
		args = append(args, f.ProcessorID)
	}
	if f.RequesterID != 0 {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if f.ResourceID != 0 {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + requestCols + ` FROM approval_requests`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ApprovalRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// DecideTx records the terminal status of a pending request.  reason is
// stored only for rejections.  ErrStateChanged means the request was no
// longer pending.
func (r *ApprovalRequestRepo) DecideTx(ctx context.Context, tx *sql.Tx, id uint64, to model.RequestStatus, reason *string, at time.Time) error {
	const q = `UPDATE approval_requests
		SET status = ?, rejection_reason = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`
	at = timestamp(at)
	result, err := tx.ExecContext(ctx, r.d.Rebind(q), string(to), nullableString(reason), at, at, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// DeleteTx removes a request row.
func (r *ApprovalRequestRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	result, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM approval_requests WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// FindOverlappingPending returns the id of a pending request whose
// reservation intersects sq.Window on the same court and date.  Requests
// for sq.ExcludeReservationID are skipped.
func (r *ApprovalRequestRepo) FindOverlappingPending(ctx context.Context, q DBTX, sq model.SlotQuery) (uint64, bool, error) {
	const query = `SELECT a.id FROM approval_requests a
		JOIN reservations r ON r.id = a.reservation_id
		WHERE a.resource_id = ? AND a.status = 'pending'
		  AND r.slot_date = ?
		  AND a.reservation_id <> ?
		  AND r.start_time < ? AND ? < r.end_time
		ORDER BY r.start_time, a.id
		LIMIT 1`
	var id uint64
	err := q.QueryRowContext(ctx, r.d.Rebind(query),
		sq.ResourceID, sq.Date, sq.ExcludeReservationID, sq.Window.End, sq.Window.Start,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
