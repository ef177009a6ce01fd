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

// ReservationRepo provides CRUD operations for reservations.  Writes run
// inside a caller supplied transaction; the service layer owns the
// transaction boundary.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
	d  database.Dialect
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB, d database.Dialect) *ReservationRepo {
	return &ReservationRepo{db: db, d: d}
}

const reservationCols = `id, resource_id, requester_id, team_id, slot_date, start_time, end_time,
	duration_minutes, amount_cents, status, created_at, updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		team      sql.NullInt64
		status    string
		createdAt nullTime
		updatedAt nullTime
	)
	err := row.Scan(
		&res.ID, &res.ResourceID, &res.RequesterID, &team, &res.Date,
		&res.Window.Start, &res.Window.End, &res.DurationMinutes, &res.AmountCents,
		&status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if team.Valid {
		t := uint64(team.Int64)
		res.TeamID = &t
	}
	res.Status = model.ReservationStatus(status)
	res.CreatedAt = createdAt.Time
	res.UpdatedAt = updatedAt.Time
	return &res, nil
}

// CreateTx inserts res within the scope of an existing transaction and
// populates its generated ID.  Timestamps default to now when unset.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	res.CreatedAt = timestamp(res.CreatedAt)
	res.UpdatedAt = res.CreatedAt
	const q = `INSERT INTO reservations (resource_id, requester_id, team_id, slot_date, start_time, end_time,
		duration_minutes, amount_cents, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := insertID(ctx, tx, r.d, q,
		res.ResourceID, res.RequesterID, nullableID(res.TeamID), res.Date,
		res.Window.Start, res.Window.End, res.DurationMinutes, res.AmountCents,
		string(res.Status), res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return err
	}
	res.ID = id
	return nil
}

// GetByID returns a reservation or ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return r.get(ctx, r.db, id, false)
}

// GetByIDTx reads a reservation inside tx, optionally locking the row.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (*model.Reservation, error) {
	return r.get(ctx, tx, id, forUpdate)
}

func (r *ReservationRepo) get(ctx context.Context, q DBTX, id uint64, forUpdate bool) (*model.Reservation, error) {
	query := `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	if forUpdate {
		query += r.d.ForUpdate()
	}
	res, err := scanReservation(q.QueryRowContext(ctx, r.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

// ReservationFilter narrows List.  Zero fields are ignored.
type ReservationFilter struct {
	ResourceID  uint64
	RequesterID uint64
	Date        model.Date
	Status      model.ReservationStatus
	Limit       int
}

// List returns reservations matching f, newest first.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.ResourceID != 0 {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.RequesterID != 0 {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if !f.Date.IsZero() {
		where = append(where, "slot_date = ?")
		args = append(args, f.Date)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + reservationCols + ` FROM reservations`
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
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// UpdateStatusTx moves a reservation from one status to another.  It
// returns ErrStateChanged when the row is missing or not in state from.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus, now time.Time) error {
	const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, r.d.Rebind(q), string(to), timestamp(now), id, string(from))
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// DeleteTx removes a reservation.  Its approval request goes with it
// through the ON DELETE CASCADE foreign key.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	result, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM reservations WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// FindOverlapping returns the id of an active reservation (pending or
// confirmed) whose window intersects sq.Window on the same court and date.
// Windows are half-open, so a reservation ending exactly at sq.Window.Start
// does not count.
func (r *ReservationRepo) FindOverlapping(ctx context.Context, q DBTX, sq model.SlotQuery) (uint64, bool, error) {
	const query = `SELECT id FROM reservations
		WHERE resource_id = ? AND slot_date = ?
		  AND status IN ('pending', 'confirmed')
		  AND id <> ?
		  AND start_time < ? AND ? < end_time
		ORDER BY start_time, id
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

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrStateChanged
	}
	return nil
}
