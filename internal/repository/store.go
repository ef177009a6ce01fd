package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/court-reservation/internal/database"
	"github.com/iliyamo/court-reservation/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so read primitives can
// run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle and groups the repositories that share
// it.  It begins the transactions that span several repositories.
type Store struct {
	db      *sql.DB
	dialect database.Dialect

	Reservations   *ReservationRepo
	Requests       *ApprovalRequestRepo
	BlockedWindows *BlockedWindowRepo
}

// NewStore binds all repositories to db.
func NewStore(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{
		db:             db,
		dialect:        dialect,
		Reservations:   NewReservationRepo(db, dialect),
		Requests:       NewApprovalRequestRepo(db, dialect),
		BlockedWindows: NewBlockedWindowRepo(db, dialect),
	}
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a transaction.  The transaction is committed when
// fn returns nil and rolled back otherwise, so a failure anywhere in fn
// leaves no partial writes behind.  Driver errors are classified.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify(fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return Classify(err)
	}
	if err := tx.Commit(); err != nil {
		return Classify(fmt.Errorf("commit transaction: %w", err))
	}
	committed = true
	return nil
}

// LockSlotTx serializes every transaction touching the same court and
// date.  The lock is held until the transaction ends.
func (s *Store) LockSlotTx(ctx context.Context, tx *sql.Tx, resourceID uint64, date model.Date) error {
	q, args := lockSlotQuery(s.dialect, resourceID, date, time.Now())
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("lock slot %d/%s: %w", resourceID, date, err)
	}
	return nil
}

// lockSlotQuery returns the statement that takes the slot lock on d,
// already rebound for the driver.
func lockSlotQuery(d database.Dialect, resourceID uint64, date model.Date, now time.Time) (string, []any) {
	var (
		q    string
		args []any
	)
	switch d.Driver {
	case database.DriverPostgres:
		q = `SELECT pg_advisory_xact_lock(hashtextextended(?, 0))`
		args = []any{fmt.Sprintf("slot:%d:%s", resourceID, date)}
	case database.DriverSQLite:
		q = `INSERT INTO slot_locks (resource_id, slot_date, touched_at) VALUES (?, ?, ?)
		     ON CONFLICT (resource_id, slot_date) DO UPDATE SET touched_at = excluded.touched_at`
		args = []any{resourceID, date, timestamp(now)}
	default:
		// The upsert takes an exclusive lock on the (resource, date) row.
		q = `INSERT INTO slot_locks (resource_id, slot_date, touched_at) VALUES (?, ?, ?)
		     ON DUPLICATE KEY UPDATE touched_at = VALUES(touched_at)`
		args = []any{resourceID, date, timestamp(now)}
	}
	return d.Rebind(q), args
}

// View returns an availability source reading through q.
func (s *Store) View(q DBTX) *SlotView {
	return &SlotView{q: q, store: s}
}

// SlotView answers the three availability questions against one
// connection or transaction.
type SlotView struct {
	q     DBTX
	store *Store
}

func (v *SlotView) OverlappingReservation(ctx context.Context, sq model.SlotQuery) (uint64, bool, error) {
	return v.store.Reservations.FindOverlapping(ctx, v.q, sq)
}

func (v *SlotView) OverlappingPendingRequest(ctx context.Context, sq model.SlotQuery) (uint64, bool, error) {
	return v.store.Requests.FindOverlappingPending(ctx, v.q, sq)
}

func (v *SlotView) BlockedWindows(ctx context.Context, resourceID uint64, day time.Weekday) ([]model.BlockedWindow, error) {
	return v.store.BlockedWindows.ListForWeekday(ctx, v.q, resourceID, day)
}
