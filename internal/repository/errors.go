// Package repository defines error types that are reused across multiple
// repositories.  Not-found sentinels let the service layer tell a missing
// row from a store fault, and Classify sorts driver errors into faults
// that are safe to retry and faults that are not.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrReservationNotFound is returned when no reservation has the given id.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrRequestNotFound is returned when no approval request has the given id.
var ErrRequestNotFound = errors.New("approval request not found")

// ErrStateChanged is returned by guarded status updates when the row is
// no longer in the state the caller expected.
var ErrStateChanged = errors.New("row not in expected state")

// ErrTransient marks lock waits, deadlocks, busy databases and timeouts.
// Repeating the whole transaction may succeed.
var ErrTransient = errors.New("transient store fault")

// ErrSlotTaken is returned when the database itself rejects an
// overlapping active reservation (postgres exclusion constraint).
var ErrSlotTaken = errors.New("slot already taken")

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213

	pgExclusionViolation  = "23P01"
	pgSerializationFailed = "40001"
	pgDeadlockDetected    = "40P01"
	pgLockNotAvailable    = "55P03"
	pgQueryCanceled       = "57014"
)

// Classify wraps err with ErrTransient or ErrSlotTaken when the driver
// error says so.  Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) || errors.Is(err, ErrSlotTaken) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return err
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case pgExclusionViolation:
			return fmt.Errorf("%w: %w", ErrSlotTaken, err)
		case pgSerializationFailed, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return err
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	return err
}
