package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/court-reservation/internal/database"
	"github.com/iliyamo/court-reservation/internal/model"
)

// BlockedWindowRepo reads the weekly unavailability rules owned by the
// schedule service.
type BlockedWindowRepo struct {
	db *sql.DB
	d  database.Dialect
}

func NewBlockedWindowRepo(db *sql.DB, d database.Dialect) *BlockedWindowRepo {
	return &BlockedWindowRepo{db: db, d: d}
}

// ListForWeekday returns the rules of resourceID that apply on day,
// ordered by start time.
func (r *BlockedWindowRepo) ListForWeekday(ctx context.Context, q DBTX, resourceID uint64, day time.Weekday) ([]model.BlockedWindow, error) {
	const query = `SELECT id, resource_id, weekday, start_time, end_time
		FROM blocked_windows
		WHERE resource_id = ? AND weekday = ?
		ORDER BY start_time, id`
	rows, err := q.QueryContext(ctx, r.d.Rebind(query), resourceID, int(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BlockedWindow
	for rows.Next() {
		var (
			bw      model.BlockedWindow
			weekday int
		)
		if err := rows.Scan(&bw.ID, &bw.ResourceID, &weekday, &bw.Window.Start, &bw.Window.End); err != nil {
			return nil, err
		}
		bw.Weekday = time.Weekday(weekday)
		out = append(out, bw)
	}
	return out, rows.Err()
}
