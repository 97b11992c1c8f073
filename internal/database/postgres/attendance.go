package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

var _ database.AttendanceStore = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// InsertAttendance relies on the (identity_id, day) primary key for idempotency.
func (r *AttendanceRepository) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, *database.AttendanceRecord, error) {
	res, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (identity_id, day, recorded_at, status)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (identity_id, day) DO NOTHING
	`, rec.IdentityID, rec.Day, rec.Timestamp, string(rec.Status))
	if hasCode(err, codeForeignKeyViolation) {
		return false, nil, database.ErrNotFound
	}
	if err != nil {
		return false, nil, classify("insert attendance", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil, nil
	}

	existing, err := scanAttendance(r.pool.QueryRow(ctx, `
		SELECT identity_id, day, recorded_at, status
		FROM attendance
		WHERE identity_id = $1 AND day = $2::date
	`, rec.IdentityID, rec.Day))
	if err != nil {
		return false, nil, classify("load existing attendance", err)
	}
	return false, existing, nil
}

// ListAttendance returns all records for a day ordered by timestamp.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, day string) ([]database.AttendanceRecord, error) {
	return r.list(ctx, `
		SELECT identity_id, day, recorded_at, status
		FROM attendance
		WHERE day = $1::date
		ORDER BY recorded_at, identity_id
	`, day)
}

// ListAttendanceForIdentity returns all records of an identity ordered by day.
func (r *AttendanceRepository) ListAttendanceForIdentity(ctx context.Context, identityID string) ([]database.AttendanceRecord, error) {
	return r.list(ctx, `
		SELECT identity_id, day, recorded_at, status
		FROM attendance
		WHERE identity_id = $1
		ORDER BY day
	`, identityID)
}

func (r *AttendanceRepository) list(ctx context.Context, query string, arg string) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []database.AttendanceRecord{}
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate attendance", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row rowScanner) (*database.AttendanceRecord, error) {
	var (
		rec    database.AttendanceRecord
		day    time.Time
		status string
	)
	if err := row.Scan(&rec.IdentityID, &day, &rec.Timestamp, &status); err != nil {
		return nil, err
	}
	rec.Day = day.Format(constants.DayLayout)
	rec.Status = database.AttendanceStatus(status)
	return &rec, nil
}
