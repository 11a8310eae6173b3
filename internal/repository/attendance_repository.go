package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/attendance-api/internal/models"
)

// AttendanceRepository handles persistence of attendance marks in Postgres.
// The attendance table carries a uniqueness constraint on
// (course_id, student_id, date); all writes go through upsert or a full
// partition replace, so the constraint is never violated.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or updates the record for its (course, student, date) key.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance (id, course_id, student_id, date, status, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (course_id, student_id, date)
DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, course_id, student_id, date, status, marked_by, created_at, updated_at`
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.CourseID, record.StudentID, record.Date, record.Status, record.MarkedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// ReplaceDay swaps out the whole (course, date) partition in one transaction.
// Records for that day not present in the payload are discarded.
func (r *AttendanceRepository) ReplaceDay(ctx context.Context, courseID string, date time.Time, records []models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace attendance day: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE course_id = $1 AND date = $2`, courseID, date); err != nil {
		return fmt.Errorf("clear attendance day: %w", err)
	}

	const insert = `INSERT INTO attendance (id, course_id, student_id, date, status, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, insert, rec.ID, rec.CourseID, rec.StudentID, rec.Date, rec.Status, rec.MarkedBy, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("insert attendance for student %s: %w", rec.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace attendance day: %w", err)
	}
	committed = true
	return nil
}

// ListByDate returns the records for a course on a single date.
func (r *AttendanceRepository) ListByDate(ctx context.Context, courseID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, course_id, student_id, date, status, marked_by, created_at, updated_at
FROM attendance WHERE course_id = $1 AND date = $2
ORDER BY student_id`
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, courseID, date); err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return rows, nil
}

// ListByStudent returns a student's records, optionally scoped by course and date range.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	query := fmt.Sprintf(`SELECT id, course_id, student_id, date, status, marked_by, created_at, updated_at
FROM attendance WHERE %s
ORDER BY date DESC`, strings.Join(where, " AND "))
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	return rows, nil
}

// MarkedDates returns the distinct dates with at least one record for a course,
// newest first.
func (r *AttendanceRepository) MarkedDates(ctx context.Context, courseID string) ([]time.Time, error) {
	const query = `SELECT DISTINCT date FROM attendance WHERE course_id = $1 ORDER BY date DESC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, courseID); err != nil {
		return nil, fmt.Errorf("list marked dates: %w", err)
	}
	return dates, nil
}
