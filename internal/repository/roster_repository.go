package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/classdesk/attendance-api/internal/models"
)

// RosterRepository resolves a course's enrolled students via the
// enrollments x students join.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListByCourse returns the active roster for a course. Order follows the
// backend response (stable name sort); callers must not rely on more.
func (r *RosterRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.full_name, s.email, s.student_number
FROM enrollments e
JOIN students s ON s.id = e.student_id
WHERE e.course_id = $1 AND e.status = $2
ORDER BY s.full_name, s.id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return students, nil
}
