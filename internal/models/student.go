package models

import "time"

// Student is a roster entry sourced from the enrollment join. The attendance
// subsystem never mutates students.
type Student struct {
	ID            string `db:"id" json:"id"`
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	StudentNumber string `db:"student_number" json:"student_number"`
}

// EnrollmentStatus tracks enrollment lifecycle.
type EnrollmentStatus string

const (
	EnrollmentStatusActive   EnrollmentStatus = "ACTIVE"
	EnrollmentStatusInactive EnrollmentStatus = "INACTIVE"
)

// Enrollment links a student to a course.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	JoinedAt  time.Time        `db:"joined_at" json:"joined_at"`
	Status    EnrollmentStatus `db:"status" json:"status"`
}
