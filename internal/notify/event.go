package notify

import "time"

// Watched tables. Signals are table-wide; consumers reload from scratch.
const (
	TableCourses       = "courses"
	TableEnrollments   = "enrollments"
	TableAttendance    = "attendance"
	TableNotifications = "notifications"
)

// Event is a coarse "table changed" signal. It carries no row diff: the only
// correct reaction is to re-run the relevant read path. Scope optionally
// narrows the signal to one subject (the student id for enrollment changes,
// the user id for notification changes); it is matching metadata, not a payload.
type Event struct {
	Table string    `json:"table"`
	Scope string    `json:"scope,omitempty"`
	At    time.Time `json:"at"`
}
