package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// PersistenceOutcome reports where a mark operation ended up being stored.
type PersistenceOutcome string

const (
	// PersistedRemote means the durable store accepted the write.
	PersistedRemote PersistenceOutcome = "remote"
	// PersistedLocalOnly means only the snapshot cache holds the write; the
	// remote write failed and reconciliation is pending.
	PersistedLocalOnly PersistenceOutcome = "local-only"
)

// AttendanceRecord is a single per-student per-day attendance row. At most one
// record exists per (course_id, student_id, date); writes are upserts.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// SnapshotEntry is one student's mark inside a snapshot cache value.
type SnapshotEntry struct {
	Status    AttendanceStatus `json:"status"`
	MarkedBy  string           `json:"marked_by"`
	Timestamp time.Time        `json:"timestamp"`
}

// AttendanceSnapshot mirrors a (course, date) partition in the local cache,
// keyed by student id. It is written on every mark attempt and read only when
// the remote store is unreachable.
type AttendanceSnapshot map[string]SnapshotEntry

// AttendanceStats is derived from the day's records and the roster size.
type AttendanceStats struct {
	TotalStudents  int     `json:"total_students"`
	MarkedCount    int     `json:"marked_count"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	UnmarkedCount  int     `json:"unmarked_count"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// AttendanceFilter scopes per-student reads.
type AttendanceFilter struct {
	StudentID string
	CourseID  string
	DateFrom  *time.Time
	DateTo    *time.Time
}
