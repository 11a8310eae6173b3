package service

import (
	"math"

	"github.com/classdesk/attendance-api/internal/models"
)

// ComputeStats derives day statistics from the roster size and the day's
// records. Pure function, no I/O. The store's uniqueness invariant should
// prevent duplicate student ids in records, but the computation is defensive:
// the last record per student wins.
func ComputeStats(totalStudents int, records []models.AttendanceRecord) models.AttendanceStats {
	latest := make(map[string]models.AttendanceStatus, len(records))
	for _, record := range records {
		latest[record.StudentID] = record.Status
	}

	stats := models.AttendanceStats{
		TotalStudents: totalStudents,
		MarkedCount:   len(latest),
	}
	for _, status := range latest {
		switch status {
		case models.AttendanceStatusPresent:
			stats.Present++
		case models.AttendanceStatusLate:
			stats.Late++
		case models.AttendanceStatusAbsent:
			stats.Absent++
		}
	}

	if unmarked := totalStudents - stats.MarkedCount; unmarked > 0 {
		stats.UnmarkedCount = unmarked
	}
	if stats.MarkedCount > 0 {
		rate := float64(stats.Present+stats.Late) / float64(stats.MarkedCount) * 100
		stats.AttendanceRate = math.Round(rate*10) / 10
	}
	return stats
}

// OrphanStudentIDs returns ids that appear in records but not on the roster.
// Orphans are counted in the stats regardless; callers log them for follow-up.
func OrphanStudentIDs(roster []models.Student, records []models.AttendanceRecord) []string {
	onRoster := make(map[string]struct{}, len(roster))
	for _, student := range roster {
		onRoster[student.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(records))
	var orphans []string
	for _, record := range records {
		if _, ok := onRoster[record.StudentID]; ok {
			continue
		}
		if _, dup := seen[record.StudentID]; dup {
			continue
		}
		seen[record.StudentID] = struct{}{}
		orphans = append(orphans, record.StudentID)
	}
	return orphans
}
