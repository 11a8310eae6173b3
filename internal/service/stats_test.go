package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/classdesk/attendance-api/internal/models"
)

func record(studentID string, status models.AttendanceStatus) models.AttendanceRecord {
	return models.AttendanceRecord{StudentID: studentID, Status: status}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(0, nil)

	assert.Equal(t, 0, stats.TotalStudents)
	assert.Equal(t, 0, stats.MarkedCount)
	assert.Equal(t, 0, stats.UnmarkedCount)
	assert.Equal(t, float64(0), stats.AttendanceRate)
}

func TestComputeStatsNoMarks(t *testing.T) {
	stats := ComputeStats(5, nil)

	assert.Equal(t, 5, stats.TotalStudents)
	assert.Equal(t, 0, stats.MarkedCount)
	assert.Equal(t, 5, stats.UnmarkedCount)
	assert.Equal(t, float64(0), stats.AttendanceRate)
}

func TestComputeStatsMixedDay(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", models.AttendanceStatusPresent),
		record("s2", models.AttendanceStatusPresent),
		record("s3", models.AttendanceStatusLate),
		record("s4", models.AttendanceStatusAbsent),
	}

	stats := ComputeStats(6, records)

	assert.Equal(t, 6, stats.TotalStudents)
	assert.Equal(t, 4, stats.MarkedCount)
	assert.Equal(t, 2, stats.Present)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 2, stats.UnmarkedCount)
	// (2 present + 1 late) / 4 marked = 75.0
	assert.Equal(t, 75.0, stats.AttendanceRate)
}

func TestComputeStatsRateRounding(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", models.AttendanceStatusPresent),
		record("s2", models.AttendanceStatusPresent),
		record("s3", models.AttendanceStatusAbsent),
	}

	stats := ComputeStats(5, records)

	assert.Equal(t, 66.7, stats.AttendanceRate)
}

func TestComputeStatsDuplicateStudentLastWins(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", models.AttendanceStatusAbsent),
		record("s1", models.AttendanceStatusPresent),
	}

	stats := ComputeStats(3, records)

	assert.Equal(t, 1, stats.MarkedCount)
	assert.Equal(t, 1, stats.Present)
	assert.Equal(t, 0, stats.Absent)
	assert.Equal(t, 2, stats.UnmarkedCount)
}

func TestComputeStatsMoreMarksThanRoster(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", models.AttendanceStatusPresent),
		record("orphan", models.AttendanceStatusPresent),
	}

	stats := ComputeStats(1, records)

	assert.Equal(t, 2, stats.MarkedCount)
	assert.Equal(t, 0, stats.UnmarkedCount)
	assert.Equal(t, 100.0, stats.AttendanceRate)
}

func TestOrphanStudentIDs(t *testing.T) {
	roster := []models.Student{{ID: "s1"}, {ID: "s2"}}
	records := []models.AttendanceRecord{
		record("s1", models.AttendanceStatusPresent),
		record("ghost", models.AttendanceStatusLate),
		record("ghost", models.AttendanceStatusPresent),
	}

	orphans := OrphanStudentIDs(roster, records)

	assert.Equal(t, []string{"ghost"}, orphans)
}

func TestOrphanStudentIDsNone(t *testing.T) {
	roster := []models.Student{{ID: "s1"}}
	records := []models.AttendanceRecord{record("s1", models.AttendanceStatusPresent)}

	assert.Empty(t, OrphanStudentIDs(roster, records))
}
