package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
)

// memoryAttendanceRepo mimics the Postgres repository's semantics in memory:
// one record per (course, student, date), upsert writes, full-day replace.
type memoryAttendanceRepo struct {
	records map[string]models.AttendanceRecord
}

func newMemoryAttendanceRepo() *memoryAttendanceRepo {
	return &memoryAttendanceRepo{records: make(map[string]models.AttendanceRecord)}
}

func recordKey(courseID, studentID string, date time.Time) string {
	return courseID + "|" + studentID + "|" + date.Format("2006-01-02")
}

func (m *memoryAttendanceRepo) Upsert(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	key := recordKey(record.CourseID, record.StudentID, record.Date)
	now := time.Now().UTC()
	stored, exists := m.records[key]
	if exists {
		stored.Status = record.Status
		stored.MarkedBy = record.MarkedBy
		stored.UpdatedAt = now
	} else {
		stored = *record
		stored.ID = uuid.NewString()
		stored.CreatedAt = now
		stored.UpdatedAt = now
	}
	m.records[key] = stored
	return &stored, nil
}

func (m *memoryAttendanceRepo) ReplaceDay(_ context.Context, courseID string, date time.Time, records []models.AttendanceRecord) error {
	day := date.Format("2006-01-02")
	for key, record := range m.records {
		if record.CourseID == courseID && record.Date.Format("2006-01-02") == day {
			delete(m.records, key)
		}
	}
	now := time.Now().UTC()
	for _, record := range records {
		record.ID = uuid.NewString()
		record.CreatedAt = now
		record.UpdatedAt = now
		m.records[recordKey(record.CourseID, record.StudentID, record.Date)] = record
	}
	return nil
}

func (m *memoryAttendanceRepo) ListByDate(_ context.Context, courseID string, date time.Time) ([]models.AttendanceRecord, error) {
	day := date.Format("2006-01-02")
	var out []models.AttendanceRecord
	for _, record := range m.records {
		if record.CourseID == courseID && record.Date.Format("2006-01-02") == day {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (m *memoryAttendanceRepo) ListByStudent(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, record := range m.records {
		if record.StudentID == filter.StudentID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memoryAttendanceRepo) MarkedDates(_ context.Context, courseID string) ([]time.Time, error) {
	seen := make(map[string]time.Time)
	for _, record := range m.records {
		if record.CourseID == courseID {
			seen[record.Date.Format("2006-01-02")] = record.Date
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for _, date := range seen {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates, nil
}

func TestScenarioSingleMarkReadAndStats(t *testing.T) {
	repo := newMemoryAttendanceRepo()
	svc := newScenarioAttendanceService(repo)

	_, err := svc.MarkOne(context.Background(), MarkOneRequest{
		CourseID:  "C1",
		StudentID: "S1",
		Date:      "2024-01-15",
		Status:    "present",
		MarkedBy:  "I1",
	})
	require.NoError(t, err)

	date, _ := time.Parse("2006-01-02", "2024-01-15")
	records, source, err := svc.ReadByDate(context.Background(), "C1", date)
	require.NoError(t, err)
	assert.Equal(t, ReadSourceRemote, source)
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].StudentID)
	assert.Equal(t, models.AttendanceStatusPresent, records[0].Status)
	assert.Equal(t, "I1", records[0].MarkedBy)

	stats := ComputeStats(5, records)
	assert.Equal(t, 1, stats.Present)
	assert.Equal(t, 0, stats.Late)
	assert.Equal(t, 0, stats.Absent)
	assert.Equal(t, 1, stats.MarkedCount)
	assert.Equal(t, 4, stats.UnmarkedCount)
	assert.Equal(t, 100.0, stats.AttendanceRate)
}

func TestScenarioBulkThenSingleCorrection(t *testing.T) {
	repo := newMemoryAttendanceRepo()
	svc := newScenarioAttendanceService(repo)

	items := make([]MarkBulkItem, 5)
	for i, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		items[i] = MarkBulkItem{StudentID: id, Status: "absent"}
	}
	_, err := svc.MarkBulk(context.Background(), MarkBulkRequest{
		CourseID: "C1",
		Date:     "2024-01-16",
		Items:    items,
		MarkedBy: "I1",
	})
	require.NoError(t, err)

	dates, err := svc.ListMarkedDates(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2024-01-16", dates[0].Format("2006-01-02"))

	_, err = svc.MarkOne(context.Background(), MarkOneRequest{
		CourseID:  "C1",
		StudentID: "S1",
		Date:      "2024-01-16",
		Status:    "late",
		MarkedBy:  "I1",
	})
	require.NoError(t, err)

	date, _ := time.Parse("2006-01-02", "2024-01-16")
	records, _, err := svc.ReadByDate(context.Background(), "C1", date)
	require.NoError(t, err)
	require.Len(t, records, 5, "correcting one mark must not touch the others")

	byStudent := make(map[string]models.AttendanceStatus, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record.Status
	}
	assert.Equal(t, models.AttendanceStatusLate, byStudent["S1"])
	for _, id := range []string{"S2", "S3", "S4", "S5"} {
		assert.Equal(t, models.AttendanceStatusAbsent, byStudent[id], "student %s", id)
	}
}

func TestScenarioUniquenessAcrossMixedWrites(t *testing.T) {
	repo := newMemoryAttendanceRepo()
	svc := newScenarioAttendanceService(repo)

	for _, status := range []string{"present", "absent", "late", "present"} {
		_, err := svc.MarkOne(context.Background(), MarkOneRequest{
			CourseID:  "C1",
			StudentID: "S1",
			Date:      "2024-01-15",
			Status:    status,
			MarkedBy:  "I1",
		})
		require.NoError(t, err)
	}
	_, err := svc.MarkBulk(context.Background(), MarkBulkRequest{
		CourseID: "C1",
		Date:     "2024-01-15",
		Items:    []MarkBulkItem{{StudentID: "S1", Status: "absent"}},
		MarkedBy: "I1",
	})
	require.NoError(t, err)

	date, _ := time.Parse("2006-01-02", "2024-01-15")
	records, _, err := svc.ReadByDate(context.Background(), "C1", date)
	require.NoError(t, err)
	require.Len(t, records, 1, "at most one record per (course, student, date)")
	assert.Equal(t, models.AttendanceStatusAbsent, records[0].Status)
}

func newScenarioAttendanceService(repo *memoryAttendanceRepo) *AttendanceService {
	return NewAttendanceService(repo, &mockSnapshotStore{}, nil, nil, nil, zap.NewNop())
}
