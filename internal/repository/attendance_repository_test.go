package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/attendance-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceColumns() []string {
	return []string{"id", "course_id", "student_id", "date", "status", "marked_by", "created_at", "updated_at"}
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(attendanceColumns()).
		AddRow("att-1", "course-1", "s1", date, models.AttendanceStatusPresent, "teacher-1", now, now)
	mock.ExpectQuery(`INSERT INTO attendance .*ON CONFLICT \(course_id, student_id, date\)`).
		WillReturnRows(rows)

	stored, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		CourseID:  "course-1",
		StudentID: "s1",
		Date:      date,
		Status:    models.AttendanceStatusPresent,
		MarkedBy:  "teacher-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "att-1", stored.ID)
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(`INSERT INTO attendance`).WillReturnError(errors.New("connection refused"))

	_, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		CourseID:  "course-1",
		StudentID: "s1",
		Date:      time.Now(),
		Status:    models.AttendanceStatusLate,
	})

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryReplaceDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM attendance WHERE course_id = \$1 AND date = \$2`).
		WithArgs("course-1", date).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO attendance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO attendance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceDay(context.Background(), "course-1", date, []models.AttendanceRecord{
		{CourseID: "course-1", StudentID: "s1", Date: date, Status: models.AttendanceStatusPresent, MarkedBy: "teacher-1"},
		{CourseID: "course-1", StudentID: "s2", Date: date, Status: models.AttendanceStatusAbsent, MarkedBy: "teacher-1"},
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryReplaceDayRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM attendance`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO attendance`).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.ReplaceDay(context.Background(), "course-1", date, []models.AttendanceRecord{
		{CourseID: "course-1", StudentID: "s1", Date: date, Status: models.AttendanceStatusPresent},
	})

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(attendanceColumns()).
		AddRow("att-1", "course-1", "s1", date, models.AttendanceStatusPresent, "teacher-1", now, now).
		AddRow("att-2", "course-1", "s2", date, models.AttendanceStatusLate, "teacher-1", now, now)
	mock.ExpectQuery(`SELECT .* FROM attendance WHERE course_id = \$1 AND date = \$2`).
		WithArgs("course-1", date).
		WillReturnRows(rows)

	records, err := repo.ListByDate(context.Background(), "course-1", date)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s1", records[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByStudentWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(attendanceColumns())
	mock.ExpectQuery(`SELECT .* FROM attendance WHERE student_id = \$1 AND course_id = \$2 AND date >= \$3 AND date <= \$4`).
		WithArgs("s1", "course-1", from, to).
		WillReturnRows(rows)

	records, err := repo.ListByStudent(context.Background(), models.AttendanceFilter{
		StudentID: "s1",
		CourseID:  "course-1",
		DateFrom:  &from,
		DateTo:    &to,
	})

	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryMarkedDates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`SELECT DISTINCT date FROM attendance WHERE course_id = \$1 ORDER BY date DESC`).
		WithArgs("course-1").
		WillReturnRows(rows)

	dates, err := repo.MarkedDates(context.Background(), "course-1")

	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].After(dates[1]))
	require.NoError(t, mock.ExpectationsWereMet())
}
