package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/attendance-api/internal/models"
)

func TestRosterRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "student_number"}).
		AddRow("s1", "Ana Lima", "ana@classdesk.dev", "N-001").
		AddRow("s2", "Ben Cho", "ben@classdesk.dev", "N-002")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.full_name, s.email, s.student_number")).
		WithArgs("course-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	students, err := repo.ListByCourse(context.Background(), "course-1")

	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ana Lima", students[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListByCourseEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.full_name, s.email, s.student_number")).
		WithArgs("course-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "student_number"}))

	students, err := repo.ListByCourse(context.Background(), "course-1")

	require.NoError(t, err)
	assert.Empty(t, students)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListByCourseError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.full_name, s.email, s.student_number")).
		WillReturnError(errors.New("relation does not exist"))

	_, err := repo.ListByCourse(context.Background(), "course-1")

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
