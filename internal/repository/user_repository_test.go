package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/attendance-api/internal/models"
)

func userColumns() []string {
	return []string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userColumns()).
		AddRow("user-1", "teacher@classdesk.dev", "hash", "Pat Teacher", models.RoleInstructor, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("teacher@classdesk.dev").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "teacher@classdesk.dev")

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, models.RoleInstructor, user.Role)
	assert.True(t, user.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@classdesk.dev")

	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows), "no-rows must stay recognizable for the service layer")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryTouchLastLogin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1")).
		WithArgs("user-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchLastLogin(context.Background(), "user-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}
