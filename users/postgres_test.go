package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AvanindraBose/irisauth"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

const (
	qCreate    = `INSERT INTO users \(username, email, password_hash, is_active\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id, created_at, updated_at`
	qByEmail   = `SELECT id, username, email, password_hash, is_active, created_at, updated_at FROM users WHERE email = \$1`
	qSetActive = `UPDATE users SET is_active = \$2, updated_at = now\(\) WHERE id = \$1`
)

var userColumns = []string{"id", "username", "email", "password_hash", "is_active", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db, time.Second), mock
}

func TestCreateNormalizesEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(qCreate).
		WithArgs("alice", "alice@example.com", "$2a$10$hash", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("u-1", now, now))

	u, err := repo.Create(context.Background(), &User{
		Username:     "alice",
		Email:        " Alice@Example.com ",
		PasswordHash: "$2a$10$hash",
		Active:       true,
	})
	require.NoError(t, err)
	require.Equal(t, "u-1", u.ID)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qCreate).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &User{Username: "a", Email: "a@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialsByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(qByEmail).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "alice", "alice@example.com", "$2a$10$hash", false, now, now))

	creds, err := repo.CredentialsByEmail(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, irisauth.Credentials{UserID: "u-1", PasswordHash: "$2a$10$hash", Active: false}, creds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialsByEmailNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qByEmail).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.CredentialsByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, irisauth.ErrPrincipalNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialsByEmailDatabaseError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(qByEmail).WillReturnError(boom)

	_, err := repo.CredentialsByEmail(context.Background(), "a@example.com")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, irisauth.ErrPrincipalNotFound)
}

func TestSetActive(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(qSetActive).WithArgs("u-1", false).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetActive(context.Background(), "u-1", false))

	mock.ExpectExec(qSetActive).WithArgs("u-2", true).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.SetActive(context.Background(), "u-2", true), irisauth.ErrPrincipalNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
