package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{"user_id", "token_fingerprint", "expires_at", "created_at"}

const (
	qSetLock = `SELECT set_config\('lock_timeout', \$1, true\)`
	qLock    = `SELECT user_id, token_fingerprint, expires_at, created_at FROM refresh_tokens WHERE user_id = \$1 FOR UPDATE`
	qUpdate  = `UPDATE refresh_tokens SET token_fingerprint = \$2, expires_at = \$3, created_at = \$4 WHERE user_id = \$1`
	qUpsert  = `INSERT INTO refresh_tokens \(user_id, token_fingerprint, expires_at, created_at\) VALUES \(\$1, \$2, \$3, \$4\) ON CONFLICT \(user_id\) DO UPDATE`
	qDelete  = `DELETE FROM refresh_tokens WHERE user_id = \$1`
)

func newStoreWithMock(t *testing.T, opts PostgresOptions) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, opts), mock
}

func testRecord(userID, fp string) Record {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return Record{UserID: userID, Fingerprint: fp, ExpiresAt: base.Add(7 * 24 * time.Hour), CreatedAt: base}
}

func TestNewPostgresStoreDefaults(t *testing.T) {
	s := NewPostgresStore(nil, PostgresOptions{})
	require.Equal(t, DefaultOpTimeout, s.opTimeout)
	require.Equal(t, DefaultLockTimeout, s.lockTimeout)

	s = NewPostgresStore(nil, PostgresOptions{OpTimeout: 500 * time.Millisecond})
	require.Equal(t, 500*time.Millisecond, s.lockTimeout, "lock timeout never exceeds op timeout")
}

func TestPostgresUpsert(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})
	rec := testRecord("u-1", "fp-1")

	mock.ExpectExec(qUpsert).
		WithArgs(rec.UserID, rec.Fingerprint, rec.ExpiresAt, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertErrorIsUnavailable(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})

	mock.ExpectExec(qUpsert).WillReturnError(errors.New("connection reset"))

	err := s.Upsert(context.Background(), testRecord("u-1", "fp-1"))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPostgresRotateCommits(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})
	old := testRecord("u-1", "fp-old")
	next := testRecord("u-1", "fp-new")
	next.ExpiresAt = next.ExpiresAt.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(qSetLock).WithArgs("1500ms").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qLock).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(old.UserID, old.Fingerprint, old.ExpiresAt, old.CreatedAt))
	mock.ExpectExec(qUpdate).
		WithArgs("u-1", next.Fingerprint, next.ExpiresAt, next.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen *Record
	got, err := s.Rotate(context.Background(), "u-1", func(current *Record) (Record, error) {
		seen = current
		return Record{Fingerprint: next.Fingerprint, ExpiresAt: next.ExpiresAt, CreatedAt: next.CreatedAt}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	require.Equal(t, "fp-old", seen.Fingerprint)
	require.Equal(t, next, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateCallbackErrorRollsBack(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})
	reject := errors.New("session not found")

	mock.ExpectBegin()
	mock.ExpectExec(qSetLock).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qLock).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(recordColumns))
	mock.ExpectRollback()

	var sawNil bool
	_, err := s.Rotate(context.Background(), "ghost", func(current *Record) (Record, error) {
		sawNil = current == nil
		return Record{}, reject
	})
	require.True(t, sawNil)
	require.ErrorIs(t, err, reject)
	require.NotErrorIs(t, err, ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateInsertsWhenAbsentAndAllowed(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})
	rec := testRecord("u-2", "fp")

	mock.ExpectBegin()
	mock.ExpectExec(qSetLock).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qLock).WithArgs("u-2").WillReturnRows(sqlmock.NewRows(recordColumns))
	mock.ExpectExec(qUpsert).WithArgs("u-2", "fp", rec.ExpiresAt, rec.CreatedAt).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := s.Rotate(context.Background(), "u-2", func(current *Record) (Record, error) {
		return rec, nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateCommitFailureIsUnavailable(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})
	old := testRecord("u-1", "fp-old")

	mock.ExpectBegin()
	mock.ExpectExec(qSetLock).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qLock).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(old.UserID, old.Fingerprint, old.ExpiresAt, old.CreatedAt))
	mock.ExpectExec(qUpdate).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

	_, err := s.Rotate(context.Background(), "u-1", func(current *Record) (Record, error) {
		return testRecord("u-1", "fp-new"), nil
	})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPostgresRotateUpdateFailureRollsBack(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})
	old := testRecord("u-1", "fp-old")

	mock.ExpectBegin()
	mock.ExpectExec(qSetLock).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qLock).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(old.UserID, old.Fingerprint, old.ExpiresAt, old.CreatedAt))
	mock.ExpectExec(qUpdate).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Rotate(context.Background(), "u-1", func(current *Record) (Record, error) {
		return testRecord("u-1", "fp-new"), nil
	})
	require.ErrorIs(t, err, ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateLockWaitTimesOut(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{OpTimeout: 50 * time.Millisecond})

	mock.ExpectBegin()
	mock.ExpectExec(qSetLock).WithArgs("50ms").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qLock).WillDelayFor(time.Second).WillReturnRows(sqlmock.NewRows(recordColumns))
	mock.ExpectRollback()

	called := false
	start := time.Now()
	_, err := s.Rotate(context.Background(), "u-1", func(current *Record) (Record, error) {
		called = true
		return Record{}, nil
	})
	require.ErrorIs(t, err, ErrUnavailable)
	require.False(t, called, "callback must not run without the lock")
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestPostgresDeleteIsIdempotent(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})

	mock.ExpectExec(qDelete).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qDelete).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "u-1"))
	require.NoError(t, s.Delete(context.Background(), "u-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteErrorIsUnavailable(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})

	mock.ExpectExec(qDelete).WillReturnError(sql.ErrConnDone)

	err := s.Delete(context.Background(), "u-1")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresGetMissing(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})

	mock.ExpectQuery(`SELECT user_id, token_fingerprint, expires_at, created_at FROM refresh_tokens WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	rec, err := s.Get(context.Background(), "u-1")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestPostgresPing(t *testing.T) {
	s, mock := newStoreWithMock(t, PostgresOptions{})

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.ErrorIs(t, s.Ping(context.Background()), ErrUnavailable)
}
