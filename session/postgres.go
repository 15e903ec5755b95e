package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AvanindraBose/irisauth/internal/dbx"
)

const (
	// DefaultOpTimeout bounds each store call, including time spent waiting for
	// the row lock.
	DefaultOpTimeout = 2 * time.Second
	// DefaultLockTimeout bounds how long Rotate waits for a competing rotation.
	DefaultLockTimeout = 1500 * time.Millisecond
)

const (
	upsertQuery = `
		INSERT INTO refresh_tokens (user_id, token_fingerprint, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token_fingerprint = EXCLUDED.token_fingerprint,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`
	lockQuery = `
		SELECT user_id, token_fingerprint, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1
		FOR UPDATE
	`
	updateQuery = `
		UPDATE refresh_tokens
		SET token_fingerprint = $2, expires_at = $3, created_at = $4
		WHERE user_id = $1
	`
	getQuery = `
		SELECT user_id, token_fingerprint, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1
	`
	deleteQuery = `DELETE FROM refresh_tokens WHERE user_id = $1`
)

// PostgresOptions tunes a PostgresStore. Zero values select the defaults.
type PostgresOptions struct {
	OpTimeout   time.Duration
	LockTimeout time.Duration
}

// PostgresStore implements Store on a refresh_tokens table.
type PostgresStore struct {
	db          *sql.DB
	opTimeout   time.Duration
	lockTimeout time.Duration
}

// NewPostgresStore wraps db, normally opened with the pgx stdlib driver.
func NewPostgresStore(db *sql.DB, opts PostgresOptions) *PostgresStore {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.LockTimeout <= 0 || opts.LockTimeout > opts.OpTimeout {
		opts.LockTimeout = opts.OpTimeout
		if opts.OpTimeout > DefaultLockTimeout {
			opts.LockTimeout = DefaultLockTimeout
		}
	}
	return &PostgresStore{db: db, opTimeout: opts.OpTimeout, lockTimeout: opts.LockTimeout}
}

// Upsert writes rec, replacing the user's previous record if one exists.
func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, upsertQuery,
		rec.UserID, rec.Fingerprint, rec.ExpiresAt.UTC(), rec.CreatedAt.UTC()); err != nil {
		return unavailable(err)
	}
	return nil
}

// Rotate runs fn against the row-locked record inside one transaction.
//
// A competing rotation for the same user blocks on the lock until the first
// commits, then sees the committed record. If the lock is not granted within
// the lock timeout, or ctx ends first, the transaction is aborted and the error
// wraps ErrUnavailable.
func (s *PostgresStore) Rotate(ctx context.Context, userID string, fn RotateFunc) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		next  Record
		fnErr error
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := dbx.SetLockTimeout(ctx, tx, s.lockTimeout); err != nil {
			return unavailable(err)
		}

		current, err := s.LockForUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		n, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}
		n.UserID = userID

		query := updateQuery
		if current == nil {
			query = upsertQuery
		}
		if _, err := tx.ExecContext(ctx, query,
			n.UserID, n.Fingerprint, n.ExpiresAt.UTC(), n.CreatedAt.UTC()); err != nil {
			return unavailable(err)
		}

		next = n
		return nil
	})
	if fnErr != nil {
		return Record{}, fnErr
	}
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Record{}, err
		}
		return Record{}, unavailable(err)
	}

	return next, nil
}

// LockForUser selects the user's record with FOR UPDATE on tx. It returns nil
// without error when the user has no record.
func (s *PostgresStore) LockForUser(ctx context.Context, tx dbx.DBTX, userID string) (*Record, error) {
	return scanRecord(tx.QueryRowContext(ctx, lockQuery, userID))
}

// Get reads the user's record without locking it.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return scanRecord(s.db.QueryRowContext(ctx, getQuery, userID))
}

// Delete removes the user's record. It succeeds when no row exists.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, deleteQuery, userID); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.UserID, &rec.Fingerprint, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &rec, nil
}
