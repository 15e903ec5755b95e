package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AvanindraBose/irisauth"
	"github.com/AvanindraBose/irisauth/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const (
	createQuery = `
		INSERT INTO users (username, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	byEmailQuery = `
		SELECT id, username, email, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	setActiveQuery = `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`
)

// PostgresRepository implements irisauth.CredentialSource on the users table.
type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

// NewPostgresRepository wraps db. A timeout of zero leaves calls bounded only
// by the caller's context.
func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create inserts u and fills in its generated fields. Email is stored
// lowercased.
func (r *PostgresRepository) Create(ctx context.Context, u *User) (*User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	u.Email = normalizeEmail(u.Email)
	err := r.db.QueryRowContext(ctx, createQuery, u.Username, u.Email, u.PasswordHash, u.Active).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

// GetByEmail returns the user with the given email or
// irisauth.ErrPrincipalNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	u := &User{}
	err := r.db.QueryRowContext(ctx, byEmailQuery, normalizeEmail(email)).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, irisauth.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return u, nil
}

// CredentialsByEmail implements irisauth.CredentialSource.
func (r *PostgresRepository) CredentialsByEmail(ctx context.Context, email string) (irisauth.Credentials, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return irisauth.Credentials{}, err
	}
	return irisauth.Credentials{
		UserID:       u.ID,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
	}, nil
}

// SetActive enables or disables login for a user. Disabling does not end
// an existing session.
func (r *PostgresRepository) SetActive(ctx context.Context, userID string, active bool) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, setActiveQuery, userID, active)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return irisauth.ErrPrincipalNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ irisauth.CredentialSource = (*PostgresRepository)(nil)
