package auth

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schemaSQL string

// SessionRepository keeps the login audit trail.
type SessionRepository interface {
	CreateSession(ctx context.Context, rec LoginRecord) error
	DeleteSession(ctx context.Context, id string) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements UserFinder and SessionRepository on PostgreSQL.
type PGRepository struct {
	db DBTX
}

// NewRepository constructs a PostgreSQL repository over a pool or transaction.
func NewRepository(db DBTX) *PGRepository {
	return &PGRepository{db: db}
}

// EnsureSchema creates the auth tables when missing.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaSQL)
	return err
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT id, email, full_name, role, password_hash, is_active, created_at, updated_at
FROM users WHERE lower(email) = lower($1)`
	var u User
	err := r.db.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertUser inserts or updates an account keyed by email.
func (r *PGRepository) UpsertUser(ctx context.Context, u User) error {
	const query = `INSERT INTO users (id, email, full_name, role, password_hash, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, role = EXCLUDED.role,
    password_hash = EXCLUDED.password_hash, is_active = EXCLUDED.is_active, updated_at = now()`
	_, err := r.db.Exec(ctx, query, u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.FullName, u.Role, u.PasswordHash, u.IsActive)
	return err
}

// CreateSession records a login for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, rec LoginRecord) error {
	const query = `INSERT INTO auth_sessions (id, principal_id, role, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET principal_id = EXCLUDED.principal_id, role = EXCLUDED.role, expires_at = EXCLUDED.expires_at`
	_, err := r.db.Exec(ctx, query,
		rec.SessionID,
		rec.PrincipalID,
		rec.Role,
		pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
		pgtype.Timestamptz{Time: rec.ExpiresAt.UTC(), Valid: true},
		pgtype.Text{String: rec.IP, Valid: rec.IP != ""},
		pgtype.Text{String: rec.UserAgent, Valid: rec.UserAgent != ""},
	)
	return err
}

// DeleteSession removes a login record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	return err
}

// PruneExpiredSessions deletes records that expired before cutoff.
func (r *PGRepository) PruneExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var (
	_ UserFinder        = (*PGRepository)(nil)
	_ SessionRepository = (*PGRepository)(nil)
)
