package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx used by PGStore.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id                VARCHAR PRIMARY KEY,
	email             VARCHAR UNIQUE,
	first_name        VARCHAR,
	last_name         VARCHAR,
	profile_image_url VARCHAR,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const getUser = `
SELECT id, email, first_name, last_name, profile_image_url, created_at, updated_at
FROM users
WHERE id = $1`

const upsertUser = `
INSERT INTO users (id, email, first_name, last_name, profile_image_url)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	email             = EXCLUDED.email,
	first_name        = EXCLUDED.first_name,
	last_name         = EXCLUDED.last_name,
	profile_image_url = EXCLUDED.profile_image_url,
	updated_at        = now()
RETURNING id, email, first_name, last_name, profile_image_url, created_at, updated_at`

// PGStore is a Postgres-backed UserStore.
type PGStore struct {
	db DBTX
}

// NewPGStore wraps db (usually a *pgxpool.Pool).
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

// Migrate creates the users table if it does not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// GetUser implements UserStore.
func (s *PGStore) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, getUser, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpsertUser implements UserStore.
func (s *PGStore) UpsertUser(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		return nil, errors.New("upsert user: empty id")
	}
	row := s.db.QueryRow(ctx, upsertUser,
		u.ID,
		toText(u.Email),
		toText(u.FirstName),
		toText(u.LastName),
		toText(u.ProfileImageURL),
	)
	out, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                           User
		email, first, last, picture pgtype.Text
		created, updated            pgtype.Timestamptz
	)
	if err := row.Scan(&u.ID, &email, &first, &last, &picture, &created, &updated); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.FirstName = first.String
	u.LastName = last.String
	u.ProfileImageURL = picture.String
	u.CreatedAt = created.Time
	u.UpdatedAt = updated.Time
	return &u, nil
}

// toText maps "" to SQL NULL.
func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
