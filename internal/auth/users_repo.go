package auth

import (
	"context"
	"database/sql"
	"errors"

	"faceattend/internal/domain"
	"faceattend/internal/store"
)

// UserStore is the persistence surface the service needs for accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

// UserRepository persists users in Postgres.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a repo.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A duplicate email surfaces as a validation
// error, driven by the unique constraint rather than a lookup race.
func (r *UserRepository) Create(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.FullName, u.PasswordHash, u.Role, u.CreatedAt)
	if store.IsUniqueViolation(err) {
		return domain.E(domain.KindValidation, "email already registered")
	}
	if err != nil {
		return domain.Wrap(domain.KindInternal, "create user", err)
	}
	return nil
}

// GetByEmail returns the user for an email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, role, created_at
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

// GetByID returns the user for an internal id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, role, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, domain.E(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return User{}, domain.Wrap(domain.KindInternal, "load user", err)
	}
	return u, nil
}
