package postgres

import (
	"context"
	"database/sql"

	"afterme/internal/model"
	"afterme/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

const userColumns = `id, name, email, created_at`

// FindByEmail resolves an email to a user.
func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	var u model.User
	if err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByID returns a user by id.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var u model.User
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
