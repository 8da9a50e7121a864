package repository

import (
	"context"

	"afterme/internal/model"
)

// UserRepository resolves vault accounts. It backs the user directory
// used by the sharing subsystem; account creation happens elsewhere.
type UserRepository interface {
	// FindByEmail resolves an email to a user. sql.ErrNoRows when absent.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID returns a user by id. sql.ErrNoRows when absent.
	FindByID(ctx context.Context, id string) (*model.User, error)
}
