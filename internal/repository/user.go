package repository

import (
	"context"
	"errors"

	"fireblob/internal/domain"
)

var (
	// ErrUserNotFound is returned when a username or id matches no account.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when creating an account with a username
	// that already exists.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
