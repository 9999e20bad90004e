package repository

import (
	"context"

	"boopsite/internal/domain"
)

// UserRepository defines persistence operations for User entities.
//
// Lookups return an error wrapping domain.ErrNotFound when no row matches and
// writes return one wrapping domain.ErrConflict on a uniqueness violation.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByFingerprint(ctx context.Context, hash string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
}
