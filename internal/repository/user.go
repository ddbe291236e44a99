package repository

import (
	"context"

	"github.com/ErlanBelekov/quicksand/internal/domain"
)

// UseCase depends on interface, not concrete implementation.
// This way we can swap Postgres for SQLite and pass fakes in tests.
type UserRepository interface {
	// Create inserts the user and its profile. user.Profile must be set.
	// Unique violations map to domain.ErrUsernameTaken / domain.ErrEmailTaken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	// Lookups return deleted users too; callers decide what a deleted user means.
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// UsernameTaken checks users and unredeemed invites. exceptInviteID skips
	// one invite (the one being redeemed); 0 skips none.
	UsernameTaken(ctx context.Context, username string, exceptInviteID int64) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)

	// UpdatePassword swaps the hash only while it still equals oldHash.
	// Returns false when another write got there first.
	UpdatePassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	SoftDelete(ctx context.Context, id int64) error
}
