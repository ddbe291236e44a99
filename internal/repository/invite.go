package repository

import (
	"context"

	"github.com/ErlanBelekov/quicksand/internal/domain"
)

type InviteRepository interface {
	// Create inserts the invite with whatever token it carries (a placeholder
	// until SetToken runs). Unique violations map to domain.ErrDuplicateInvite.
	Create(ctx context.Context, invite *domain.UserInvite) (*domain.UserInvite, error)
	SetToken(ctx context.Context, id int64, token string) error
	FindByToken(ctx context.Context, token string) (*domain.UserInvite, error)

	// LockByToken is FindByToken that also holds the row until the surrounding
	// transaction ends, so concurrent redemptions queue behind each other.
	LockByToken(ctx context.Context, token string) (*domain.UserInvite, error)

	// MarkRedeemed sets created_user_id only while it is still NULL.
	// Returns domain.ErrAlreadyRedeemed when no row matched.
	MarkRedeemed(ctx context.Context, id, userID int64) error

	// ListUnsent returns invites whose email was never delivered, oldest first.
	ListUnsent(ctx context.Context, limit int) ([]*domain.UserInvite, error)
	MarkEmailSent(ctx context.Context, id int64) error
}
