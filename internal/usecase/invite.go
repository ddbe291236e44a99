package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/email"
	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/ErlanBelekov/quicksand/internal/token"
	"github.com/google/uuid"
)

type CreateInviteInput struct {
	Email     string
	Name      string
	Username  string
	Nickname  string
	InvitedBy *int64 // nil for invites created by an operator
}

type InviteUsecase struct {
	store     repository.Store
	codec     *token.Codec
	sender    email.Sender
	emailHost string
	logger    *slog.Logger
}

func NewInviteUsecase(store repository.Store, codec *token.Codec, sender email.Sender, emailHost string, logger *slog.Logger) *InviteUsecase {
	return &InviteUsecase{
		store:     store,
		codec:     codec,
		sender:    sender,
		emailHost: emailHost,
		logger:    logger.With("component", "invite_usecase"),
	}
}

// CreateInvite stores the invite and its token in one transaction. The token
// encodes the invite id, so the row is inserted first with a placeholder.
func (u *InviteUsecase) CreateInvite(ctx context.Context, in CreateInviteInput) (*domain.UserInvite, error) {
	inv := &domain.UserInvite{InvitedBy: in.InvitedBy}

	if in.Email != "" {
		inv.Email = ptr(domain.NormalizeEmail(in.Email))
	}
	if in.Name != "" {
		if err := domain.ValidateName(in.Name); err != nil {
			return nil, err
		}
		inv.Name = ptr(in.Name)
	}
	if in.Nickname != "" {
		if err := domain.ValidateName(in.Nickname); err != nil {
			return nil, err
		}
		inv.Nickname = ptr(in.Nickname)
	}
	if in.Username != "" {
		username := domain.NormalizeUsername(in.Username)
		if err := domain.ValidateUsername(username); err != nil {
			return nil, err
		}
		inv.Username = ptr(username)
	}

	var created *domain.UserInvite
	err := u.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if inv.InvitedBy != nil {
			inviter, err := tx.Users().FindByID(ctx, *inv.InvitedBy)
			if err != nil {
				return err
			}
			if !inviter.IsActive() {
				return domain.ErrUserNotFound
			}
		}
		if inv.Username != nil {
			taken, err := tx.Users().UsernameTaken(ctx, *inv.Username, 0)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrUsernameTaken
			}
		}

		inv.Token = "pending-" + uuid.NewString()
		c, err := tx.Invites().Create(ctx, inv)
		if err != nil {
			return err
		}

		raw, err := u.codec.Issue(c.ID, domain.PurposeInvite)
		if err != nil {
			return fmt.Errorf("issue invite token: %w", err)
		}
		if err := tx.Invites().SetToken(ctx, c.ID, raw); err != nil {
			return err
		}
		c.Token = raw
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InvitesCreatedTotal.Inc()
	u.logger.InfoContext(ctx, "invite created", "invite_id", created.ID)
	return created, nil
}

// Resolve returns the unredeemed invite for raw. Every failure is terminal.
func (u *InviteUsecase) Resolve(ctx context.Context, raw string) (*domain.UserInvite, error) {
	return u.resolve(ctx, u.store, raw, false)
}

// resolve verifies raw and loads its invite from repos. With lock set the row
// stays locked until the transaction behind repos ends.
func (u *InviteUsecase) resolve(ctx context.Context, repos repository.Store, raw string, lock bool) (*domain.UserInvite, error) {
	claims, err := u.codec.Verify(raw, domain.PurposeInvite)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	find := repos.Invites().FindByToken
	if lock {
		find = repos.Invites().LockByToken
	}
	inv, err := find(ctx, raw)
	if err != nil {
		return nil, err
	}
	if inv.ID != claims.SubjectID() {
		return nil, domain.ErrInvalidToken
	}
	if inv.IsRedeemed() {
		return nil, domain.ErrAlreadyRedeemed
	}
	return inv, nil
}

// MarkRedeemed links the invite to user. tx must be the registration
// transaction so a lost race rolls the new user back too.
func (u *InviteUsecase) MarkRedeemed(ctx context.Context, tx repository.Store, inv *domain.UserInvite, user *domain.User) error {
	if err := tx.Invites().MarkRedeemed(ctx, inv.ID, user.ID); err != nil {
		return err
	}
	inv.CreatedUserID = &user.ID
	return nil
}

// SendInviteEmail mails the invite link and flags the invite as sent.
// A failure leaves the invite in place for the mailer to retry.
func (u *InviteUsecase) SendInviteEmail(ctx context.Context, inv *domain.UserInvite) error {
	if inv.Email == nil || *inv.Email == "" {
		return fmt.Errorf("%w: invite has no email address", domain.ErrValidation)
	}

	var inviterName string
	if inv.InvitedBy != nil {
		inviter, err := u.store.Users().FindByID(ctx, *inv.InvitedBy)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("load inviter: %w", err)
		}
		if inviter != nil {
			inviterName = inviter.Username
			if inviter.Profile != nil && inviter.Profile.Name != "" {
				inviterName = inviter.Profile.Name
			}
		}
	}

	link := u.emailHost + "/api/auth/invite?token=" + url.QueryEscape(inv.Token)
	msg, err := email.InviteMessage(*inv.Email, deref(inv.Name), inviterName, link)
	if err != nil {
		return fmt.Errorf("render invite email: %w", err)
	}
	if err := email.Deliver(ctx, u.sender, msg); err != nil {
		u.logger.ErrorContext(ctx, "send invite email", "invite_id", inv.ID, "error", err)
		return err
	}

	if err := u.store.Invites().MarkEmailSent(ctx, inv.ID); err != nil {
		return err
	}
	inv.IsInviteEmailSent = true
	return nil
}

// DispatchPendingInvites sends up to limit unsent invites and returns how
// many went out. Expired tokens are renewed first. Individual failures are
// logged and skipped.
func (u *InviteUsecase) DispatchPendingInvites(ctx context.Context, limit int) (int, error) {
	pending, err := u.store.Invites().ListUnsent(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsent invites: %w", err)
	}

	sent := 0
	for _, inv := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := u.renewExpiredToken(ctx, inv); err != nil {
			u.logger.ErrorContext(ctx, "renew invite token", "invite_id", inv.ID, "error", err)
			continue
		}
		if err := u.SendInviteEmail(ctx, inv); err != nil {
			continue
		}
		sent++
	}
	return sent, nil
}

// renewExpiredToken replaces an invite token that expired before its email
// went out, so the mailed link still works.
func (u *InviteUsecase) renewExpiredToken(ctx context.Context, inv *domain.UserInvite) error {
	_, err := u.codec.Verify(inv.Token, domain.PurposeInvite)
	if err == nil || !token.Retryable(err) {
		return nil
	}

	raw, err := u.codec.Issue(inv.ID, domain.PurposeInvite)
	if err != nil {
		return fmt.Errorf("issue invite token: %w", err)
	}
	if err := u.store.Invites().SetToken(ctx, inv.ID, raw); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "invite token renewed", "invite_id", inv.ID)
	inv.Token = raw
	return nil
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
