package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/email"
	"github.com/ErlanBelekov/quicksand/internal/password"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/ErlanBelekov/quicksand/internal/token"
)

// AccountUsecase serves the authenticated user's own account.
type AccountUsecase struct {
	store     repository.Store
	codec     *token.Codec
	hasher    *password.Hasher
	email     email.Sender
	emailHost string
	logger    *slog.Logger
}

func NewAccountUsecase(store repository.Store, codec *token.Codec, hasher *password.Hasher, emailSender email.Sender, emailHost string, logger *slog.Logger) *AccountUsecase {
	return &AccountUsecase{
		store:     store,
		codec:     codec,
		hasher:    hasher,
		email:     emailSender,
		emailHost: emailHost,
		logger:    logger.With("component", "account_usecase"),
	}
}

func (u *AccountUsecase) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := u.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (u *AccountUsecase) ChangePassword(ctx context.Context, id int64, current, newPassword string) error {
	user, err := u.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := u.hasher.VerifyCredentials(user, current); err != nil {
		return err
	}
	if err := password.Validate(newPassword, user.Username, user.Email); err != nil {
		return err
	}
	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	swapped, err := u.store.Users().UpdatePassword(ctx, user.ID, user.PasswordHash, hash)
	if err != nil {
		return err
	}
	if !swapped {
		// Changed concurrently; the current password we checked is stale.
		return domain.ErrWrongPassword
	}
	u.logger.InfoContext(ctx, "password changed")
	return nil
}

// RequestEmailChange mails a confirmation link to newEmail and returns the
// token it carries. The address only changes once VerifyEmailChange runs.
func (u *AccountUsecase) RequestEmailChange(ctx context.Context, id int64, currentPassword, newEmail string) (string, error) {
	user, err := u.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if err := u.hasher.VerifyCredentials(user, currentPassword); err != nil {
		return "", err
	}

	newEmail = domain.NormalizeEmail(newEmail)
	if newEmail == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if newEmail == user.Email {
		return "", fmt.Errorf("%w: email is unchanged", domain.ErrValidation)
	}
	taken, err := u.store.Users().EmailTaken(ctx, newEmail)
	if err != nil {
		return "", err
	}
	if taken {
		return "", domain.ErrEmailTaken
	}

	raw, err := u.codec.Issue(user.ID, domain.PurposeEmailChange, token.WithEmail(newEmail))
	if err != nil {
		return "", fmt.Errorf("issue email change token: %w", err)
	}

	link := u.emailHost + "/api/auth/email/verify?token=" + url.QueryEscape(raw)
	msg, err := email.EmailChangeMessage(newEmail, user.Username, link)
	if err != nil {
		return "", fmt.Errorf("render email change email: %w", err)
	}
	if err := email.Deliver(ctx, u.email, msg); err != nil {
		u.logger.ErrorContext(ctx, "send email change email", "error", err)
		return "", err
	}
	return raw, nil
}

// VerifyEmailChange applies the address carried by a CE token.
func (u *AccountUsecase) VerifyEmailChange(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := u.codec.Verify(raw, domain.PurposeEmailChange)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return nil, domain.ErrTokenMalformed
	}

	var updated *domain.User
	err = u.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		user, err := tx.Users().FindByID(ctx, claims.SubjectID())
		if err != nil {
			return err
		}
		if !user.IsActive() {
			return domain.ErrUserNotFound
		}
		if user.Email == claims.Email {
			updated = user
			return nil
		}

		taken, err := tx.Users().EmailTaken(ctx, claims.Email)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrEmailTaken
		}
		if err := tx.Users().UpdateEmail(ctx, user.ID, claims.Email); err != nil {
			return err
		}
		user.Email = claims.Email
		user.IsEmailVerified = true
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAccount soft-deletes the user after checking the password.
func (u *AccountUsecase) DeleteAccount(ctx context.Context, id int64, pw string) error {
	user, err := u.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := u.hasher.VerifyCredentials(user, pw); err != nil {
		return err
	}
	if err := u.store.Users().SoftDelete(ctx, user.ID); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "account deleted")
	return nil
}
