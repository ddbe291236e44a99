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
	"github.com/ErlanBelekov/quicksand/internal/password"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/ErlanBelekov/quicksand/internal/token"
)

type AuthUsecase struct {
	store     repository.Store
	codec     *token.Codec
	hasher    *password.Hasher
	email     email.Sender
	emailHost string
	logger    *slog.Logger
}

func NewAuthUsecase(store repository.Store, codec *token.Codec, hasher *password.Hasher, emailSender email.Sender, emailHost string, logger *slog.Logger) *AuthUsecase {
	return &AuthUsecase{
		store:     store,
		codec:     codec,
		hasher:    hasher,
		email:     emailSender,
		emailHost: emailHost,
		logger:    logger.With("component", "auth_usecase"),
	}
}

// Login exchanges credentials for an access token. Unknown, deleted and
// wrong-password attempts fail identically and cost one hash each.
func (u *AuthUsecase) Login(ctx context.Context, username, pw string) (string, error) {
	user, err := u.store.Users().FindByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("find user: %w", err)
	}

	var encoded string
	if user != nil {
		encoded = user.PasswordHash
	}
	ok := u.hasher.VerifyOrDummy(pw, encoded)
	if !ok || user == nil || !user.IsActive() {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return "", domain.ErrInvalidCredentials
	}

	signed, err := u.codec.Issue(user.ID, domain.PurposeAccess)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("issue access token: %w", err)
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return signed, nil
}

// Authenticate verifies an access token and returns its user id. Tokens of
// deleted or unknown users are rejected with domain.ErrUserNotFound.
func (u *AuthUsecase) Authenticate(ctx context.Context, accessToken string) (int64, error) {
	claims, err := u.codec.Verify(accessToken, domain.PurposeAccess)
	if err != nil {
		return 0, err
	}
	user, err := u.store.Users().FindByID(ctx, claims.SubjectID())
	if err != nil {
		return 0, err
	}
	if !user.IsActive() {
		return 0, domain.ErrUserNotFound
	}
	return user.ID, nil
}

// RequestPasswordReset issues a reset token bound to the current password
// hash and mails the link. A mail failure is logged; the token is still returned.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	user, err := u.store.Users().FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("request", outcome(err)).Inc()
		return "", err
	}
	if !user.IsActive() {
		metrics.PasswordResetsTotal.WithLabelValues("request", "not_found").Inc()
		return "", domain.ErrUserNotFound
	}

	raw, err := u.codec.Issue(user.ID, domain.PurposePasswordReset, token.WithPasswordStamp(password.Stamp(user.PasswordHash)))
	if err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("request", "error").Inc()
		return "", fmt.Errorf("issue reset token: %w", err)
	}

	link := u.emailHost + "/api/auth/password/verify?token=" + url.QueryEscape(raw)
	msg, err := email.PasswordResetMessage(user.Email, user.Username, link)
	if err == nil {
		err = email.Deliver(ctx, u.email, msg)
	}
	if err != nil {
		u.logger.ErrorContext(ctx, "send password reset email", "user_id", user.ID, "error", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("request", "success").Inc()
	return raw, nil
}

// RedeemPasswordReset sets a new password if the token is valid and the
// password has not changed since the token was issued.
func (u *AuthUsecase) RedeemPasswordReset(ctx context.Context, raw, newPassword string) error {
	err := u.redeemPasswordReset(ctx, raw, newPassword)
	metrics.PasswordResetsTotal.WithLabelValues("redeem", outcome(err)).Inc()
	return err
}

func (u *AuthUsecase) redeemPasswordReset(ctx context.Context, raw, newPassword string) error {
	claims, err := u.codec.Verify(raw, domain.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	user, err := u.store.Users().FindByID(ctx, claims.SubjectID())
	if errors.Is(err, domain.ErrUserNotFound) || (err == nil && !user.IsActive()) {
		return domain.ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if password.Stamp(user.PasswordHash) != claims.PasswordStamp {
		return domain.ErrResetTokenUsed
	}

	if err := password.Validate(newPassword, user.Username, user.Email); err != nil {
		return err
	}
	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return u.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		swapped, err := tx.Users().UpdatePassword(ctx, user.ID, user.PasswordHash, hash)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.ErrResetTokenUsed
		}
		return nil
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, domain.ErrValidation):
		return "rejected"
	default:
		return "error"
	}
}
