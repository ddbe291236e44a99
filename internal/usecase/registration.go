package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/ErlanBelekov/quicksand/internal/password"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/google/uuid"
)

const maxTemporaryUsernameAttempts = 20

type RegisterInput struct {
	Token                 string
	Username              string // optional; falls back to the invite's username
	Email                 string
	Password              string
	Name                  string
	IsOfLegalAge          bool
	AreGuidelinesAccepted bool
	AvatarPath            *string
}

type RegistrationUsecase struct {
	store   repository.Store
	invites *InviteUsecase
	hasher  *password.Hasher
	logger  *slog.Logger
}

func NewRegistrationUsecase(store repository.Store, invites *InviteUsecase, hasher *password.Hasher, logger *slog.Logger) *RegistrationUsecase {
	return &RegistrationUsecase{
		store:   store,
		invites: invites,
		hasher:  hasher,
		logger:  logger.With("component", "registration_usecase"),
	}
}

// Register redeems an invite and creates the user and profile. Either every
// row is written or none is.
func (u *RegistrationUsecase) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user, err := u.register(ctx, in)
	metrics.RegistrationsTotal.WithLabelValues(registrationOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (u *RegistrationUsecase) register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	// Token errors win over input errors. The transaction resolves again
	// under a row lock.
	if _, err := u.invites.Resolve(ctx, in.Token); err != nil {
		return nil, err
	}

	emailAddr := domain.NormalizeEmail(in.Email)
	if emailAddr == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	requested := domain.NormalizeUsername(in.Username)
	if requested != "" {
		if err := domain.ValidateUsername(requested); err != nil {
			return nil, err
		}
	}
	if err := domain.ValidateName(in.Name); err != nil {
		return nil, err
	}
	if err := password.Validate(in.Password, requested, emailAddr); err != nil {
		return nil, err
	}
	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *domain.User
	err = u.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		inv, err := u.invites.resolve(ctx, tx, in.Token, true)
		if err != nil {
			return err
		}

		if !in.IsOfLegalAge || !in.AreGuidelinesAccepted {
			return domain.ErrConsentRequired
		}

		username := requested
		if username == "" && inv.Username != nil {
			username = *inv.Username
		}
		if username == "" {
			if username, err = temporaryUsername(ctx, tx.Users(), emailAddr, inv.ID); err != nil {
				return err
			}
		} else {
			taken, err := tx.Users().UsernameTaken(ctx, username, inv.ID)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrUsernameTaken
			}
		}

		taken, err := tx.Users().EmailTaken(ctx, emailAddr)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrEmailTaken
		}

		user, err := tx.Users().Create(ctx, &domain.User{
			UUID:                  uuid.New(),
			Username:              username,
			Email:                 emailAddr,
			PasswordHash:          hash,
			AreGuidelinesAccepted: in.AreGuidelinesAccepted,
			State:                 domain.UserStateActive,
			Profile: &domain.UserProfile{
				Name:         in.Name,
				Avatar:       in.AvatarPath,
				IsOfLegalAge: in.IsOfLegalAge,
			},
		})
		if err != nil {
			return err
		}

		if err := u.invites.MarkRedeemed(ctx, tx, inv, user); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// VerifyRegistrationToken checks that token names an open invite.
func (u *RegistrationUsecase) VerifyRegistrationToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return u.invites.Resolve(ctx, token)
}

// UsernameAvailable returns nil when username can be registered.
func (u *RegistrationUsecase) UsernameAvailable(ctx context.Context, username string) error {
	username = domain.NormalizeUsername(username)
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	taken, err := u.store.Users().UsernameTaken(ctx, username, 0)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrUsernameTaken
	}
	return nil
}

// EmailAvailable returns nil when no account uses email.
func (u *RegistrationUsecase) EmailAvailable(ctx context.Context, emailAddr string) error {
	taken, err := u.store.Users().EmailTaken(ctx, domain.NormalizeEmail(emailAddr))
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrEmailTaken
	}
	return nil
}

// temporaryUsername derives a free username from the email's local part,
// appending a random number until nothing claims it.
func temporaryUsername(ctx context.Context, users repository.UserRepository, emailAddr string, inviteID int64) (string, error) {
	base := sanitiseUsername(strings.SplitN(emailAddr, "@", 2)[0])
	candidate := base
	for range maxTemporaryUsernameAttempts {
		taken, err := users.UsernameTaken(ctx, candidate, inviteID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(rand.IntN(9999))
	}
	return "", fmt.Errorf("%w: could not derive a free username", domain.ErrUsernameTaken)
}

func sanitiseUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '+', r == '-', r == '.':
			b.WriteByte('_')
		}
	}
	out := b.String()
	// Leave room for the random suffix.
	if len(out) > domain.UsernameMaxLength-4 {
		out = out[:domain.UsernameMaxLength-4]
	}
	if out == "" {
		out = "user"
	}
	return out
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrNotFound):
		return "invalid_token"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}
