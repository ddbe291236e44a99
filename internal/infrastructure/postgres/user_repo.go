package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userSelect = `
	SELECT u.id, u.uuid, u.username, u.email, u.password_hash,
	       u.is_email_verified, u.are_guidelines_accepted, u.state,
	       u.date_joined, u.updated_at,
	       p.id, p.name, p.avatar, p.cover, p.is_of_legal_age
	FROM users u
	LEFT JOIN user_profiles p ON p.user_id = u.id`

type UserRepository struct {
	db dbtx
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.Profile == nil {
		return nil, errors.New("create user: profile is required")
	}
	// Both rows go in with one statement so a bare pool call stays atomic.
	query := `
		WITH u AS (
			INSERT INTO users (
				uuid, username, email, password_hash,
				is_email_verified, are_guidelines_accepted, state
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, date_joined, updated_at
		), p AS (
			INSERT INTO user_profiles (user_id, name, avatar, cover, is_of_legal_age)
			SELECT id, $8, $9, $10, $11 FROM u
			RETURNING id
		)
		SELECT u.id, u.date_joined, u.updated_at, p.id FROM u, p`

	created := *user
	profile := *user.Profile
	created.Profile = &profile

	err := r.db.QueryRow(ctx, query,
		user.UUID, user.Username, user.Email, user.PasswordHash,
		user.IsEmailVerified, user.AreGuidelinesAccepted, user.State,
		profile.Name, profile.Avatar, profile.Cover, profile.IsOfLegalAge,
	).Scan(&created.ID, &created.DateJoined, &created.UpdatedAt, &profile.ID)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	profile.UserID = created.ID
	return &created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.email = $1`, email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.username = $1`, username))
}

func (r *UserRepository) UsernameTaken(ctx context.Context, username string, exceptInviteID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
		    OR EXISTS (
		        SELECT 1 FROM user_invites
		        WHERE username = $1 AND created_user_id IS NULL AND id <> $2
		    )`, username, exceptInviteID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $3, updated_at = NOW()
		WHERE id = $1 AND password_hash = $2`, id, oldHash, newHash)
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET email = $2, is_email_verified = TRUE, updated_at = NOW()
		WHERE id = $1 AND state = 'active'`, id, email)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("update email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET state = 'deleted', updated_at = NOW()
		WHERE id = $1 AND state = 'active'`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u            domain.User
		profileID    *int64
		name         *string
		avatar       *string
		cover        *string
		isOfLegalAge *bool
	)
	err := row.Scan(
		&u.ID, &u.UUID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsEmailVerified, &u.AreGuidelinesAccepted, &u.State,
		&u.DateJoined, &u.UpdatedAt,
		&profileID, &name, &avatar, &cover, &isOfLegalAge,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if profileID != nil {
		u.Profile = &domain.UserProfile{
			ID:           *profileID,
			UserID:       u.ID,
			Name:         deref(name),
			Avatar:       avatar,
			Cover:        cover,
			IsOfLegalAge: isOfLegalAge != nil && *isOfLegalAge,
		}
	}
	return &u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
