package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/repository"
)

const userSelect = `
	SELECT u.id, u.uuid, u.username, u.email, u.password_hash,
	       u.is_email_verified, u.are_guidelines_accepted, u.state,
	       u.date_joined, u.updated_at,
	       p.id, p.name, p.avatar, p.cover, p.is_of_legal_age
	FROM users u
	LEFT JOIN user_profiles p ON p.user_id = u.id`

type UserRepository struct {
	store *Store
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.Profile == nil {
		return nil, errors.New("create user: profile is required")
	}

	created := *user
	profile := *user.Profile
	created.Profile = &profile
	now := time.Now().UTC().Truncate(time.Millisecond)
	created.DateJoined, created.UpdatedAt = now, now

	err := r.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		q := tx.(*Store).q
		res, err := q.ExecContext(ctx, `
			INSERT INTO users (
				uuid, username, email, password_hash, is_email_verified,
				are_guidelines_accepted, state, date_joined, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.UUID.String(), user.Username, user.Email, user.PasswordHash, user.IsEmailVerified,
			user.AreGuidelinesAccepted, string(user.State), toMillis(now), toMillis(now),
		)
		if err != nil {
			return mapInsertError("insert user", err)
		}
		if created.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("user id: %w", err)
		}

		res, err = q.ExecContext(ctx, `
			INSERT INTO user_profiles (user_id, name, avatar, cover, is_of_legal_age)
			VALUES (?, ?, ?, ?, ?)`,
			created.ID, profile.Name, profile.Avatar, profile.Cover, profile.IsOfLegalAge,
		)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if profile.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("profile id: %w", err)
		}
		profile.UserID = created.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.store.q.QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.store.q.QueryRowContext(ctx, userSelect+` WHERE u.email = ?`, email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.store.q.QueryRowContext(ctx, userSelect+` WHERE u.username = ?`, username))
}

func (r *UserRepository) UsernameTaken(ctx context.Context, username string, exceptInviteID int64) (bool, error) {
	var taken bool
	err := r.store.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = ?1)
		    OR EXISTS (
		        SELECT 1 FROM user_invites
		        WHERE username = ?1 AND created_user_id IS NULL AND id <> ?2
		    )`, username, exceptInviteID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.store.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	res, err := r.store.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ?
		WHERE id = ? AND password_hash = ?`,
		newHash, toMillis(time.Now()), id, oldHash)
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}
	return n == 1, nil
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	res, err := r.store.q.ExecContext(ctx, `
		UPDATE users SET email = ?, is_email_verified = 1, updated_at = ?
		WHERE id = ? AND state = 'active'`,
		email, toMillis(time.Now()), id)
	if err != nil {
		return mapInsertError("update email", err)
	}
	return requireRow(res, domain.ErrUserNotFound)
}

func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.store.q.ExecContext(ctx, `
		UPDATE users SET state = 'deleted', updated_at = ?
		WHERE id = ? AND state = 'active'`,
		toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, domain.ErrUserNotFound)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u            domain.User
		state        string
		dateJoined   int64
		updatedAt    int64
		profileID    sql.NullInt64
		name         sql.NullString
		avatar       *string
		cover        *string
		isOfLegalAge sql.NullBool
	)
	err := row.Scan(
		&u.ID, &u.UUID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsEmailVerified, &u.AreGuidelinesAccepted, &state,
		&dateJoined, &updatedAt,
		&profileID, &name, &avatar, &cover, &isOfLegalAge,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.State = domain.UserState(state)
	u.DateJoined = fromMillis(dateJoined)
	u.UpdatedAt = fromMillis(updatedAt)
	if profileID.Valid {
		u.Profile = &domain.UserProfile{
			ID:           profileID.Int64,
			UserID:       u.ID,
			Name:         name.String,
			Avatar:       avatar,
			Cover:        cover,
			IsOfLegalAge: isOfLegalAge.Bool,
		}
	}
	return &u, nil
}

func mapInsertError(op string, err error) error {
	if mapped := mapUniqueViolation(err); mapped != err {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
