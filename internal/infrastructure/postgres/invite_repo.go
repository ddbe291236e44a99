package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/jackc/pgx/v5"
)

const inviteColumns = `id, invited_by, created_user_id, name, nickname, email, username,
	token, is_invite_email_sent, created_at`

type InviteRepository struct {
	db dbtx
}

func (r *InviteRepository) Create(ctx context.Context, inv *domain.UserInvite) (*domain.UserInvite, error) {
	query := `
		INSERT INTO user_invites (invited_by, name, nickname, email, username, token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + inviteColumns

	created, err := scanInvite(r.db.QueryRow(ctx, query,
		inv.InvitedBy, inv.Name, inv.Nickname, inv.Email, inv.Username, inv.Token,
	))
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return nil, mapped
		}
		return nil, err
	}
	return created, nil
}

func (r *InviteRepository) SetToken(ctx context.Context, id int64, token string) error {
	tag, err := r.db.Exec(ctx, `UPDATE user_invites SET token = $2 WHERE id = $1`, id, token)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("set invite token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInviteNotFound
	}
	return nil
}

func (r *InviteRepository) FindByToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return scanInvite(r.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM user_invites WHERE token = $1`, token))
}

func (r *InviteRepository) LockByToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return scanInvite(r.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM user_invites WHERE token = $1 FOR UPDATE`, token))
}

func (r *InviteRepository) MarkRedeemed(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_invites SET created_user_id = $2
		WHERE id = $1 AND created_user_id IS NULL`, id, userID)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("mark invite redeemed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyRedeemed
	}
	return nil
}

func (r *InviteRepository) ListUnsent(ctx context.Context, limit int) ([]*domain.UserInvite, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+inviteColumns+`
		FROM user_invites
		WHERE is_invite_email_sent = FALSE
		  AND created_user_id IS NULL
		  AND email IS NOT NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsent invites: %w", err)
	}
	defer rows.Close()

	var invites []*domain.UserInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func (r *InviteRepository) MarkEmailSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE user_invites SET is_invite_email_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark invite email sent: %w", err)
	}
	return nil
}

func scanInvite(row rowScanner) (*domain.UserInvite, error) {
	var inv domain.UserInvite
	err := row.Scan(
		&inv.ID, &inv.InvitedBy, &inv.CreatedUserID, &inv.Name, &inv.Nickname,
		&inv.Email, &inv.Username, &inv.Token, &inv.IsInviteEmailSent, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("scan invite: %w", err)
	}
	return &inv, nil
}
