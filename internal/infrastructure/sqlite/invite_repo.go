package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/domain"
)

const inviteColumns = `id, invited_by, created_user_id, name, nickname, email, username,
	token, is_invite_email_sent, created_at`

type InviteRepository struct {
	q dbtx
}

func (r *InviteRepository) Create(ctx context.Context, inv *domain.UserInvite) (*domain.UserInvite, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO user_invites (invited_by, name, nickname, email, username, token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.InvitedBy, inv.Name, inv.Nickname, inv.Email, inv.Username, inv.Token, toMillis(time.Now()),
	)
	if err != nil {
		return nil, mapInsertError("insert invite", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("invite id: %w", err)
	}
	return scanInvite(r.q.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM user_invites WHERE id = ?`, id))
}

func (r *InviteRepository) SetToken(ctx context.Context, id int64, token string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE user_invites SET token = ? WHERE id = ?`, token, id)
	if err != nil {
		return mapInsertError("set invite token", err)
	}
	return requireRow(res, domain.ErrInviteNotFound)
}

func (r *InviteRepository) FindByToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return scanInvite(r.q.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM user_invites WHERE token = ?`, token))
}

// LockByToken needs no row lock: the store holds a single connection, so a
// transaction already excludes every other writer.
func (r *InviteRepository) LockByToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return r.FindByToken(ctx, token)
}

func (r *InviteRepository) MarkRedeemed(ctx context.Context, id, userID int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE user_invites SET created_user_id = ?
		WHERE id = ? AND created_user_id IS NULL`, userID, id)
	if err != nil {
		return mapInsertError("mark invite redeemed", err)
	}
	return requireRow(res, domain.ErrAlreadyRedeemed)
}

func (r *InviteRepository) ListUnsent(ctx context.Context, limit int) ([]*domain.UserInvite, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+inviteColumns+`
		FROM user_invites
		WHERE is_invite_email_sent = 0
		  AND created_user_id IS NULL
		  AND email IS NOT NULL
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, limit)
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
	_, err := r.q.ExecContext(ctx, `UPDATE user_invites SET is_invite_email_sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark invite email sent: %w", err)
	}
	return nil
}

func scanInvite(row rowScanner) (*domain.UserInvite, error) {
	var (
		inv       domain.UserInvite
		createdAt int64
	)
	err := row.Scan(
		&inv.ID, &inv.InvitedBy, &inv.CreatedUserID, &inv.Name, &inv.Nickname,
		&inv.Email, &inv.Username, &inv.Token, &inv.IsInviteEmailSent, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("scan invite: %w", err)
	}
	inv.CreatedAt = fromMillis(createdAt)
	return &inv, nil
}
