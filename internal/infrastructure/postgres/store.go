package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

type Store struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Users() repository.UserRepository {
	return &UserRepository{db: s.db}
}

func (s *Store) Invites() repository.InviteRepository {
	return &InviteRepository{db: s.db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	// Already inside a transaction: join it.
	if _, ok := s.db.(pgx.Tx); ok {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, &Store{pool: s.pool, db: tx})
}

// mapUniqueViolation turns SQLSTATE 23505 into the matching domain conflict.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return domain.ErrUsernameTaken
	case "users_email_key":
		return domain.ErrEmailTaken
	case "user_invites_created_user_id_key":
		return domain.ErrAlreadyRedeemed
	case "user_invites_username_key", "user_invites_inviter_email_key", "user_invites_inviter_nickname_key":
		return domain.ErrDuplicateInvite
	}
	return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
}

var _ repository.Store = (*Store)(nil)
