package repository

import "context"

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	Invites() InviteRepository

	// WithinTx runs fn with a Store bound to a single transaction. fn must use
	// tx, not the outer Store. Returning an error or panicking rolls back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Ping(ctx context.Context) error
}
