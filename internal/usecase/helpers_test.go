package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/password"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/ErlanBelekov/quicksand/internal/token"
)

const (
	testSecret    = "usecase-test-secret-at-least-32-chars"
	testEmailHost = "https://quicksand.test"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(token.Config{
		Secret: []byte(testSecret),
		TTL: map[domain.TokenPurpose]time.Duration{
			domain.PurposePasswordReset: time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func newHasher() *password.Hasher {
	return password.NewHasher(password.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

// ---- fakes ----

type fakeUserRepo struct {
	create         func(ctx context.Context, user *domain.User) (*domain.User, error)
	findByID       func(ctx context.Context, id int64) (*domain.User, error)
	findByEmail    func(ctx context.Context, email string) (*domain.User, error)
	findByUsername func(ctx context.Context, username string) (*domain.User, error)
	usernameTaken  func(ctx context.Context, username string, exceptInviteID int64) (bool, error)
	emailTaken     func(ctx context.Context, email string) (bool, error)
	updatePassword func(ctx context.Context, id int64, oldHash, newHash string) (bool, error)
	updateEmail    func(ctx context.Context, id int64, email string) error
	softDelete     func(ctx context.Context, id int64) error
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	return r.create(ctx, user)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findByID(ctx, id)
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findByEmail(ctx, email)
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findByUsername(ctx, username)
}

func (r *fakeUserRepo) UsernameTaken(ctx context.Context, username string, exceptInviteID int64) (bool, error) {
	return r.usernameTaken(ctx, username, exceptInviteID)
}

func (r *fakeUserRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.emailTaken(ctx, email)
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	return r.updatePassword(ctx, id, oldHash, newHash)
}

func (r *fakeUserRepo) UpdateEmail(ctx context.Context, id int64, email string) error {
	return r.updateEmail(ctx, id, email)
}

func (r *fakeUserRepo) SoftDelete(ctx context.Context, id int64) error {
	return r.softDelete(ctx, id)
}

type fakeInviteRepo struct {
	create        func(ctx context.Context, invite *domain.UserInvite) (*domain.UserInvite, error)
	setToken      func(ctx context.Context, id int64, token string) error
	findByToken   func(ctx context.Context, token string) (*domain.UserInvite, error)
	lockByToken   func(ctx context.Context, token string) (*domain.UserInvite, error)
	markRedeemed  func(ctx context.Context, id, userID int64) error
	listUnsent    func(ctx context.Context, limit int) ([]*domain.UserInvite, error)
	markEmailSent func(ctx context.Context, id int64) error
}

func (r *fakeInviteRepo) Create(ctx context.Context, invite *domain.UserInvite) (*domain.UserInvite, error) {
	return r.create(ctx, invite)
}

func (r *fakeInviteRepo) SetToken(ctx context.Context, id int64, token string) error {
	return r.setToken(ctx, id, token)
}

func (r *fakeInviteRepo) FindByToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return r.findByToken(ctx, token)
}

func (r *fakeInviteRepo) LockByToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return r.lockByToken(ctx, token)
}

func (r *fakeInviteRepo) MarkRedeemed(ctx context.Context, id, userID int64) error {
	return r.markRedeemed(ctx, id, userID)
}

func (r *fakeInviteRepo) ListUnsent(ctx context.Context, limit int) ([]*domain.UserInvite, error) {
	return r.listUnsent(ctx, limit)
}

func (r *fakeInviteRepo) MarkEmailSent(ctx context.Context, id int64) error {
	return r.markEmailSent(ctx, id)
}

type fakeStore struct {
	users   *fakeUserRepo
	invites *fakeInviteRepo
}

func (s *fakeStore) Users() repository.UserRepository     { return s.users }
func (s *fakeStore) Invites() repository.InviteRepository { return s.invites }
func (s *fakeStore) Ping(context.Context) error           { return nil }

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, s)
}

type fakeEmailSender struct {
	send func(ctx context.Context, to, subject, body string) error
}

func (s *fakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, body)
}

// recordingSender captures every message and never fails unless err is set.
type recordingSender struct {
	err    error
	to     []string
	bodies []string
}

func (s *recordingSender) Send(_ context.Context, to, _, body string) error {
	if s.err != nil {
		return s.err
	}
	s.to = append(s.to, to)
	s.bodies = append(s.bodies, body)
	return nil
}

func withStamp(u *domain.User) token.Option {
	return token.WithPasswordStamp(password.Stamp(u.PasswordHash))
}
