package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/infrastructure/sqlite"
	"github.com/ErlanBelekov/quicksand/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	s, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func newUser(username, email string) *domain.User {
	return &domain.User{
		UUID:                  uuid.New(),
		Username:              username,
		Email:                 email,
		PasswordHash:          "hash-" + username,
		AreGuidelinesAccepted: true,
		State:                 domain.UserStateActive,
		Profile:               &domain.UserProfile{Name: "Name " + username, IsOfLegalAge: true},
	}
}

func TestUsers_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	users := newStore(t).Users()

	in := newUser("alice", "alice@example.com")
	in.Profile.Avatar = ptr("avatars/a.png")
	created, err := users.Create(ctx, in)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.NotNil(t, created.Profile)
	assert.Equal(t, created.ID, created.Profile.UserID)

	byID, err := users.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in.UUID, byID.UUID)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, domain.UserStateActive, byID.State)
	assert.True(t, byID.AreGuidelinesAccepted)
	require.NotNil(t, byID.Profile)
	assert.Equal(t, "Name alice", byID.Profile.Name)
	assert.Equal(t, "avatars/a.png", *byID.Profile.Avatar)
	assert.Nil(t, byID.Profile.Cover)
	assert.True(t, byID.Profile.IsOfLegalAge)

	byEmail, err := users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byName, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = users.FindByID(ctx, created.ID+100)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUsers_Create_UniqueViolations(t *testing.T) {
	ctx := context.Background()
	users := newStore(t).Users()

	_, err := users.Create(ctx, newUser("bob", "bob@example.com"))
	require.NoError(t, err)

	_, err = users.Create(ctx, newUser("bob", "other@example.com"))
	require.ErrorIs(t, err, domain.ErrUsernameTaken)

	_, err = users.Create(ctx, newUser("bobby", "bob@example.com"))
	require.ErrorIs(t, err, domain.ErrEmailTaken)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestUsers_UsernameTaken_CountsUnredeemedInvites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	inv, err := s.Invites().Create(ctx, &domain.UserInvite{Username: ptr("carol"), Token: "t1"})
	require.NoError(t, err)

	taken, err := s.Users().UsernameTaken(ctx, "carol", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.Users().UsernameTaken(ctx, "carol", inv.ID)
	require.NoError(t, err)
	assert.False(t, taken, "the invite being redeemed may keep its own username")

	u, err := s.Users().Create(ctx, newUser("dave", "dave@example.com"))
	require.NoError(t, err)
	require.NoError(t, s.Invites().MarkRedeemed(ctx, inv.ID, u.ID))

	taken, err = s.Users().UsernameTaken(ctx, "carol", 0)
	require.NoError(t, err)
	assert.False(t, taken, "redeemed invites no longer reserve usernames")

	taken, err = s.Users().UsernameTaken(ctx, "dave", 0)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUsers_UpdatePassword_ComparesAndSwaps(t *testing.T) {
	ctx := context.Background()
	users := newStore(t).Users()
	u, err := users.Create(ctx, newUser("erin", "erin@example.com"))
	require.NoError(t, err)

	ok, err := users.UpdatePassword(ctx, u.ID, "hash-erin", "new-hash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.UpdatePassword(ctx, u.ID, "hash-erin", "newer-hash")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
}

func TestUsers_UpdateEmail(t *testing.T) {
	ctx := context.Background()
	users := newStore(t).Users()
	u, err := users.Create(ctx, newUser("fay", "fay@example.com"))
	require.NoError(t, err)
	_, err = users.Create(ctx, newUser("gus", "gus@example.com"))
	require.NoError(t, err)

	require.ErrorIs(t, users.UpdateEmail(ctx, u.ID, "gus@example.com"), domain.ErrEmailTaken)

	require.NoError(t, users.UpdateEmail(ctx, u.ID, "fay@new.example.com"))
	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "fay@new.example.com", got.Email)
	assert.True(t, got.IsEmailVerified)
}

func TestUsers_SoftDelete(t *testing.T) {
	ctx := context.Background()
	users := newStore(t).Users()
	u, err := users.Create(ctx, newUser("hal", "hal@example.com"))
	require.NoError(t, err)

	require.NoError(t, users.SoftDelete(ctx, u.ID))
	require.ErrorIs(t, users.SoftDelete(ctx, u.ID), domain.ErrUserNotFound)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())

	taken, err := users.UsernameTaken(ctx, "hal", 0)
	require.NoError(t, err)
	assert.True(t, taken, "deleted users keep their username")
}

func TestInvites_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	invites := s.Invites()

	inv, err := invites.Create(ctx, &domain.UserInvite{Email: ptr("ivy@example.com"), Name: ptr("Ivy"), Token: "placeholder"})
	require.NoError(t, err)
	require.NotZero(t, inv.ID)
	assert.False(t, inv.IsRedeemed())
	assert.False(t, inv.CreatedAt.IsZero())

	require.NoError(t, invites.SetToken(ctx, inv.ID, "real-token"))
	_, err = invites.FindByToken(ctx, "placeholder")
	require.ErrorIs(t, err, domain.ErrInviteNotFound)

	got, err := invites.FindByToken(ctx, "real-token")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, "Ivy", *got.Name)

	u, err := s.Users().Create(ctx, newUser("ivy", "ivy@example.com"))
	require.NoError(t, err)
	require.NoError(t, invites.MarkRedeemed(ctx, inv.ID, u.ID))
	require.ErrorIs(t, invites.MarkRedeemed(ctx, inv.ID, u.ID), domain.ErrAlreadyRedeemed)

	got, err = invites.FindByToken(ctx, "real-token")
	require.NoError(t, err)
	require.True(t, got.IsRedeemed())
	assert.Equal(t, u.ID, *got.CreatedUserID)
}

func TestInvites_Create_Duplicates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	inviter, err := s.Users().Create(ctx, newUser("jan", "jan@example.com"))
	require.NoError(t, err)

	_, err = s.Invites().Create(ctx, &domain.UserInvite{InvitedBy: &inviter.ID, Email: ptr("x@example.com"), Nickname: ptr("x"), Token: "a"})
	require.NoError(t, err)

	_, err = s.Invites().Create(ctx, &domain.UserInvite{InvitedBy: &inviter.ID, Email: ptr("x@example.com"), Token: "b"})
	require.ErrorIs(t, err, domain.ErrDuplicateInvite)

	_, err = s.Invites().Create(ctx, &domain.UserInvite{InvitedBy: &inviter.ID, Nickname: ptr("x"), Token: "c"})
	require.ErrorIs(t, err, domain.ErrDuplicateInvite)
}

func TestInvites_ListUnsentAndMarkSent(t *testing.T) {
	ctx := context.Background()
	invites := newStore(t).Invites()

	a, err := invites.Create(ctx, &domain.UserInvite{Email: ptr("a@example.com"), Token: "a"})
	require.NoError(t, err)
	_, err = invites.Create(ctx, &domain.UserInvite{Username: ptr("noemail"), Token: "b"})
	require.NoError(t, err)
	c, err := invites.Create(ctx, &domain.UserInvite{Email: ptr("c@example.com"), Token: "c"})
	require.NoError(t, err)

	unsent, err := invites.ListUnsent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsent, 2)
	assert.Equal(t, a.ID, unsent[0].ID)
	assert.Equal(t, c.ID, unsent[1].ID)

	require.NoError(t, invites.MarkEmailSent(ctx, a.ID))
	unsent, err = invites.ListUnsent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, c.ID, unsent[0].ID)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Users().Create(ctx, newUser("kim", "kim@example.com")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().FindByUsername(ctx, "kim")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			_, _ = tx.Users().Create(ctx, newUser("lou", "lou@example.com"))
			panic("kaboom")
		})
	})

	_, err := s.Users().FindByUsername(ctx, "lou")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestWithinTx_Commits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		_, err := tx.Users().Create(ctx, newUser("max", "max@example.com"))
		return err
	})
	require.NoError(t, err)

	_, err = s.Users().FindByUsername(ctx, "max")
	require.NoError(t, err)
}

func TestOpen_ReopenSkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"

	first, err := sqlite.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	_, err = first.Users().Create(ctx, newUser("kept", "kept@example.com"))
	require.NoError(t, err)

	second, err := sqlite.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.Users().FindByUsername(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "kept@example.com", got.Email)
}

func TestInvites_LockByToken(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	created, err := s.Invites().Create(ctx, &domain.UserInvite{Email: ptr("lock@example.com"), Token: "lock-token"})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		inv, err := tx.Invites().LockByToken(ctx, "lock-token")
		if err != nil {
			return err
		}
		assert.Equal(t, created.ID, inv.ID)
		return nil
	})
	require.NoError(t, err)

	_, err = s.Invites().LockByToken(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrInviteNotFound)
}
