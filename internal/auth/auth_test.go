package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(allowGuests bool) *Service {
	return NewService(NewMemoryStore(), Options{
		AllowGuests: allowGuests,
		Admins:      []string{"root"},
		HashCost:    bcrypt.MinCost,
	})
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"alice", "Bob_2", "a-b", "x", "sixteen_chars_ok"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", "has space", "semi;colon", "colon:", "seventeen_chars_x", "pipe|"} {
		assert.False(t, ValidName(name), name)
	}
}

func TestLogin_Guests(t *testing.T) {
	ctx := context.Background()

	s := newTestService(true)
	assert.NoError(t, s.Login(ctx, "alice", ""))
	assert.ErrorIs(t, s.Login(ctx, "alice", "secret"), ErrBadCredentials)
	assert.ErrorIs(t, s.Login(ctx, "bad name", ""), ErrInvalidName)

	closed := newTestService(false)
	assert.ErrorIs(t, closed.Login(ctx, "alice", ""), ErrNotRegistered)
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService(false)

	assert.ErrorIs(t, s.Signup(ctx, "alice", "abc"), ErrWeakPassword)
	require.NoError(t, s.Signup(ctx, "alice", "secret"))
	assert.ErrorIs(t, s.Signup(ctx, "alice", "other1"), ErrUserExists)

	assert.NoError(t, s.Login(ctx, "alice", "secret"))
	assert.ErrorIs(t, s.Login(ctx, "alice", "wrong"), ErrBadCredentials)
	assert.ErrorIs(t, s.Login(ctx, "alice", ""), ErrBadCredentials)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestService(true)
	require.NoError(t, s.Signup(ctx, "alice", "secret"))

	assert.ErrorIs(t, s.ChangePassword(ctx, "alice", "wrong", "newpass"), ErrBadCredentials)
	assert.ErrorIs(t, s.ChangePassword(ctx, "alice", "secret", "ab"), ErrWeakPassword)
	assert.ErrorIs(t, s.ChangePassword(ctx, "guest", "", "newpass"), ErrPasswordNotSet)

	require.NoError(t, s.ChangePassword(ctx, "alice", "secret", "newpass"))
	assert.ErrorIs(t, s.Login(ctx, "alice", "secret"), ErrBadCredentials)
	assert.NoError(t, s.Login(ctx, "alice", "newpass"))
}

func TestBans(t *testing.T) {
	ctx := context.Background()
	s := newTestService(true)
	require.NoError(t, s.Signup(ctx, "alice", "secret"))

	assert.ErrorIs(t, s.SetBanned(ctx, "alice", "bob", true), ErrNotAdmin)
	assert.ErrorIs(t, s.SetBanned(ctx, "root", "no way", true), ErrInvalidName)

	require.NoError(t, s.SetBanned(ctx, "root", "alice", true))
	require.NoError(t, s.SetBanned(ctx, "root", "guest", true))
	assert.ErrorIs(t, s.Login(ctx, "alice", "secret"), ErrBanned)
	assert.ErrorIs(t, s.Login(ctx, "guest", ""), ErrBanned)

	banned, err := s.BannedUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "guest"}, banned)

	require.NoError(t, s.SetBanned(ctx, "root", "guest", false))
	assert.NoError(t, s.Login(ctx, "guest", ""))
	banned, err = s.BannedUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, banned)
}

func TestUnbanDoesNotRegisterName(t *testing.T) {
	ctx := context.Background()
	s := newTestService(false)

	require.NoError(t, s.SetBanned(ctx, "root", "mallory", true))
	assert.ErrorIs(t, s.Login(ctx, "mallory", ""), ErrBanned)
	require.NoError(t, s.SetBanned(ctx, "root", "mallory", false))

	assert.ErrorIs(t, s.Login(ctx, "mallory", ""), ErrNotRegistered)
	assert.ErrorIs(t, s.Login(ctx, "mallory", "whatever"), ErrNotRegistered)
	assert.ErrorIs(t, s.ChangePassword(ctx, "mallory", "", "newpass"), ErrPasswordNotSet)

	require.NoError(t, s.Signup(ctx, "mallory", "secret"))
	assert.NoError(t, s.Login(ctx, "mallory", "secret"))
	assert.ErrorIs(t, s.Login(ctx, "mallory", "whatever"), ErrBadCredentials)
}

func TestLogin_HashlessRecordFollowsGuestRules(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.users["ghost"] = User{Name: "ghost"}

	closed := NewService(store, Options{HashCost: bcrypt.MinCost})
	assert.ErrorIs(t, closed.Login(ctx, "ghost", "anything"), ErrNotRegistered)

	open := NewService(store, Options{AllowGuests: true, HashCost: bcrypt.MinCost})
	assert.NoError(t, open.Login(ctx, "ghost", ""))
	assert.ErrorIs(t, open.Login(ctx, "ghost", "anything"), ErrBadCredentials)
}

func TestMemoryStore_UnbanKeepsRegisteredUser(t *testing.T) {
	ctx := context.Background()
	s := newTestService(false)
	require.NoError(t, s.Signup(ctx, "alice", "secret"))

	require.NoError(t, s.SetBanned(ctx, "root", "alice", true))
	require.NoError(t, s.SetBanned(ctx, "root", "alice", false))
	assert.NoError(t, s.Login(ctx, "alice", "secret"))
	assert.ErrorIs(t, s.Login(ctx, "alice", "other"), ErrBadCredentials)
}

func TestMemoryStore_SignupKeepsBanOnGuestRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestService(true)
	require.NoError(t, s.SetBanned(ctx, "root", "mallory", true))

	require.NoError(t, s.Signup(ctx, "mallory", "secret"))
	assert.ErrorIs(t, s.Login(ctx, "mallory", "secret"), ErrBanned)
}
