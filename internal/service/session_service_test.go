package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service/marketplace/marketplacetest"
	"shopsphere/storefront/internal/storage"
)

func loggedIn(t *testing.T, srv *marketplacetest.Server, u model.User) *SessionService {
	t.Helper()
	sessions := NewSessionService(srv.Client(), storage.NewMemory())
	require.True(t, sessions.Login(context.Background(), u.Username, marketplacetest.Password))
	return sessions
}

func TestSessionService_LoginPersists(t *testing.T) {
	srv := marketplacetest.NewServer(t)
	store := storage.NewMemory()
	ctx := context.Background()

	sessions := NewSessionService(srv.Client(), store)
	assert.True(t, sessions.Login(ctx, "  alice ", marketplacetest.Password))

	sess, ok := sessions.Current()
	require.True(t, ok)
	assert.Equal(t, marketplacetest.Seller, sess.User)
	assert.Equal(t, marketplacetest.TokenFor(marketplacetest.Seller), sess.Token)
	assert.True(t, sessions.IsSeller())

	rawToken, err := store.Get(ctx, sessionTokenKey)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, string(rawToken))

	restored := NewSessionService(srv.Client(), store)
	require.NoError(t, restored.Load(ctx))
	got, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, sess, got)
}

func TestSessionService_LoginRejected(t *testing.T) {
	srv := marketplacetest.NewServer(t)
	store := storage.NewMemory()
	ctx := context.Background()

	sessions := NewSessionService(srv.Client(), store)
	assert.False(t, sessions.Login(ctx, "alice", "wrong"))

	_, ok := sessions.Current()
	assert.False(t, ok)
	_, err := store.Get(ctx, sessionUserKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionService_LoginUnreachable(t *testing.T) {
	srv := marketplacetest.NewServer(t)
	srv.Fail("POST /api/v1/auth/login", 500)

	sessions := NewSessionService(srv.Client(), storage.NewMemory())
	assert.False(t, sessions.Login(context.Background(), "alice", marketplacetest.Password))
}

func TestSessionService_Logout(t *testing.T) {
	srv := marketplacetest.NewServer(t)
	store := storage.NewMemory()
	ctx := context.Background()

	sessions := NewSessionService(srv.Client(), store)
	require.True(t, sessions.Login(ctx, "bob", marketplacetest.Password))
	sessions.Logout(ctx)

	_, ok := sessions.Current()
	assert.False(t, ok)
	assert.Empty(t, sessions.Token())
	assert.False(t, sessions.IsSeller())
	for _, key := range []string{sessionUserKey, sessionTokenKey} {
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func TestSessionService_LoadDiscardsInvalid(t *testing.T) {
	tests := []struct {
		name string
		user string
	}{
		{name: "unknown role", user: `{"id":"u1","username":"alice","role":"admin"}`},
		{name: "missing role", user: `{"id":"u1","username":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemory()
			require.NoError(t, store.SetMany(ctx, map[string][]byte{
				sessionUserKey:  []byte(tt.user),
				sessionTokenKey: []byte("tok"),
			}))

			sessions := NewSessionService(nil, store)
			require.NoError(t, sessions.Load(ctx))

			_, ok := sessions.Current()
			assert.False(t, ok)
			_, err := store.Get(ctx, sessionUserKey)
			assert.ErrorIs(t, err, storage.ErrNotFound)
			_, err = store.Get(ctx, sessionTokenKey)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestSessionService_LoadEmpty(t *testing.T) {
	sessions := NewSessionService(nil, storage.NewMemory())
	require.NoError(t, sessions.Load(context.Background()))
	_, ok := sessions.Current()
	assert.False(t, ok)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestDecodeSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	validUser := []byte(`{"id":"u1","username":"alice","role":"seller"}`)

	tests := []struct {
		name    string
		user    []byte
		token   []byte
		wantErr bool
	}{
		{name: "opaque token", user: validUser, token: []byte("tok-1")},
		{name: "unexpired jwt", user: validUser, token: []byte(signed(t, now.Add(time.Hour)))},
		{name: "expired jwt", user: validUser, token: []byte(signed(t, now.Add(-time.Minute))), wantErr: true},
		{name: "missing token", user: validUser, token: nil, wantErr: true},
		{name: "blank token", user: validUser, token: []byte("  "), wantErr: true},
		{name: "missing user", user: nil, token: []byte("tok"), wantErr: true},
		{name: "malformed json", user: []byte(`{"id":`), token: []byte("tok"), wantErr: true},
		{name: "missing username", user: []byte(`{"id":"u1","role":"customer"}`), token: []byte("tok"), wantErr: true},
		{name: "unknown role", user: []byte(`{"id":"u1","username":"a","role":"admin"}`), token: []byte("tok"), wantErr: true},
		{name: "missing role", user: []byte(`{"id":"u1","username":"a"}`), token: []byte("tok"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := DecodeSession(tt.user, tt.token, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSession)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", sess.User.ID)
			assert.Equal(t, model.RoleSeller, sess.User.Role)
		})
	}
}
