package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lokapos/lokapos/internal/shared"
)

type memoryUserRepo struct {
	users map[string]*User
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func newTestService(t *testing.T, users map[string]*User) (*Service, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour)
	return NewService(&memoryUserRepo{users: users}, sessions), sessions
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestLoginIssuesSession(t *testing.T) {
	svc, sessions := newTestService(t, map[string]*User{
		"kasir@lokapos.id": {
			ID: 3, Email: "kasir@lokapos.id", Name: "Kasir Satu",
			PasswordHash: hashPassword(t, "rahasia-sekali"),
			Role:         "CASHIER", OutletID: 2, IsActive: true,
		},
	})
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "kasir@lokapos.id", "rahasia-sekali")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, int64(3), user.ID)

	actor, err := sessions.Load(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(3), actor.UserID)
	require.Equal(t, int64(2), actor.OutletID)
	require.Equal(t, "CASHIER", actor.Role)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = sessions.Load(ctx, token)
	require.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t, map[string]*User{
		"kasir@lokapos.id": {
			ID: 3, Email: "kasir@lokapos.id",
			PasswordHash: hashPassword(t, "rahasia-sekali"),
			Role:         "CASHIER", OutletID: 2, IsActive: true,
		},
		"nonaktif@lokapos.id": {
			ID: 4, Email: "nonaktif@lokapos.id",
			PasswordHash: hashPassword(t, "rahasia-sekali"),
			Role:         "CASHIER", OutletID: 2, IsActive: false,
		},
	})
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "kasir@lokapos.id", "salah")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "tidakada@lokapos.id", "rahasia-sekali")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nonaktif@lokapos.id", "rahasia-sekali")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
