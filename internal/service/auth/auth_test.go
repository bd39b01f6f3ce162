package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/testutil"
	"github.com/Skotchmaster/bookstore/pkg/tokens"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*Service, *repo.GormRepo, *clock) {
	t.Helper()
	r := testutil.NewRepo(t)
	clk := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	signer := tokens.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "bookstore", "bookstore-api", time.Hour)
	return New(r, signer, WithClock(clk.Now)), r, clk
}

func activeTokens(t *testing.T, r *repo.GormRepo, userID uint) int64 {
	t.Helper()
	n, err := r.CountActiveRefreshForUser(context.Background(), userID)
	require.NoError(t, err)
	return n
}

func TestLogin_IssuesPair(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	u := testutil.SeedUser(t, r, "alice", "password1", models.RoleCustomer)

	pair, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.GreaterOrEqual(t, len(pair.RefreshToken), 64, "at least 48 bytes of entropy once encoded")
	assert.Equal(t, u.ID, pair.User.ID)
	assert.Equal(t, models.RoleCustomer, pair.User.Role)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), pair.ExpiresAt)
	assert.Equal(t, time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC), pair.RefreshExpiresAt)

	stored, err := r.FindRefreshByHash(ctx, tokens.HashRefreshToken(pair.RefreshToken))
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NotEqual(t, pair.RefreshToken, stored.TokenHash, "raw token is never stored")

	p, err := svc.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{UserID: u.ID, Username: "alice", Role: models.RoleCustomer}, p)
}

func TestLogin_WrongPasswordThreeTimes(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	u := testutil.SeedUser(t, r, "bob", "password1", models.RoleCustomer)

	for i := 0; i < 3; i++ {
		pair, err := svc.Login(ctx, "bob", "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials, "attempt %d", i+1)
		assert.Nil(t, pair)
	}
	assert.Zero(t, activeTokens(t, r, u.ID))

	// no lockout
	_, err := svc.Login(ctx, "bob", "password1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_InactiveUserRejected(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	u := testutil.SeedUser(t, r, "carol", "password1", models.RoleCustomer)
	require.NoError(t, r.DB.Model(u).Update("is_active", false).Error)

	_, err := svc.Login(ctx, "carol", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	ctx := context.Background()
	svc, r, clk := newService(t)
	u := testutil.SeedUser(t, r, "dave", "password1", models.RoleAdmin)

	first, err := svc.Login(ctx, "dave", "password1")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, models.RoleAdmin, second.User.Role)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	old, err := r.FindRefreshByHash(ctx, tokens.HashRefreshToken(first.RefreshToken))
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	require.NotNil(t, old.RevokedAt)

	assert.EqualValues(t, 1, activeTokens(t, r, u.ID))
}

func TestRefresh_ConcurrentRotationWinsOnce(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	testutil.SeedUser(t, r, "erin", "password1", models.RoleCustomer)

	pair, err := svc.Login(ctx, "erin", "password1")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestRefresh_ExpiredUnknownEmpty(t *testing.T) {
	ctx := context.Background()
	svc, r, clk := newService(t)
	testutil.SeedUser(t, r, "frank", "password1", models.RoleCustomer)

	pair, err := svc.Login(ctx, "frank", "password1")
	require.NoError(t, err)

	clk.Advance(DefaultRefreshTTL + time.Second)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRevokeAndRevokeAll(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	u := testutil.SeedUser(t, r, "gina", "password1", models.RoleCustomer)

	a, err := svc.Login(ctx, "gina", "password1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "gina", "password1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "gina", "password1")
	require.NoError(t, err)
	require.EqualValues(t, 3, activeTokens(t, r, u.ID))

	ok, err := svc.Revoke(ctx, a.RefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Revoke(ctx, a.RefreshToken)
	require.NoError(t, err)
	assert.False(t, ok, "second revoke is a no-op")

	_, err = svc.Refresh(ctx, a.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	n, err := svc.RevokeAll(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Zero(t, activeTokens(t, r, u.ID))
}

func TestValidateAccess(t *testing.T) {
	ctx := context.Background()
	svc, r, clk := newService(t)
	testutil.SeedUser(t, r, "hank", "password1", models.RoleCustomer)

	pair, err := svc.Login(ctx, "hank", "password1")
	require.NoError(t, err)

	_, err = svc.ValidateAccess(pair.AccessToken + "x")
	assert.Error(t, err)

	other := tokens.NewSigner([]byte("another-secret-another-secret-00"), "bookstore", "bookstore-api", time.Hour)
	forged, _, err := other.Issue(1, "hank", "admin")
	require.NoError(t, err)
	_, err = svc.ValidateAccess(forged)
	assert.Error(t, err)

	clk.Advance(time.Hour + time.Second)
	_, err = svc.ValidateAccess(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	admin := &domain.Principal{UserID: 1, Username: "root", Role: models.RoleAdmin}

	u, err := svc.Register(ctx, RegisterInput{
		Username: "ivy", Email: "Ivy@Example.com", Password: "secret1", ConfirmPassword: "secret1", Role: "admin",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, u.Role, "anonymous callers cannot self-promote")
	assert.Equal(t, "ivy@example.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	boss, err := svc.Register(ctx, RegisterInput{
		Username: "jack", Email: "jack@example.com", Password: "secret1", ConfirmPassword: "secret1", Role: "admin",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, boss.Role)

	_, err = svc.Register(ctx, RegisterInput{
		Username: "ivy", Email: "other@example.com", Password: "secret1", ConfirmPassword: "secret1",
	}, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{
		Username: "ivy2", Email: "ivy@example.com", Password: "secret1", ConfirmPassword: "secret1",
	}, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	bad := []RegisterInput{
		{Username: "ab", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1"},
		{Username: "kate", Email: "not-an-email", Password: "secret1", ConfirmPassword: "secret1"},
		{Username: "kate", Email: "kate@example.com", Password: "short", ConfirmPassword: "short"},
		{Username: "kate", Email: "kate@example.com", Password: "secret1", ConfirmPassword: "secret2"},
		{Username: "kate", Email: "kate@example.com", Password: "secret1", ConfirmPassword: "secret1", Role: "root"},
	}
	for i, in := range bad {
		_, err := svc.Register(ctx, in, nil)
		assert.ErrorIs(t, err, domain.ErrValidation, "case %d", i)
	}

	total, _, err := r.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	ctx := context.Background()
	svc, r, _ := newService(t)
	u := testutil.SeedUser(t, r, "liam", "password1", models.RoleCustomer)

	pair, err := svc.Login(ctx, "liam", "password1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "wrong", "newpass1"), domain.ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "password1", "x"), domain.ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "password1", "newpass1"))
	assert.Zero(t, activeTokens(t, r, u.ID))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = svc.Login(ctx, "liam", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "liam", "newpass1")
	assert.NoError(t, err)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	svc, r, clk := newService(t)
	u := testutil.SeedUser(t, r, "mia", "password1", models.RoleCustomer)

	old, err := svc.Login(ctx, "mia", "password1")
	require.NoError(t, err)
	_, err = svc.Revoke(ctx, old.RefreshToken)
	require.NoError(t, err)

	clk.Advance(30 * 24 * time.Hour)
	_, err = svc.Login(ctx, "mia", "password1")
	require.NoError(t, err)

	n, err := svc.PurgeExpired(ctx, clk.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 1, activeTokens(t, r, u.ID))
}

func TestEnsureAdminAndMe(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	created, err := svc.EnsureAdmin(ctx, "admin", "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "admin", "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.False(t, created)

	pair, err := svc.Login(ctx, "admin", "adminpass")
	require.NoError(t, err)
	me, err := svc.Me(ctx, pair.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, me.Role)

	_, err = svc.Me(ctx, 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
