package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/rekur/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRegisterLoginVerify(t *testing.T) {
	svc := NewAuthService("jwt-secret", "admin@x.io", "", newFakeUsers())
	ctx := context.Background()

	reg, err := svc.Register(ctx, &domain.CreateUserRequest{Email: " New@X.io ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "new@x.io", reg.User.Email)

	_, err = svc.Register(ctx, &domain.CreateUserRequest{Email: "new@x.io", Password: "hunter22"})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.Code)

	login, err := svc.Login(ctx, "new@x.io", "hunter22")
	require.NoError(t, err)

	claims, err := svc.VerifyToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.Sub)
	assert.Equal(t, domain.RoleUser, claims.Role)

	_, err = svc.Login(ctx, "new@x.io", "wrong")
	assert.Error(t, err)
}

func TestAuthLoginRejectsDisabled(t *testing.T) {
	users := newFakeUsers()
	svc := NewAuthService("jwt-secret", "admin@x.io", "", users)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &domain.CreateUserRequest{Email: "u@x.io", Password: "hunter22"})
	require.NoError(t, err)
	_, err = users.SetDisabled(ctx, reg.User.ID, true)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "u@x.io", "hunter22")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestAuthVerifyTokenRejectsForeignSecret(t *testing.T) {
	users := newFakeUsers()
	a := NewAuthService("one", "admin@x.io", "", users)
	b := NewAuthService("two", "admin@x.io", "", users)

	reg, err := a.Register(context.Background(), &domain.CreateUserRequest{Email: "u@x.io", Password: "hunter22"})
	require.NoError(t, err)

	_, err = b.VerifyToken(reg.Token)
	assert.Error(t, err)
}

func TestSeedAdmin(t *testing.T) {
	users := newFakeUsers()
	ctx := context.Background()

	require.NoError(t, NewAuthService("s", "admin@x.io", "", users).SeedAdmin(ctx))
	n, _ := users.Count(ctx)
	assert.Zero(t, n, "no password, no admin")

	svc := NewAuthService("s", "admin@x.io", "rootpass", users)
	require.NoError(t, svc.SeedAdmin(ctx))
	require.NoError(t, svc.SeedAdmin(ctx))
	n, _ = users.Count(ctx)
	assert.Equal(t, 1, n)

	login, err := svc.Login(ctx, "admin@x.io", "rootpass")
	require.NoError(t, err)
	claims, err := svc.VerifyToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}
