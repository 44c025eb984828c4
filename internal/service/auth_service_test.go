package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type authRepoStub struct {
	user             *models.User
	lastLoginUpdated bool
}

func (m *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *authRepoStub) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authRepoStub{user: &models.User{
		ID: "user-1", Email: "ana@lingowow.test", PasswordHash: string(hash), FullName: "Ana", Role: models.RoleStudent, Active: active,
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "secret", Expiry: time.Hour, Issuer: "lingowow"})
	return svc, repo
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	svc, repo := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@lingowow.test", Password: "Password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@lingowow.test", Password: "wrong-pass"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@lingowow.test", Password: "Password123"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	inactive, _ := newAuthFixture(t, false)
	_, err = inactive.Login(context.Background(), models.LoginRequest{Email: "ana@lingowow.test", Password: "Password123"})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	issued := time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@lingowow.test", Password: "Password123"})
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
