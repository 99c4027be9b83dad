package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/procurehub/marketplace-api/internal/models"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
)

type stubAuthRepo struct {
	users      map[string]*models.User
	lastLogins []string
	audits     []models.AuditLog
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *stubAuthRepo) UpdateLastLogin(ctx context.Context, id string) error {
	s.lastLogins = append(s.lastLogins, id)
	return nil
}

func (s *stubAuthRepo) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	s.audits = append(s.audits, *entry)
	return nil
}

func authFixture(t *testing.T) (*AuthService, *stubAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubAuthRepo{users: map[string]*models.User{
		"vendor-1": {
			ID:           "vendor-1",
			Email:        "alex@example.com",
			PasswordHash: string(hash),
			FullName:     "Alex Rivera",
			Role:         models.RoleVendor,
			Active:       true,
		},
		"inactive-1": {
			ID:           "inactive-1",
			Email:        "gone@example.com",
			PasswordHash: string(hash),
			Role:         models.RoleVendor,
		},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "marketplace-test",
	})
	return svc, repo
}

func TestAuthLoginIssuesVerifiableToken(t *testing.T) {
	svc, repo := authFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alex@example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "vendor-1", res.User.ID)
	assert.Equal(t, []string{"vendor-1"}, repo.lastLogins)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionLogin, repo.audits[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", claims.UserID)
	assert.Equal(t, models.RoleVendor, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alex@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "s3cret!",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "gone@example.com",
		Password: "s3cret!",
	})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestAuthValidateTokenRejectsForgedSignature(t *testing.T) {
	svc, _ := authFixture(t)
	other := NewAuthService(nil, nil, nil, AuthConfig{Secret: "other-secret", Expiry: time.Hour})

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alex@example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(res.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthMeUnknownUser(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Me(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
