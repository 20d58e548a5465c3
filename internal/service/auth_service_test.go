package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
)

type authRepoStub struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedIDs    []string
	createdUsers  []*models.User
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		usersByEmail:  make(map[string]*models.User),
		usersByID:     make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (r *authRepoStub) addUser(user *models.User) {
	r.usersByEmail[user.Email] = user
	r.usersByID[user.ID] = user
}

func (r *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := r.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := r.usersByID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u-created"
	}
	r.createdUsers = append(r.createdUsers, user)
	r.addUser(user)
	return nil
}

func (r *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.refreshTokens[token.Token] = token
	return nil
}

func (r *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := r.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	r.revokedIDs = append(r.revokedIDs, id)
	for _, stored := range r.refreshTokens {
		if stored.ID == id {
			stored.Revoked = true
		}
	}
	return nil
}

func (r *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, stored := range r.refreshTokens {
		if stored.UserID == userID {
			stored.Revoked = true
		}
	}
	return nil
}

type authRoleStub struct {
	roles map[string]*models.Role
}

func (r authRoleStub) GetByName(ctx context.Context, name string) (*models.Role, error) {
	if role, ok := r.roles[name]; ok {
		return role, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthServiceForTest(repo *authRepoStub) *AuthService {
	roles := authRoleStub{roles: map[string]*models.Role{
		models.RoleNameStudent: {ID: "r-student", Name: models.RoleNameStudent},
	}}
	return NewAuthService(repo, roles, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "campus-notice-api-test",
	})
}

func hashedPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegisterAssignsStudentRole(t *testing.T) {
	repo := newAuthRepoStub()
	svc := newAuthServiceForTest(repo)

	result, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Nadia",
		Email:    "nadia@example.edu",
		Password: "secret123",
	})
	require.NoError(t, err)

	require.Len(t, repo.createdUsers, 1)
	assert.Equal(t, "r-student", repo.createdUsers[0].RoleID)
	assert.Equal(t, models.RoleNameStudent, result.User.Role)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
}

func TestAuthServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser(&models.User{ID: "u-1", Email: "taken@example.edu"})
	svc := newAuthServiceForTest(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Someone",
		Email:    "taken@example.edu",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser(&models.User{
		ID:           "u-1",
		Email:        "user@example.edu",
		PasswordHash: hashedPassword(t, "correct"),
		RoleName:     models.RoleNameStudent,
	})
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "user@example.edu",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	// Unknown emails get the same error to avoid account enumeration.
	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.edu",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginIssuesValidAccessToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser(&models.User{
		ID:           "u-1",
		Name:         "Raka",
		Email:        "raka@example.edu",
		PasswordHash: hashedPassword(t, "secret123"),
		RoleID:       "r-teacher",
		RoleName:     models.RoleNameTeacher,
	})
	svc := newAuthServiceForTest(repo)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "raka@example.edu",
		Password: "secret123",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleNameTeacher, claims.Role)
	assert.Equal(t, "r-teacher", claims.RoleID)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser(&models.User{ID: "u-1", Email: "u@example.edu", RoleName: models.RoleNameStudent})
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		Token:     "old-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthServiceForTest(repo)

	result, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", result.RefreshToken)
	assert.Contains(t, repo.revokedIDs, "rt-1")
}

func TestAuthServiceRefreshRejectsExpiredToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser(&models.User{ID: "u-1", Email: "u@example.edu"})
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	svc := newAuthServiceForTest(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutChecksOwnership(t *testing.T) {
	repo := newAuthRepoStub()
	repo.refreshTokens["tok"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthServiceForTest(repo)

	err := svc.Logout(context.Background(), "tok", "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "tok", "u-1"))
	assert.True(t, repo.refreshTokens["tok"].Revoked)
}

func TestAuthServiceValidateTokenRejectsWrongSecret(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser(&models.User{
		ID:           "u-1",
		Email:        "u@example.edu",
		PasswordHash: hashedPassword(t, "secret123"),
		RoleName:     models.RoleNameStudent,
	})
	svc := newAuthServiceForTest(repo)

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "u@example.edu", Password: "secret123"})
	require.NoError(t, err)

	other := NewAuthService(repo, authRoleStub{}, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(result.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
