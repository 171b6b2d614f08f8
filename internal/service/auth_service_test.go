package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unioncase/unioncase-api/internal/models"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	exists           bool
	created          *models.User
	statusUpdates    map[string]models.SubscriptionStatus
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		return m.userByEmail, nil
	}
	if m.created != nil && m.created.ID == id {
		return m.created, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmailOrEmployeeID(ctx context.Context, email, employeeID string) (bool, error) {
	return m.exists, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.SubscriptionStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

type mockTrialEnroller struct {
	enrolled  []*models.User
	welcomed  []*models.User
	giveTrial bool
}

func (m *mockTrialEnroller) Enroll(user *models.User) {
	m.enrolled = append(m.enrolled, user)
	if m.giveTrial {
		now := time.Now().UTC()
		ends := now.Add(models.TrialDuration)
		user.SubscriptionStatus = models.SubscriptionTrial
		user.TrialStartsAt = &now
		user.TrialEndsAt = &ends
	} else {
		user.SubscriptionStatus = models.SubscriptionActive
	}
}

func (m *mockTrialEnroller) NotifyWelcome(user *models.User) {
	m.welcomed = append(m.welcomed, user)
}

func newAuthService(repo *mockAuthRepo, trial *mockTrialEnroller) *AuthService {
	return NewAuthService(repo, trial, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "unioncase-test",
	})
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func registerRequest() models.RegisterRequest {
	return models.RegisterRequest{
		Email:      "dana@example.com",
		Password:   "secret123",
		FirstName:  "Dana",
		LastName:   "Reyes",
		EmployeeID: "EMP-100",
		Role:       "steward",
		Facility:   "Main St Station",
		Craft:      "city_carrier",
	}
}

func TestAuthServiceRegisterEnrollsTrialAndWelcomes(t *testing.T) {
	repo := &mockAuthRepo{}
	trial := &mockTrialEnroller{giveTrial: true}
	svc := newAuthService(repo, trial)

	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.SubscriptionTrial, repo.created.SubscriptionStatus)
	assert.Len(t, trial.welcomed, 1)
	assert.Equal(t, models.SubscriptionTrial, resp.User.SubscriptionStatus)
	assert.NotNil(t, resp.User.TrialEndsAt)
	assert.Equal(t, models.UnionNALC, resp.User.Union)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestAuthServiceRegisterWithoutTrialSkipsWelcome(t *testing.T) {
	repo := &mockAuthRepo{}
	trial := &mockTrialEnroller{giveTrial: false}
	svc := newAuthService(repo, trial)

	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	assert.Empty(t, trial.welcomed)
	assert.Equal(t, models.SubscriptionActive, resp.User.SubscriptionStatus)
}

func TestAuthServiceRegisterDuplicateConflict(t *testing.T) {
	repo := &mockAuthRepo{exists: true}
	svc := newAuthService(repo, &mockTrialEnroller{})

	_, err := svc.Register(context.Background(), registerRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	ends := time.Now().UTC().Add(10 * 24 * time.Hour)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:                 "user-1",
		Email:              "dana@example.com",
		PasswordHash:       hashPassword(t, "secret123"),
		Role:               models.RoleSteward,
		Craft:              models.CraftClerk,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &ends,
	}}
	svc := newAuthService(repo, &mockTrialEnroller{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionTrial, resp.User.SubscriptionStatus)
	assert.Empty(t, repo.statusUpdates)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleSteward, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:           "user-1",
		Email:        "dana@example.com",
		PasswordHash: hashPassword(t, "secret123"),
	}}
	svc := newAuthService(repo, &mockTrialEnroller{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "wrong"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginLazilyExpiresTrial(t *testing.T) {
	ended := time.Now().UTC().Add(-48 * time.Hour)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:                 "user-1",
		Email:              "dana@example.com",
		PasswordHash:       hashPassword(t, "secret123"),
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &ended,
	}}
	svc := newAuthService(repo, &mockTrialEnroller{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, resp.User.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionExpired, repo.statusUpdates["user-1"])
}

func TestAuthServiceProfileLazilyExpiresTrial(t *testing.T) {
	ended := time.Now().UTC().Add(-time.Hour)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:                 "user-1",
		Email:              "dana@example.com",
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &ended,
	}}
	svc := newAuthService(repo, &mockTrialEnroller{})

	info, err := svc.Profile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, info.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionExpired, repo.statusUpdates["user-1"])
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:           "user-1",
		Email:        "dana@example.com",
		PasswordHash: hashPassword(t, "secret123"),
	}}
	svc := newAuthService(repo, &mockTrialEnroller{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	// replaying the revoked token fails
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, &mockTrialEnroller{})
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
