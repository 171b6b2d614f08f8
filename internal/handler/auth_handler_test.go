package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioncase/unioncase-api/internal/middleware"
	"github.com/unioncase/unioncase-api/internal/models"
	"github.com/unioncase/unioncase-api/internal/service"
)

type stubAuthRepo struct {
	users         map[string]*models.User
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		users:         map[string]*models.User{},
		usersByEmail:  map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
	}
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := s.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *stubAuthRepo) ExistsByEmailOrEmployeeID(ctx context.Context, email, employeeID string) (bool, error) {
	_, ok := s.usersByEmail[email]
	return ok, nil
}

func (s *stubAuthRepo) Create(ctx context.Context, user *models.User) error {
	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user
	return nil
}

func (s *stubAuthRepo) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	if u, ok := s.users[id]; ok {
		u.SubscriptionStatus = status
	}
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range s.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
		}
	}
	return nil
}

type stubEnroller struct{}

func (stubEnroller) Enroll(user *models.User) {
	now := time.Now().UTC()
	ends := now.Add(models.TrialDuration)
	user.SubscriptionStatus = models.SubscriptionTrial
	user.TrialStartsAt = &now
	user.TrialEndsAt = &ends
}

func (stubEnroller) NotifyWelcome(user *models.User) {}

func newAuthRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewAuthService(newStubAuthRepo(), stubEnroller{}, nil, nil, service.AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "unioncase-test",
	})
	h := NewAuthHandler(svc)

	router := gin.New()
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.Refresh)
	router.GET("/auth/me", middleware.JWT(svc), h.Me)
	return router, svc
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerPayload() map[string]interface{} {
	return map[string]interface{}{
		"email":      "dana@example.com",
		"password":   "secret123",
		"firstName":  "Dana",
		"lastName":   "Reyes",
		"employeeId": "EMP-100",
		"role":       "steward",
		"facility":   "Main St Station",
		"craft":      "city_carrier",
	}
}

func TestAuthHandlerRegisterLoginAndMe(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.NotEmpty(t, registered.Data.AccessToken)
	assert.Equal(t, models.SubscriptionTrial, registered.Data.User.SubscriptionStatus)
	assert.Equal(t, models.UnionNALC, registered.Data.User.Union)

	w = postJSON(t, router, "/auth/login", map[string]string{
		"email":    "dana@example.com",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	me := httptest.NewRecorder()
	router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "dana@example.com")
}

func TestAuthHandlerRegisterDuplicateConflict(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, router, "/auth/register", registerPayload(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "whatever",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRefreshRotatesToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var registered struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))

	w = postJSON(t, router, "/auth/refresh", map[string]string{
		"refresh_token": registered.Data.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var refreshed struct {
		Data models.RefreshTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEqual(t, registered.Data.RefreshToken, refreshed.Data.RefreshToken)

	// the used token is revoked
	w = postJSON(t, router, "/auth/refresh", map[string]string{
		"refresh_token": registered.Data.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMeRequiresToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
