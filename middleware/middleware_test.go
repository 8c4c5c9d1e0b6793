package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arrively-api/auth"
	"arrively-api/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memDenylist map[string]bool

func (d memDenylist) Revoke(_ context.Context, jti string, _ time.Time) (bool, error) {
	if d[jti] {
		return false, nil
	}
	d[jti] = true
	return true, nil
}

func (d memDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	return d[jti], nil
}

func newTokens() *auth.TokenManager {
	return auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  []byte("access"),
		RefreshSecret: []byte("refresh"),
	})
}

// memIdentities maps user ids to their current identity.
type memIdentities map[uint]auth.Identity

func (m memIdentities) Current(_ context.Context, userID uint) (auth.Identity, error) {
	id, ok := m[userID]
	if !ok {
		return auth.Identity{}, auth.ErrUnknownAccount
	}
	return id, nil
}

func protectedEngine(tokens *auth.TokenManager, deny auth.Denylist) *gin.Engine {
	return identityEngine(tokens, deny, nil)
}

func identityEngine(tokens *auth.TokenManager, deny auth.Denylist, ids auth.IdentityStore) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	authed := AuthRequired(tokens, deny, ids, zap.NewNop())
	r.GET("/me", authed, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "jti": GetClaims(c).ID})
	})
	r.GET("/staff", authed, RoleRequired(models.RoleStaff), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": GetRole(c)})
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredMissingHeader(t *testing.T) {
	r := protectedEngine(newTokens(), memDenylist{})
	w := get(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	tokens := newTokens()
	r := protectedEngine(tokens, memDenylist{})
	token, _, err := tokens.IssueAccess(auth.Subject(42))
	require.NoError(t, err)

	w := get(r, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
}

func TestAuthRequiredRejectsRefreshToken(t *testing.T) {
	tokens := newTokens()
	r := protectedEngine(tokens, memDenylist{})
	token, _, err := tokens.IssueRefresh(auth.Subject(42))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", token).Code)
}

func TestAuthRequiredRejectsRevokedToken(t *testing.T) {
	tokens := newTokens()
	deny := memDenylist{}
	r := protectedEngine(tokens, deny)
	token, claims, err := tokens.IssueAccess(auth.Subject(7))
	require.NoError(t, err)
	deny[claims.ID] = true

	w := get(r, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")
}

func TestAuthRequiredRejectsStaleTokenVersion(t *testing.T) {
	tokens := newTokens()
	ids := memIdentities{7: {Subject: "7", Role: "user", Version: 1}}
	r := identityEngine(tokens, memDenylist{}, ids)

	old, _, err := tokens.IssueFor(auth.TokenTypeAccess, auth.Identity{Subject: "7", Role: "user", Version: 0}, time.Hour)
	require.NoError(t, err)
	w := get(r, "/me", old)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "sign in again")

	fresh, _, err := tokens.IssueFor(auth.TokenTypeAccess, ids[7], time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(r, "/me", fresh).Code)

	gone, _, err := tokens.IssueFor(auth.TokenTypeAccess, auth.Identity{Subject: "8", Role: "user"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", gone).Code)
}

func TestRoleRequired(t *testing.T) {
	tokens := newTokens()
	ids := memIdentities{
		1: {Subject: "1", Role: "user"},
		2: {Subject: "2", Role: "staff"},
	}
	r := identityEngine(tokens, memDenylist{}, ids)

	user, _, err := tokens.IssueFor(auth.TokenTypeAccess, ids[1], time.Hour)
	require.NoError(t, err)
	w := get(r, "/staff", user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "staff")

	staff, _, err := tokens.IssueFor(auth.TokenTypeAccess, ids[2], time.Hour)
	require.NoError(t, err)
	w = get(r, "/staff", staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"staff"`)
}

func TestRequestIDEchoesValidHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, id)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(HeaderXRequestID))
	assert.Equal(t, id, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "not-a-uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Header().Get(HeaderXRequestID))
	assert.NoError(t, err)
}

func TestRecoveryAnswers500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := get(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/rides/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	get(r, "/rides/1", "")
	get(r, "/rides/2", "")
	get(r, "/nowhere", "")

	m.AuthEvent("login_success")
	w := get(r, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `arrively_http_requests_total{method="GET",route="/rides/:id",status="200"} 2`), body)
	assert.True(t, strings.Contains(body, `arrively_http_requests_total{method="GET",route="unmatched",status="404"} 1`), body)
	assert.True(t, strings.Contains(body, `arrively_auth_events_total{event="login_success"} 1`), body)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.AuthEvent("x") })
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(12)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	now = now.Add(5 * time.Second)
	assert.True(t, l.Allow("1.1.1.1"))

	now = now.Add(time.Hour)
	l.Allow("3.3.3.3")
	assert.NotContains(t, l.clients, "2.2.2.2")
}

func TestIPRateLimiterMiddleware(t *testing.T) {
	l := NewIPRateLimiter(6)
	r := gin.New()
	r.POST("/login", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestDisabledRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("1.1.1.1"))
	}
}
