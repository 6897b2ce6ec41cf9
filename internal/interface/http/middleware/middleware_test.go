package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/bookcatalog/internal/infrastructure/config"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
	"github.com/xiebiao/bookcatalog/pkg/jwt"
	"github.com/xiebiao/bookcatalog/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticBlacklist map[string]bool

func (b staticBlacklist) IsInBlacklist(_ context.Context, id string) (bool, error) {
	return b[id], nil
}

func serve(r *gin.Engine, token string) (int, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestRequireAuth(t *testing.T) {
	m := jwt.NewManager("secret", time.Hour, time.Hour)
	pair, err := m.GenerateToken(jwt.Identity{UserID: 9, Email: "a@example.com"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", NewAuthMiddleware(m, staticBlacklist{}).RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": GetUserID(c), "staff": IsStaff(c)})
	})

	_, body := serve(r, "")
	assert.EqualValues(t, apperrors.ErrCodeUnauthorized, body["code"])

	_, body = serve(r, "Token "+pair.AccessToken)
	assert.EqualValues(t, apperrors.ErrCodeInvalidToken, body["code"])

	// Refresh Token不能当作Access Token使用
	_, body = serve(r, "Bearer "+pair.RefreshToken)
	assert.NotNil(t, body["code"])
	assert.Nil(t, body["user"])

	_, body = serve(r, "Bearer "+pair.AccessToken)
	assert.EqualValues(t, 9, body["user"])
	assert.Equal(t, false, body["staff"])
}

func TestRequireAuth_Blacklisted(t *testing.T) {
	m := jwt.NewManager("secret", time.Hour, time.Hour)
	pair, err := m.GenerateToken(jwt.Identity{UserID: 9})
	require.NoError(t, err)
	claims, err := m.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", NewAuthMiddleware(m, staticBlacklist{claims.ID: true}).RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": GetUserID(c)})
	})

	_, body := serve(r, "Bearer "+pair.AccessToken)
	assert.EqualValues(t, apperrors.ErrCodeTokenExpired, body["code"])
}

func TestRequireStaff(t *testing.T) {
	m := jwt.NewManager("secret", time.Hour, time.Hour)
	auth := NewAuthMiddleware(m, staticBlacklist{})
	staff, _ := m.GenerateToken(jwt.Identity{UserID: 1, IsStaff: true})
	user, _ := m.GenerateToken(jwt.Identity{UserID: 2})

	r := gin.New()
	r.GET("/", auth.RequireAuth(), RequireStaff(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	_, body := serve(r, "Bearer "+user.AccessToken)
	assert.EqualValues(t, apperrors.ErrCodeForbidden, body["code"])

	_, body = serve(r, "Bearer "+staff.AccessToken)
	assert.Equal(t, true, body["ok"])
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	// 不同IP互不影响
	assert.True(t, l.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("1.1.1.1"))

	assert.True(t, NewIPRateLimiter(0, 0).Allow("1.1.1.1"))
}

func TestIPRateLimiter_EvictsOnlyIdleVisitors(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.Len(t, l.limiters, 1)

	now = now.Add(11 * time.Minute)
	assert.True(t, l.Allow("2.2.2.2"))
	assert.False(t, l.Allow("2.2.2.2"))
	assert.Len(t, l.limiters, 1)
	assert.Contains(t, l.limiters, "2.2.2.2")
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(logger.Nop()))
	r.GET("/", func(c *gin.Context) {
		assert.NotNil(t, logger.FromContext(c.Request.Context(), nil))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{
		Enabled:          true,
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "PUT"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "GET, PUT", w.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
