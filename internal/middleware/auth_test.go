package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/auth"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type tenantFunc func(ctx context.Context, userID string) (string, error)

func (f tenantFunc) ResolveTenant(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

func testTokens() *auth.TokenService {
	return auth.NewTokenService(config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "financeiro",
		Audience:   "financeiro-clients",
		TokenTTL:   time.Hour,
		CookieName: "financeiro_session",
	})
}

func protectedRouter(tokens *auth.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tenants := tenantFunc(func(_ context.Context, userID string) (string, error) {
		if userID == "user-1" {
			return "tenant-1", nil
		}
		return "", errors.New("unknown user")
	})
	r := gin.New()
	r.Use(SessionAuth(tokens, tenants))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(UserIDKey), "tenant": c.GetString(TenantIDKey)})
	})
	return r
}

func TestSessionAuth_Success(t *testing.T) {
	tokens := testTokens()
	r := protectedRouter(tokens)

	token, err := tokens.GenerateToken("user-1", "alice@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"user":"user-1","tenant":"tenant-1"}`, w.Body.String())
}

func TestSessionAuth_Cookie(t *testing.T) {
	tokens := testTokens()
	r := protectedRouter(tokens)

	token, err := tokens.GenerateToken("user-1", "alice@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(tokens.SessionCookie(token, false))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionAuth_MissingHeader(t *testing.T) {
	r := protectedRouter(testTokens())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "required")
}

func TestSessionAuth_UnknownTenant(t *testing.T) {
	tokens := testTokens()
	r := protectedRouter(tokens)

	token, err := tokens.GenerateToken("user-2", "bob@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, "/ok", entries[0].ContextMap()["path"])
	require.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
