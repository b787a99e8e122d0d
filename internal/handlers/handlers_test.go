package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/auth"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/config"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/database"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/middleware"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type notification struct {
	tenant   string
	resource string
	action   protocol.Action
	data     any
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *recordingNotifier) Notify(tenantID, resource string, action protocol.Action, data any) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{tenantID, resource, action, data})
	return 1
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

type testEnv struct {
	db       *gorm.DB
	tokens   *auth.TokenService
	notifier *recordingNotifier
	router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	tokens := auth.NewTokenService(config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "financeiro",
		Audience:   "financeiro-clients",
		TokenTTL:   time.Hour,
		CookieName: "financeiro_session",
	})
	notifier := &recordingNotifier{}
	h := New(db, tokens, notifier, false, nil)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)

	protected := api.Group("")
	protected.Use(middleware.SessionAuth(tokens, database.NewTenantDirectory(db)))
	protected.GET("/me", h.Me)
	protected.GET("/users", h.GetUsers)
	protected.POST("/collaborators", h.CreateCollaborator)
	protected.GET("/cost-centers", h.GetCostCenters)
	protected.GET("/cost-centers/:id", h.GetCostCenterByID)
	protected.POST("/cost-centers", h.CreateCostCenter)
	protected.PUT("/cost-centers/:id", h.UpdateCostCenter)
	protected.DELETE("/cost-centers/:id", h.DeleteCostCenter)

	return &testEnv{db: db, tokens: tokens, notifier: notifier, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// register creates an owner and returns its token and id.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email": email, "name": "Owner", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
