package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck-io/fleetdeck/internal/app"
	iauth "github.com/fleetdeck-io/fleetdeck/internal/auth"
	testutil "github.com/fleetdeck-io/fleetdeck/internal/database/testutil"
	"github.com/fleetdeck-io/fleetdeck/internal/realtime"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "fleetdeck",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Relay.UpstreamURL = "wss://realtime.example.com/v1/voice"
	cfg.Relay.Secret = "upstream-secret"

	router, err := NewRouter(db, jwtSvc, cfg, sessions, nil, realtime.NewHub(), nil)
	require.NoError(t, err)
	return router
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t)

	// Health and metrics are public.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Dashboard routes require a JWT.
	for _, path := range []string{
		"/api/auth/me",
		"/api/cameras",
		"/api/devices",
		"/api/drivers",
		"/api/baskets",
		"/api/orders",
		"/api/alerts",
	} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}

	// Device-facing camera routes require an API token.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/devices/camera/frame", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The relay rejects plain HTTP before any auth check.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/realtime/voice", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUpgradeRequired, w.Code)

	// Unknown routes fall through to the JSON 404 handler.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/nope", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterRequiresDependencies(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "s"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	_, err = NewRouter(nil, jwtSvc, &app.Config{}, sessions, nil, realtime.NewHub(), nil)
	require.Error(t, err)

	_, err = NewRouter(db, nil, &app.Config{}, sessions, nil, realtime.NewHub(), nil)
	require.Error(t, err)

	_, err = NewRouter(db, jwtSvc, nil, sessions, nil, realtime.NewHub(), nil)
	require.Error(t, err)

	_, err = NewRouter(db, jwtSvc, &app.Config{}, sessions, nil, nil, nil)
	require.Error(t, err)
}
