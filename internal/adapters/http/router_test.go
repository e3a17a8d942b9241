package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/mocks"
	"github.com/dkeye/Chat/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	o := &orch.Orchestrator{
		Sessions: app.NewSessions(),
		Rooms:    core.NewRegistry(),
		Store:    mocks.NewMockMessageStore(gomock.NewController(t)),
		Policy:   app.DisconnectPolicy{},
		Metrics:  metrics,
	}
	cfg := &config.Config{
		Mode:        "test",
		Secret:      "cookie-secret",
		PingPeriod:  time.Second,
		IdleTimeout: 2 * time.Second,
		WriteWait:   time.Second,
		QueueSize:   4,
	}
	jwt := auth.NewJWTManager(config.JWTConfig{Secret: "s", Issuer: "chat"})
	return SetupRouter(context.Background(), cfg, Deps{Orch: o, Auth: jwt, Gatherer: reg}), metrics
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	req := require.New(t)
	r, metrics := newRouter(t)
	metrics.Persisted()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"ok","sessions":0}`, w.Body.String())
	req.NotEmpty(w.Result().Cookies(), "client token cookie")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "chat_messages_persisted_total 1")
}

func TestRouter_ChatRejectsBadTokenBeforeUpgrade(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws/chat?token=nope", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Rooms(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}
