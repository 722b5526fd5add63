package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/internal/config"
	"github.com/kinmu/kinmu/internal/metrics"
	"github.com/kinmu/kinmu/internal/middleware"
	"github.com/kinmu/kinmu/pkg/scheduler"
)

func testRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_JWT_SECRET", "router-secret")
	cfg, err := config.LoadFile("testdata/missing.env")
	require.NoError(t, err)

	m := metrics.New()
	engine, err := scheduler.New(cfg.Engine(), scheduler.WithRecorder(m))
	require.NoError(t, err)

	return newRouter(routerDeps{
		cfg:     cfg,
		engine:  engine,
		metrics: m,
		limiter: middleware.NewRateLimiter(cfg.API.RateLimit, time.Minute),
		version: "test",
	}), cfg
}

func serve(h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicEndpoints(t *testing.T) {
	h, _ := testRouter(t)

	rec := serve(h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(h, http.MethodGet, "/version", "", "")
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestRouterRequiresToken(t *testing.T) {
	h, cfg := testRouter(t)

	rec := serve(h, http.MethodPost, "/api/v1/schedule/generate", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := middleware.IssueToken(middleware.AuthConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
	}, "u1", time.Hour)
	require.NoError(t, err)

	rec = serve(h, http.MethodPost, "/api/v1/schedule/generate", token, `{"employees": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "通过认证后进入参数校验")

	// 求解时间不能超过 API_TIMEOUT，否则写超时会先于排班结束
	rec = serve(h, http.MethodPost, "/api/v1/schedule/generate", token,
		`{"employees": ["A", "B"], "month": {"kind": "next_month"}, "timeout_seconds": 120}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "timeout_seconds")

	for _, path := range []string{"/api/v1/schedule/check", "/api/v1/schedule/compare", "/api/v1/schedule/validate/xlsx"} {
		rec = serve(h, http.MethodPost, path, token, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec = serve(h, http.MethodGet, "/api/v1/schedule/rules", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"max_consecutive"`)

	// 未启用 Redis 与数据库时不注册对应路由
	rec = serve(h, http.MethodPost, "/api/v1/sessions", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(h, http.MethodGet, "/api/v1/preferences?year=2026&month=11", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="POST /api/v1/schedule/generate"`)
}
