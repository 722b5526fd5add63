package main

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/kinmu/kinmu/internal/config"
	"github.com/kinmu/kinmu/internal/database"
	"github.com/kinmu/kinmu/internal/handler"
	"github.com/kinmu/kinmu/internal/metrics"
	"github.com/kinmu/kinmu/internal/middleware"
	"github.com/kinmu/kinmu/internal/session"
)

type routerDeps struct {
	cfg         *config.Config
	engine      handler.Scheduler
	metrics     *metrics.Metrics
	limiter     *middleware.RateLimiter
	db          *database.DB
	redis       *redis.Client
	sessions    *session.Store
	preferences handler.PreferenceStore

	version, build, commit string
}

// newRouter 注册路由并套上中间件
func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	// 系统端点
	system := &handler.SystemHandler{
		Version:   d.version,
		BuildTime: d.build,
		GitCommit: d.commit,
		Checks:    make(map[string]func(*http.Request) error),
	}
	if d.db != nil {
		system.Checks["database"] = func(r *http.Request) error { return d.db.Health(r.Context()) }
	}
	if d.redis != nil {
		system.Checks["redis"] = func(r *http.Request) error { return d.redis.Ping(r.Context()).Err() }
	}
	mux.HandleFunc("GET /health", system.Health)
	mux.HandleFunc("GET /version", system.VersionInfo)
	if d.cfg.Metrics.Enabled {
		mux.Handle("GET "+d.cfg.Metrics.Path, d.metrics.Handler())
	}

	// 排班
	schedule := handler.NewScheduleHandler(d.engine, d.metrics).WithMaxTimeout(d.cfg.API.Timeout)
	mux.HandleFunc("POST /api/v1/schedule/generate", schedule.Generate)
	mux.HandleFunc("POST /api/v1/schedule/validate", schedule.Validate)
	mux.HandleFunc("POST /api/v1/schedule/validate/xlsx", schedule.ValidateXLSX)
	mux.HandleFunc("POST /api/v1/schedule/check", schedule.CheckChange)
	mux.HandleFunc("POST /api/v1/schedule/compare", schedule.Compare)
	mux.HandleFunc("POST /api/v1/schedule/export", schedule.Export)
	mux.HandleFunc("GET /api/v1/schedule/rules", schedule.Rules)

	// 对话帧
	if d.sessions != nil {
		sessions := handler.NewSessionHandler(d.sessions, schedule)
		mux.HandleFunc("POST /api/v1/sessions", sessions.Start)
		mux.HandleFunc("GET /api/v1/sessions/{id}", sessions.Get)
		mux.HandleFunc("DELETE /api/v1/sessions/{id}", sessions.Delete)
		mux.HandleFunc("PUT /api/v1/sessions/{id}/month", sessions.SetMonth)
		mux.HandleFunc("POST /api/v1/sessions/{id}/hopes", sessions.AddHope)
		mux.HandleFunc("DELETE /api/v1/sessions/{id}/workers/{worker}", sessions.RemoveWorker)
		mux.HandleFunc("POST /api/v1/sessions/{id}/reset", sessions.Reset)
		mux.HandleFunc("POST /api/v1/sessions/{id}/schedule", sessions.Schedule)
	}

	// 偏好表
	if d.preferences != nil {
		prefs := handler.NewPreferenceHandler(d.preferences, schedule, d.cfg.Retention.Months)
		mux.HandleFunc("PUT /api/v1/preferences", prefs.Upsert)
		mux.HandleFunc("GET /api/v1/preferences", prefs.List)
		mux.HandleFunc("DELETE /api/v1/preferences/{employee}", prefs.Delete)
		mux.HandleFunc("POST /api/v1/preferences/purge", prefs.Purge)
		mux.HandleFunc("POST /api/v1/preferences/schedule", prefs.Schedule)
	}

	// 中间件执行顺序：requestID -> logging -> recovery -> security -> cors -> rateLimit -> auth -> metrics -> handler
	mws := []middleware.Middleware{
		middleware.RequestID,
		middleware.Logging,
		middleware.Recovery,
		middleware.SecurityHeaders,
	}
	if d.cfg.API.CORS.Enabled {
		mws = append(mws, middleware.CORS(d.cfg.API.CORS.Origins))
	}
	if d.limiter != nil {
		mws = append(mws, middleware.RateLimit(d.limiter))
	}
	if d.cfg.Auth.Enabled {
		skip := []string{"/health", "/version"}
		if d.cfg.Metrics.Enabled {
			skip = append(skip, d.cfg.Metrics.Path)
		}
		mws = append(mws, middleware.Auth(middleware.AuthConfig{
			Secret:    []byte(d.cfg.Auth.JWTSecret),
			Issuer:    d.cfg.Auth.Issuer,
			SkipPaths: skip,
		}))
	}
	mws = append(mws, middleware.Metrics(d.metrics))

	return middleware.Chain(mux, mws...)
}
