package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "kinmu", cfg.App.Name)
	assert.Equal(t, 7012, cfg.App.Port)
	assert.True(t, cfg.IsDevelopment())

	assert.Equal(t, 30*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, "bnb", cfg.Scheduler.Backend)
	assert.Equal(t, 1, cfg.Scheduler.Headcount)
	assert.Equal(t, 3, cfg.Scheduler.Window)
	assert.True(t, cfg.Scheduler.Relaxation)
	assert.Equal(t, 4, cfg.Scheduler.Portfolio)
	assert.Equal(t, 150, cfg.Scheduler.MaxRelaxRows)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.RelaxBudget)
	assert.Equal(t, "ja", cfg.Scheduler.WeekdayLocale)

	assert.Equal(t, 6, cfg.Retention.Months)
	assert.Equal(t, []string{"*"}, cfg.API.CORS.Origins)
	assert.Equal(t, "host=localhost port=5432 user=kinmu password=kinmu dbname=kinmu sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCHEDULER_TIMEOUT", "5s")
	t.Setenv("SCHEDULER_HEADCOUNT", "2")
	t.Setenv("SCHEDULER_RELAXATION", "false")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("APP_ENV", EnvProduction)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, 2, cfg.Scheduler.Headcount)
	assert.False(t, cfg.Scheduler.Relaxation)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORS.Origins)
	assert.True(t, cfg.IsProduction())

	engine := cfg.Engine()
	assert.Equal(t, 5*time.Second, engine.Timeout)
	assert.Equal(t, 2, engine.Params.Headcount)
	assert.Equal(t, 1.5, engine.Params.LowerFactor)
	assert.False(t, engine.Solver.Relaxation)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SCHEDULER_WINDOW=4\nSCHEDULER_BACKEND=bnb\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Scheduler.Window)
	assert.Equal(t, "warn", cfg.Log.Level, "环境变量优先于文件")
	assert.Equal(t, "warn", cfg.Logger().Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SCHEDULER_HEADCOUNT", "0")
	t.Setenv("AUTH_ENABLED", "true")

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeValidationFail))

	appErr := errors.From(err)
	assert.Contains(t, appErr.Fields, "SCHEDULER_HEADCOUNT")
	assert.Contains(t, appErr.Fields, "AUTH_JWT_SECRET")
}

func TestLoadRejectsSolveTimeoutAboveAPITimeout(t *testing.T) {
	t.Setenv("SCHEDULER_TIMEOUT", "90s")
	t.Setenv("API_TIMEOUT", "60s")

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, errors.From(err).Fields, "SCHEDULER_TIMEOUT")
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("abc", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
