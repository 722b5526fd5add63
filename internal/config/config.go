// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/scheduler"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
	"github.com/kinmu/kinmu/pkg/scheduler/solver"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Session   SessionConfig   `yaml:"session"`
	Retention RetentionConfig `yaml:"retention"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name"`
	Env     string `yaml:"env"`
	Port    int    `yaml:"port"`
	Version string `yaml:"version"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"` // 每分钟每个客户端的请求数
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// AuthConfig 鉴权配置
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// SchedulerConfig 排班引擎配置
type SchedulerConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	Backend       string        `yaml:"backend"`
	Headcount     int           `yaml:"headcount"`
	Window        int           `yaml:"window"`
	Relaxation    bool          `yaml:"relaxation"`
	Portfolio     int           `yaml:"portfolio"`
	MaxRelaxRows  int           `yaml:"max_relax_rows"`
	RelaxBudget   time.Duration `yaml:"relax_budget"`
	WeekdayLocale string        `yaml:"weekday_locale"`
}

// SessionConfig 对话帧存储配置
type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// RetentionConfig 偏好表保留窗口
type RetentionConfig struct {
	Months   int           `yaml:"months"`
	Interval time.Duration `yaml:"interval"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load 从 .env 与环境变量加载配置
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(".env")
}

// LoadFile 从指定 env 文件与环境变量加载配置，环境变量优先，文件不存在时忽略
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("APP_NAME"),
			Env:     v.GetString("APP_ENV"),
			Port:    v.GetInt("APP_PORT"),
			Version: v.GetString("APP_VERSION"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DB_ENABLED"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Name:            v.GetString("DB_NAME"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		},
		API: APIConfig{
			RateLimit: v.GetInt("API_RATE_LIMIT"),
			Timeout:   parseDuration(v.GetString("API_TIMEOUT"), 60*time.Second),
			CORS: CORSConfig{
				Enabled: v.GetBool("API_CORS_ENABLED"),
				Origins: splitAndTrim(v.GetString("API_CORS_ORIGINS")),
			},
		},
		Auth: AuthConfig{
			Enabled:   v.GetBool("AUTH_ENABLED"),
			JWTSecret: v.GetString("AUTH_JWT_SECRET"),
			Issuer:    v.GetString("AUTH_ISSUER"),
		},
		Scheduler: SchedulerConfig{
			Timeout:       parseDuration(v.GetString("SCHEDULER_TIMEOUT"), 30*time.Second),
			Backend:       v.GetString("SCHEDULER_BACKEND"),
			Headcount:     v.GetInt("SCHEDULER_HEADCOUNT"),
			Window:        v.GetInt("SCHEDULER_WINDOW"),
			Relaxation:    v.GetBool("SCHEDULER_RELAXATION"),
			Portfolio:     v.GetInt("SCHEDULER_PORTFOLIO"),
			MaxRelaxRows:  v.GetInt("SCHEDULER_MAX_RELAX_ROWS"),
			RelaxBudget:   parseDuration(v.GetString("SCHEDULER_RELAX_BUDGET"), 500*time.Millisecond),
			WeekdayLocale: v.GetString("SCHEDULER_WEEKDAY_LOCALE"),
		},
		Session: SessionConfig{
			TTL:       parseDuration(v.GetString("SESSION_TTL"), 24*time.Hour),
			KeyPrefix: v.GetString("SESSION_KEY_PREFIX"),
		},
		Retention: RetentionConfig{
			Months:   v.GetInt("RETENTION_MONTHS"),
			Interval: parseDuration(v.GetString("RETENTION_INTERVAL"), 24*time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "kinmu")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_PORT", 7012)
	v.SetDefault("APP_VERSION", "0.1.0")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "kinmu")
	v.SetDefault("DB_USER", "kinmu")
	v.SetDefault("DB_PASSWORD", "kinmu")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)

	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("API_TIMEOUT", "60s")
	v.SetDefault("API_CORS_ENABLED", true)
	v.SetDefault("API_CORS_ORIGINS", "*")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_ISSUER", "kinmu")

	v.SetDefault("SCHEDULER_TIMEOUT", "30s")
	v.SetDefault("SCHEDULER_BACKEND", solver.BackendBranchAndBound)
	v.SetDefault("SCHEDULER_HEADCOUNT", 1)
	v.SetDefault("SCHEDULER_WINDOW", 3)
	v.SetDefault("SCHEDULER_RELAXATION", true)
	v.SetDefault("SCHEDULER_PORTFOLIO", 4)
	v.SetDefault("SCHEDULER_MAX_RELAX_ROWS", 150)
	v.SetDefault("SCHEDULER_RELAX_BUDGET", "500ms")
	v.SetDefault("SCHEDULER_WEEKDAY_LOCALE", "ja")

	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_KEY_PREFIX", "kinmu:session:")

	v.SetDefault("RETENTION_MONTHS", 6)
	v.SetDefault("RETENTION_INTERVAL", "24h")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	ve := &errors.ValidationErrors{}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		ve.Add("APP_PORT", fmt.Sprintf("端口超出范围: %d", c.App.Port))
	}
	if c.Scheduler.Timeout <= 0 {
		ve.Add("SCHEDULER_TIMEOUT", "超时时间必须为正数")
	}
	if c.API.Timeout > 0 && c.Scheduler.Timeout > c.API.Timeout {
		ve.Add("SCHEDULER_TIMEOUT", fmt.Sprintf("不能超过 API_TIMEOUT (%s)", c.API.Timeout))
	}
	if c.Scheduler.Headcount < 1 {
		ve.Add("SCHEDULER_HEADCOUNT", "每日人数至少为 1")
	}
	if c.Scheduler.Window < 1 {
		ve.Add("SCHEDULER_WINDOW", "窗口长度至少为 1")
	}
	if c.Scheduler.Portfolio < 0 {
		ve.Add("SCHEDULER_PORTFOLIO", "并行数不能为负数")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		ve.Add("AUTH_JWT_SECRET", "启用鉴权时必须设置密钥")
	}
	if c.Retention.Months < 0 {
		ve.Add("RETENTION_MONTHS", "保留月数不能为负数")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		ve.Add("METRICS_PATH", "路径必须以 / 开头")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// Engine 转换为排班引擎配置
func (c *Config) Engine() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Backend = c.Scheduler.Backend
	cfg.Timeout = c.Scheduler.Timeout
	cfg.Locale = c.Scheduler.WeekdayLocale
	cfg.Solver = solver.Options{
		Relaxation:   c.Scheduler.Relaxation,
		Portfolio:    c.Scheduler.Portfolio,
		MaxRelaxRows: c.Scheduler.MaxRelaxRows,
		RelaxBudget:  c.Scheduler.RelaxBudget,
	}
	params := constraint.DefaultParams()
	params.Headcount = c.Scheduler.Headcount
	params.Window = c.Scheduler.Window
	cfg.Params = params
	return cfg
}

// Logger 转换为日志配置
func (c *Config) Logger() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == EnvTest
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
