package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EngineLogger 排班引擎专用日志器，按流水线阶段输出事件
type EngineLogger struct {
	base *zerolog.Logger
}

// NewEngineLogger 创建排班引擎日志器
func NewEngineLogger(ctx context.Context) *EngineLogger {
	l := WithContext(ctx).With().Str("component", "engine").Logger()
	return &EngineLogger{base: &l}
}

// NewSolverLogger 创建求解器日志器
func NewSolverLogger(backend string) *EngineLogger {
	l := Get().With().Str("component", "solver").Str("backend", backend).Logger()
	return &EngineLogger{base: &l}
}

// Logger 返回底层 zerolog 日志器
func (l *EngineLogger) Logger() *zerolog.Logger {
	return l.base
}

// StartSchedule 记录排班开始
func (l *EngineLogger) StartSchedule(scheduleID string, employees, days int) {
	l.base.Info().
		Str("schedule_id", scheduleID).
		Int("employees", employees).
		Int("days", days).
		Msg("开始生成排班")
}

// PinsBound 记录偏好绑定结果
func (l *EngineLogger) PinsBound(entries, pins int) {
	l.base.Debug().
		Int("entries", entries).
		Int("pins", pins).
		Msg("偏好已展开为固定约束")
}

// SystemBuilt 记录约束系统规模
func (l *EngineLogger) SystemBuilt(vars, constraints int, restRule bool) {
	l.base.Debug().
		Int("vars", vars).
		Int("constraints", constraints).
		Bool("rest_rule", restRule).
		Msg("约束系统构建完成")
}

// SolveFinished 记录求解结束
func (l *EngineLogger) SolveFinished(status string, nodes int, duration time.Duration) {
	l.base.Info().
		Str("status", status).
		Int("nodes", nodes).
		Dur("duration", duration).
		Msg("求解结束")
}

// ScheduleComplete 记录排班完成
func (l *EngineLogger) ScheduleComplete(scheduleID string, duration time.Duration, objective float64) {
	l.base.Info().
		Str("schedule_id", scheduleID).
		Dur("duration", duration).
		Float64("objective", objective).
		Msg("排班生成完成")
}

// ScheduleFailed 记录排班失败
func (l *EngineLogger) ScheduleFailed(scheduleID string, err error) {
	l.base.Warn().
		Str("schedule_id", scheduleID).
		Err(err).
		Msg("排班生成失败")
}
