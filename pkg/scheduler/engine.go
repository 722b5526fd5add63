// Package scheduler 排班引擎：解析月份、绑定偏好、构建约束、求解并格式化
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/model"
	"github.com/kinmu/kinmu/pkg/preference"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
	"github.com/kinmu/kinmu/pkg/scheduler/format"
	"github.com/kinmu/kinmu/pkg/scheduler/solver"
)

// 流水线阶段
const (
	StageResolve = "resolve"
	StageBind    = "bind"
	StageBuild   = "build"
	StageSolve   = "solve"
	StageFormat  = "format"
)

// Recorder 引擎指标记录接口
type Recorder interface {
	ObserveStage(stage string, duration time.Duration)
	ObserveSolve(backend, status string, nodes int64, duration time.Duration)
	ObserveSchedule(success bool, duration time.Duration)
}

// Request 排班请求
type Request struct {
	Employees   model.Roster            `json:"employees" yaml:"employees" toml:"employees"`
	Month       calendar.MonthSelector  `json:"month" yaml:"month" toml:"month"`
	Pins        []model.Pin             `json:"pins,omitempty" yaml:"pins" toml:"pins"`
	Preferences []model.PreferenceEntry `json:"preferences,omitempty" yaml:"preferences" toml:"preferences"`
	Timeout     time.Duration           `json:"timeout,omitempty" yaml:"timeout" toml:"timeout"`
	Rules       *constraint.Params      `json:"rules,omitempty" yaml:"rules" toml:"rules"`
}

// Config 引擎配置
type Config struct {
	Backend string            `json:"backend"`
	Timeout time.Duration     `json:"timeout"`
	Solver  solver.Options    `json:"solver"`
	Params  constraint.Params `json:"params"`
	Locale  string            `json:"locale"`
}

// DefaultConfig 默认引擎配置
func DefaultConfig() Config {
	return Config{
		Backend: solver.BackendBranchAndBound,
		Timeout: 30 * time.Second,
		Solver:  solver.DefaultOptions(),
		Params:  constraint.DefaultParams(),
		Locale:  "ja",
	}
}

// Engine 排班引擎；无状态，可并发使用
type Engine struct {
	config    Config
	resolver  *calendar.Resolver
	binder    *preference.Binder
	builder   *constraint.Builder
	solver    solver.Solver
	formatter *format.Formatter
	recorder  Recorder
}

// Option 引擎选项
type Option func(*Engine)

// WithResolver 替换月份解析器
func WithResolver(r *calendar.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithBuilder 替换约束构建器
func WithBuilder(b *constraint.Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithSolver 直接指定求解器，忽略 Config.Backend
func WithSolver(s solver.Solver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New 创建排班引擎；未知求解器返回 SOLVER_UNAVAILABLE
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		config:    cfg,
		resolver:  calendar.NewResolver(),
		binder:    preference.NewBinder(),
		builder:   constraint.DefaultBuilder(),
		formatter: format.NewFormatter(format.WithLocale(cfg.Locale)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.solver == nil {
		s, err := solver.New(cfg.Backend, cfg.Solver)
		if err != nil {
			return nil, err
		}
		e.solver = s
	}
	return e, nil
}

// Config 返回引擎配置
func (e *Engine) Config() Config {
	return e.config
}

// Schedule 生成排班表；任何失败都以错误返回，不附带部分结果
func (e *Engine) Schedule(ctx context.Context, req Request) (*model.Schedule, error) {
	start := time.Now()
	id := uuid.New()
	log := logger.NewEngineLogger(ctx)

	sched, err := e.run(ctx, id, req, log)
	e.observeSchedule(err == nil, time.Since(start))
	if err != nil {
		log.ScheduleFailed(id.String(), err)
		return nil, err
	}
	log.ScheduleComplete(id.String(), time.Since(start), sched.Objective)
	return sched, nil
}

func (e *Engine) run(ctx context.Context, id uuid.UUID, req Request, log *logger.EngineLogger) (*model.Schedule, error) {
	if err := validateRoster(req.Employees); err != nil {
		return nil, err
	}

	t := time.Now()
	month, err := e.resolver.Resolve(req.Month)
	if err != nil {
		return nil, err
	}
	e.observeStage(StageResolve, t)
	log.StartSchedule(id.String(), len(req.Employees), month.Days)

	t = time.Now()
	bound, err := e.binder.Bind(month, req.Employees, req.Preferences)
	if err != nil {
		return nil, err
	}
	pins := make([]model.Pin, 0, len(req.Pins)+len(bound))
	pins = append(pins, req.Pins...)
	pins = append(pins, bound...)
	e.observeStage(StageBind, t)
	log.PinsBound(len(req.Preferences), len(pins))

	params := e.config.Params
	if req.Rules != nil {
		params = *req.Rules
	}
	t = time.Now()
	sys, err := e.builder.Build(constraint.Input{
		Roster: req.Employees,
		Days:   month.Days,
		Pins:   pins,
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	e.observeStage(StageBuild, t)
	log.SystemBuilt(sys.NumVars(), len(sys.Constraints), sys.RestRule)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.config.Timeout
	}
	t = time.Now()
	out := e.solver.Solve(ctx, sys, timeout)
	e.observeStage(StageSolve, t)
	if e.recorder != nil {
		e.recorder.ObserveSolve(e.solver.Name(), out.Status.String(), out.Nodes, out.Duration)
	}

	t = time.Now()
	sched, err := e.formatter.Format(month, sys, out)
	if err != nil {
		return nil, err
	}
	e.observeStage(StageFormat, t)

	sched.ID = id
	return sched, nil
}

// validateRoster 在构建约束之前拒绝空名单、空白或重复的员工
func validateRoster(roster model.Roster) error {
	if len(roster) == 0 {
		return errors.InvalidInput("employees", "员工列表不能为空")
	}
	if idx := roster.Blank(); len(idx) > 0 {
		return errors.InvalidInput("employees", fmt.Sprintf("第 %d 位员工标识为空", idx[0]+1))
	}
	if dups := roster.Duplicates(); len(dups) > 0 {
		return errors.InvalidInput("employees", fmt.Sprintf("员工 %s 重复出现", dups[0]))
	}
	return nil
}

func (e *Engine) observeStage(stage string, since time.Time) {
	if e.recorder != nil {
		e.recorder.ObserveStage(stage, time.Since(since))
	}
}

func (e *Engine) observeSchedule(success bool, d time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveSchedule(success, d)
	}
}
