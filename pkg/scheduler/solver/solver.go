// Package solver 求解 0-1 线性约束系统
package solver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

// Status 求解状态
type Status int

const (
	StatusUndefined Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusTimedOut
)

// String 返回状态名称
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "undefined"
	}
}

// MarshalText 以名称序列化
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Value 变量取值，未求出的变量保持 Unresolved
type Value int8

const (
	Unresolved Value = iota
	Zero
	One
)

// String 返回取值名称
func (v Value) String() string {
	switch v {
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return "unresolved"
	}
}

// Int 返回 0/1；未求出时 ok=false
func (v Value) Int() (int, bool) {
	switch v {
	case Zero:
		return 0, true
	case One:
		return 1, true
	}
	return 0, false
}

// ValueOf 把 0/1 转为 Value，其他值视为未求出
func ValueOf(b int) Value {
	switch b {
	case 0:
		return Zero
	case 1:
		return One
	}
	return Unresolved
}

// Outcome 求解结果
type Outcome struct {
	Status    Status        `json:"status"`
	Values    []Value       `json:"values,omitempty"`
	Objective float64       `json:"objective"`
	Bound     float64       `json:"bound"`
	Nodes     int64         `json:"nodes"`
	Duration  time.Duration `json:"duration"`
	Solver    string        `json:"solver"`
	Message   string        `json:"message,omitempty"`
}

// Ints 返回完整的 0/1 赋值；存在未求出的变量时 ok=false
func (o *Outcome) Ints() ([]int, bool) {
	if o == nil || len(o.Values) == 0 {
		return nil, false
	}
	out := make([]int, len(o.Values))
	for i, v := range o.Values {
		b, ok := v.Int()
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// Err 把非最优状态转为业务错误；最优时返回 nil
func (o *Outcome) Err() error {
	if o == nil {
		return errors.SolverUnavailable("求解器没有返回结果")
	}
	switch o.Status {
	case StatusOptimal:
		return nil
	case StatusInfeasible:
		return errors.NoFeasibleSolution(o.Message)
	case StatusUnbounded:
		return errors.New(errors.CodeUnbounded, "目标函数无界").WithDetails(o.Message)
	case StatusTimedOut:
		return errors.Timeout(o.Message)
	default:
		return errors.SolverUnavailable(o.Message)
	}
}

// Solver 求解器接口
type Solver interface {
	// Solve 在 timeout 内求解；timeout <= 0 时只受 ctx 约束
	Solve(ctx context.Context, s *constraint.System, timeout time.Duration) *Outcome

	// Name 返回求解器名称
	Name() string
}

// Options 求解器选项
type Options struct {
	Relaxation   bool          `json:"relaxation"`     // 是否求解根节点 LP 松弛
	Portfolio    int           `json:"portfolio"`      // 局部搜索并行数，0 表示关闭
	Seed         int64         `json:"seed"`           // 局部搜索随机种子，0 表示按时间
	MaxRelaxRows int           `json:"max_relax_rows"` // LP 松弛的最大行数，0 表示不限
	RelaxBudget  time.Duration `json:"relax_budget"`   // LP 松弛时间上限，另不超过剩余时间的四分之一
}

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		Relaxation:   true,
		Portfolio:    4,
		MaxRelaxRows: 150,
		RelaxBudget:  500 * time.Millisecond,
	}
}

// Factory 按选项创建求解器
type Factory func(opts Options) Solver

// Registry 求解器注册表
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册求解器，同名覆盖
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New 按名称创建求解器；名称未注册时返回 SOLVER_UNAVAILABLE
func (r *Registry) New(name string, opts Options) (Solver, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.SolverUnavailable("未知的求解器: " + name).WithField("backend", name)
	}
	return f(opts), nil
}

// Names 返回已注册的求解器名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(BackendBranchAndBound, func(opts Options) Solver { return NewBranchAndBound(opts) })
	return r
}()

// DefaultRegistry 返回内置注册表
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// New 从内置注册表创建求解器
func New(name string, opts Options) (Solver, error) {
	return defaultRegistry.New(name, opts)
}
