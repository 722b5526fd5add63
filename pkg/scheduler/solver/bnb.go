package solver

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
	"github.com/kinmu/kinmu/pkg/scheduler/optimizer"
)

// BackendBranchAndBound 分支定界求解器名称
const BackendBranchAndBound = "bnb"

// BranchAndBound 纯 Go 的 0-1 分支定界求解器
//
// 流程：根节点传播，LP 松弛下界，局部搜索组合找初始解，再做深度优先分支定界。
// 每个候选解都用 System.Check 精确验证。0-1 系统有界，不会返回 StatusUnbounded。
type BranchAndBound struct {
	opts Options
}

// NewBranchAndBound 创建分支定界求解器
func NewBranchAndBound(opts Options) *BranchAndBound {
	return &BranchAndBound{opts: opts}
}

// Name 返回求解器名称
func (b *BranchAndBound) Name() string {
	return BackendBranchAndBound
}

// Solve 求解约束系统；超时或 ctx 取消时返回 StatusTimedOut 且不附带任何赋值
func (b *BranchAndBound) Solve(ctx context.Context, s *constraint.System, timeout time.Duration) *Outcome {
	start := time.Now()
	log := logger.NewSolverLogger(b.Name())

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out := b.solve(ctx, s, log)
	out.Solver = b.Name()
	out.Duration = time.Since(start)
	if out.Status != StatusOptimal {
		out.Values = nil
	}
	log.SolveFinished(out.Status.String(), int(out.Nodes), out.Duration)
	return out
}

func (b *BranchAndBound) solve(ctx context.Context, s *constraint.System, log *logger.EngineLogger) *Outcome {
	if s == nil || s.NumVars() == 0 {
		return &Outcome{Status: StatusUndefined, Message: "约束系统为空"}
	}
	if ctx.Err() != nil {
		return timedOut(0)
	}

	p, bad := newPropagator(s)
	if p == nil {
		return &Outcome{Status: StatusInfeasible, Message: fmt.Sprintf("约束 %s 没有整数解", bad)}
	}
	if !p.propagateAll() {
		return &Outcome{Status: StatusInfeasible, Message: "根节点传播发现冲突"}
	}

	sr := &search{
		s:         s,
		p:         p,
		ctx:       ctx,
		rootBound: p.objectiveLowerBound(s.Objective),
	}
	if value, ok := p.impliedObjective(s.Objective); ok {
		sr.implied = true
		sr.rootBound = value
	}
	log.Logger().Debug().
		Int("free_vars", p.freeCount()).
		Bool("implied_objective", sr.implied).
		Int("root_bound", sr.rootBound).
		Msg("根节点预处理完成")

	if b.opts.Relaxation && p.freeCount() > 0 {
		relCtx, cancel := context.WithTimeout(ctx, relaxBudget(ctx, b.opts))
		rel, err := solveRelaxation(relCtx, s, p, b.opts.MaxRelaxRows)
		cancel()
		switch {
		case err == nil:
			sr.rel = rel
			if lb := ceilBound(rel.bound); lb > sr.rootBound && !sr.implied {
				sr.rootBound = lb
			}
			log.Logger().Debug().
				Int("rows", rel.rows).
				Int("cols", rel.cols).
				Float64("bound", rel.bound).
				Msg("LP 松弛完成")
		case stderrors.Is(err, lp.ErrInfeasible):
			return &Outcome{Status: StatusInfeasible, Message: "LP 松弛无解"}
		case ctx.Err() != nil:
			return timedOut(0)
		default:
			log.Logger().Debug().Err(err).Msg("LP 松弛不可用，改用纯搜索")
		}
	}

	if b.opts.Portfolio > 0 && p.freeCount() > 0 {
		sr.runPortfolio(b.opts)
		if ctx.Err() != nil && !sr.proved() {
			return timedOut(0)
		}
	}

	if !sr.proved() {
		sr.dfs()
	}

	switch {
	case sr.proved():
		return sr.optimal()
	case sr.timedOut || ctx.Err() != nil:
		return timedOut(sr.nodes)
	default:
		return &Outcome{Status: StatusInfeasible, Nodes: sr.nodes, Message: "搜索穷尽，无可行解"}
	}
}

// relaxBudget LP 松弛可用的时间：选项上限与剩余时间四分之一取小
func relaxBudget(ctx context.Context, opts Options) time.Duration {
	budget := opts.RelaxBudget
	if budget <= 0 {
		budget = DefaultOptions().RelaxBudget
	}
	if dl, ok := ctx.Deadline(); ok {
		if quarter := time.Until(dl) / 4; quarter < budget {
			budget = quarter
		}
	}
	return budget
}

func timedOut(nodes int64) *Outcome {
	return &Outcome{Status: StatusTimedOut, Nodes: nodes, Message: "求解超时"}
}

// search 深度优先分支定界的状态
type search struct {
	s            *constraint.System
	p            *propagator
	ctx          context.Context
	rel          *relaxation
	hint         []int
	implied      bool
	rootBound    int
	incumbent    []int
	incumbentObj int
	exhausted    bool
	nodes        int64
	timedOut     bool
}

// offer 验证并记录候选解
func (sr *search) offer(values []int) bool {
	if violations := sr.s.Check(values); len(violations) > 0 {
		return false
	}
	obj := int(math.Round(sr.s.ObjectiveValue(values)))
	if sr.incumbent == nil || obj < sr.incumbentObj {
		sr.incumbent = append([]int(nil), values...)
		sr.incumbentObj = obj
	}
	return true
}

// proved 当前解已被下界证明为最优
func (sr *search) proved() bool {
	return sr.incumbent != nil && (sr.implied || sr.exhausted || sr.incumbentObj <= sr.rootBound)
}

func (sr *search) optimal() *Outcome {
	values := make([]Value, len(sr.incumbent))
	for i, b := range sr.incumbent {
		values[i] = ValueOf(b)
	}
	return &Outcome{
		Status:    StatusOptimal,
		Values:    values,
		Objective: float64(sr.incumbentObj),
		Bound:     float64(sr.rootBound),
		Nodes:     sr.nodes,
		Message:   fmt.Sprintf("目标值 %d，下界 %d", sr.incumbentObj, sr.rootBound),
	}
}

// runPortfolio 用剩余时间的三分之一跑局部搜索
func (sr *search) runPortfolio(opts Options) {
	budget := 5 * time.Second
	if dl, ok := sr.ctx.Deadline(); ok {
		budget = time.Until(dl) / 3
	}
	ctx, cancel := context.WithTimeout(sr.ctx, budget)
	defer cancel()

	cfg := optimizer.DefaultConfig()
	cfg.Workers = opts.Portfolio
	cfg.Seed = opts.Seed
	prob := &optimizer.Problem{System: sr.s, Fixed: sr.p.domain()}
	if sr.rel != nil {
		prob.Guide = sr.rel.x
	}

	sol := optimizer.NewParallelOptimizer(cfg).Run(ctx, prob)
	if sol == nil {
		return
	}
	sr.hint = sol.Values
	if sol.Feasible() {
		sr.offer(sol.Values)
	}
}

// prefer 分支时先尝试的取值
func (sr *search) prefer(v int) int8 {
	if sr.hint != nil {
		return int8(sr.hint[v])
	}
	if g := sr.rel.guide(v); g != free {
		return g
	}
	return 0
}

// dfs 返回 true 表示应停止搜索
func (sr *search) dfs() bool {
	stop := sr.branch()
	if !stop && !sr.timedOut {
		sr.exhausted = true
	}
	return stop
}

func (sr *search) branch() bool {
	sr.nodes++
	if sr.nodes == 1 || sr.nodes&63 == 0 {
		if sr.ctx.Err() != nil {
			sr.timedOut = true
			return true
		}
	}
	if sr.incumbent != nil && !sr.implied && sr.p.objectiveLowerBound(sr.s.Objective) >= sr.incumbentObj {
		return false
	}

	v := sr.p.pickVar()
	if v < 0 {
		values, _ := sr.p.values()
		return sr.offer(values) && sr.proved()
	}

	first := sr.prefer(v)
	for _, val := range [2]int8{first, 1 - first} {
		mark := sr.p.mark()
		if sr.p.fix(v, val) {
			if sr.branch() {
				sr.p.undo(mark)
				return true
			}
		}
		sr.p.undo(mark)
	}
	return false
}
