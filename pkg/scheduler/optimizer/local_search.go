// Package optimizer 提供 0-1 约束系统的局部搜索
package optimizer

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

// Config 局部搜索配置
type Config struct {
	MaxIterations    int     `json:"max_iterations"`    // 单次搜索最大迭代次数
	InitialTemp      float64 `json:"initial_temp"`      // 模拟退火初始温度
	CoolingRate      float64 `json:"cooling_rate"`      // 冷却速率
	TabuSize         int     `json:"tabu_size"`         // 禁忌表大小
	NeighborhoodSize int     `json:"neighborhood_size"` // 每次迭代评估的候选移动上限
	Workers          int     `json:"workers"`           // 并行重启数
	PlateauThreshold int     `json:"plateau_threshold"` // 无改进多少次后重启
	Seed             int64   `json:"seed"`              // 随机种子，0 表示按时间
}

// DefaultConfig 默认局部搜索配置
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:    200000,
		InitialTemp:      2.0,
		CoolingRate:      0.9995,
		TabuSize:         64,
		NeighborhoodSize: 48,
		Workers:          4,
		PlateauThreshold: 2000,
	}
}

// Problem 局部搜索的输入
type Problem struct {
	System *constraint.System
	Fixed  []int8    // -1 表示自由，0/1 表示已固定
	Guide  []float64 // 可选，LP 松弛解
}

// Solution 搜索结果；Violation 为 0 时是可行解
type Solution struct {
	Values     []int `json:"values"`
	Violation  int   `json:"violation"`
	Iterations int   `json:"iterations"`
}

// Feasible 是否满足全部约束
func (s *Solution) Feasible() bool {
	return s != nil && s.Violation == 0
}

// Clone 深拷贝
func (s *Solution) Clone() *Solution {
	clone := *s
	clone.Values = make([]int, len(s.Values))
	copy(clone.Values, s.Values)
	return &clone
}

// LocalSearchOptimizer 禁忌搜索 + 模拟退火，最小化约束违反量
type LocalSearchOptimizer struct {
	config    *Config
	neighbors *NeighborhoodGenerator
}

// NewLocalSearchOptimizer 创建局部搜索优化器
func NewLocalSearchOptimizer(config *Config) *LocalSearchOptimizer {
	if config == nil {
		config = DefaultConfig()
	}
	return &LocalSearchOptimizer{
		config:    config,
		neighbors: NewNeighborhoodGenerator(config.NeighborhoodSize),
	}
}

// Optimize 从一个随机初始解出发搜索可行解；返回过程中违反量最小的解
//
// 系统中存在整数上不可满足的行时返回 nil。
func (o *LocalSearchOptimizer) Optimize(ctx context.Context, prob *Problem, seed int64) *Solution {
	st, ok := newState(prob)
	if !ok {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	st.reset(st.initial(rng))

	best := st.snapshot()
	tabu := NewTabuList(o.config.TabuSize)
	temperature := o.config.InitialTemp
	noImprovement := 0

	iter := 0
	for ; iter < o.config.MaxIterations && st.violation > 0; iter++ {
		if iter&63 == 0 && ctx.Err() != nil {
			break
		}

		ri := st.pickViolated(rng)
		if ri < 0 {
			break
		}
		moves := o.neighbors.Candidates(st, ri, rng)

		var chosen Move
		chosenDelta, found := 0, false
		for _, m := range moves {
			delta := st.moveDelta(m)
			// 禁忌移动只有在刷新历史最优时才允许
			if tabu.Contains(m.Key()) && st.violation+delta >= best.Violation {
				continue
			}
			if !found || delta < chosenDelta || (delta == chosenDelta && rng.Intn(2) == 0) {
				chosen, chosenDelta, found = m, delta, true
			}
		}

		accept := found && (chosenDelta <= 0 || rng.Float64() < boltzmannProbability(float64(chosenDelta), temperature))
		if accept {
			st.apply(chosen)
			tabu.Add(chosen.Key())
			if st.violation < best.Violation {
				best = st.snapshot()
				noImprovement = 0
			} else {
				noImprovement++
			}
		} else {
			noImprovement++
		}

		if noImprovement >= o.config.PlateauThreshold {
			st.reset(st.initial(rng))
			tabu.Clear()
			temperature = o.config.InitialTemp
			noImprovement = 0
			if st.violation < best.Violation {
				best = st.snapshot()
			}
		}

		temperature *= o.config.CoolingRate
	}
	if st.violation < best.Violation {
		best = st.snapshot()
	}
	best.Iterations = iter

	logger.Debug().
		Int64("seed", seed).
		Int("iterations", iter).
		Int("violation", best.Violation).
		Msg("局部搜索结束")
	return best
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 违反量增加值
// temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}

// TabuList 禁忌表，按加入顺序淘汰
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
	mu      sync.RWMutex
}

// NewTabuList 创建禁忌表
func NewTabuList(size int) *TabuList {
	if size < 1 {
		size = 1
	}
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表
func (t *TabuList) Add(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; exists {
		return
	}

	// 超出容量时移除最旧的
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}

	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.items[key]
	return exists
}

// Len 当前条目数
func (t *TabuList) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Clear 清空禁忌表
func (t *TabuList) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[uint64]struct{})
	t.order = t.order[:0]
}

func seedOrNow(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}
