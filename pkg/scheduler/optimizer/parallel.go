package optimizer

import (
	"context"
	"sync"

	"github.com/kinmu/kinmu/pkg/logger"
)

// ParallelOptimizer 以不同随机种子并行运行多次局部搜索，先找到可行解者胜出
type ParallelOptimizer struct {
	config *Config
}

// NewParallelOptimizer 创建并行优化器
func NewParallelOptimizer(config *Config) *ParallelOptimizer {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &ParallelOptimizer{config: &cfg}
}

// Workers 并行数
func (p *ParallelOptimizer) Workers() int {
	return p.config.Workers
}

// Run 运行搜索组合；返回第一个可行解，否则返回违反量最小的解
func (p *ParallelOptimizer) Run(ctx context.Context, prob *Problem) *Solution {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	base := seedOrNow(p.config.Seed)
	resultChan := make(chan *Solution, p.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			resultChan <- NewLocalSearchOptimizer(p.config).Optimize(ctx, prob, seed)
		}(base + int64(i)*7919)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var best *Solution
	for sol := range resultChan {
		if sol == nil {
			continue
		}
		if best == nil || sol.Violation < best.Violation {
			best = sol
		}
		if sol.Feasible() {
			// 通知其余搜索停止
			cancel()
			break
		}
	}

	if best != nil {
		logger.Debug().
			Int("workers", p.config.Workers).
			Int("violation", best.Violation).
			Msg("并行局部搜索完成")
	}
	return best
}
