package constraint

import (
	"fmt"

	"github.com/kinmu/kinmu/pkg/model"
)

// Params 业务规则参数
type Params struct {
	Headcount   int     `json:"headcount" yaml:"headcount" toml:"headcount"`          // 每天上班人数 n_req
	Window      int     `json:"window" yaml:"window" toml:"window"`                   // 连续上班检查窗口 W
	LowerFactor float64 `json:"lower_factor" yaml:"lower_factor" toml:"lower_factor"` // 出勤下限 n/(m·LowerFactor)
	UpperFactor float64 `json:"upper_factor" yaml:"upper_factor" toml:"upper_factor"` // 出勤上限 (n/m)·UpperFactor
}

// DefaultParams 返回默认业务规则
func DefaultParams() Params {
	return Params{
		Headcount:   1,
		Window:      3,
		LowerFactor: 1.5,
		UpperFactor: 2,
	}
}

// WorkingBounds 返回出勤天数的 [下限, 上限]（未取整）
func (p Params) WorkingBounds(days, employees int) (lower, upper float64) {
	n, m := float64(days), float64(employees)
	return n / (m * p.LowerFactor), (n / m) * p.UpperFactor
}

// Input 构建约束系统的输入
type Input struct {
	Roster model.Roster
	Days   int
	Pins   []model.Pin
	Params Params
}

// Rule 一类约束的生成器
type Rule interface {
	// Name 规则名称
	Name() string

	// Priority 生成顺序，数值小的先生成
	Priority() int

	// Emit 把约束写入系统
	Emit(s *System, in *Input)
}

// PinRule 固定约束：x[e,d] 取固定值
type PinRule struct{}

func (PinRule) Name() string { return "pin" }
func (PinRule) Priority() int { return 10 }

// Emit 每个 Pin 生成一条等式
func (PinRule) Emit(s *System, in *Input) {
	for _, p := range in.Pins {
		col := s.Employees.Index(p.Employee)
		s.Add(Linear{
			Kind:  KindPin,
			Label: fmt.Sprintf("pin[%s,%d]", p.Employee, p.Day),
			Terms: []Term{{Var: s.Var(col, p.Day), Coef: 1}},
			Op:    OpEQ,
			RHS:   float64(PinLiteral(p.State)),
		})
	}
}

// PinLiteral 把固定状态映射为变量取值
func PinLiteral(state model.PinState) int {
	if state == model.PinWorking {
		return 0
	}
	return 1
}

// CoverageRule 每天上班人数 Σ_e (1 − x[e,d]) = n_req，即 Σ_e x[e,d] = m − n_req
type CoverageRule struct{}

func (CoverageRule) Name() string { return "coverage" }
func (CoverageRule) Priority() int { return 20 }

// Emit 每天一条等式
func (CoverageRule) Emit(s *System, in *Input) {
	m := len(s.Employees)
	for d := 1; d <= s.Days; d++ {
		terms := make([]Term, m)
		for col := range s.Employees {
			terms[col] = Term{Var: s.Var(col, d), Coef: 1}
		}
		s.Add(Linear{
			Kind:  KindCoverage,
			Label: fmt.Sprintf("coverage[d%d]", d),
			Terms: terms,
			Op:    OpEQ,
			RHS:   float64(m - in.Params.Headcount),
		})
	}
}

// FairnessRule 出勤天数上下限
//
// 出勤 = n − Σ_d x[e,d]；要求 出勤 ≥ n/(m·1.5) 且 出勤 ≤ (n/m)·2。
// 两个系数不对称是业务规定。
type FairnessRule struct{}

func (FairnessRule) Name() string { return "fairness" }
func (FairnessRule) Priority() int { return 30 }

// Emit 每位员工两条不等式
func (FairnessRule) Emit(s *System, in *Input) {
	n := float64(s.Days)
	lower, upper := in.Params.WorkingBounds(s.Days, len(s.Employees))
	for col, e := range s.Employees {
		terms := make([]Term, s.Days)
		for d := 1; d <= s.Days; d++ {
			terms[d-1] = Term{Var: s.Var(col, d), Coef: 1}
		}
		s.Add(Linear{
			Kind:  KindFairnessMin,
			Label: fmt.Sprintf("fairness_min[%s]", e),
			Terms: terms,
			Op:    OpLE,
			RHS:   n - lower,
		})
		s.Add(Linear{
			Kind:  KindFairnessMax,
			Label: fmt.Sprintf("fairness_max[%s]", e),
			Terms: append([]Term(nil), terms...),
			Op:    OpGE,
			RHS:   n - upper,
		})
	}
}

// MaxConsecutiveRule 任意 W 天窗口内至少休息一天
//
// 名单人数不超过每日需求人数时，所有人每天都必须上班，该规则不生成。
type MaxConsecutiveRule struct{}

func (MaxConsecutiveRule) Name() string { return "max_consecutive" }
func (MaxConsecutiveRule) Priority() int { return 40 }

// Emit 每位员工每个窗口一条不等式
func (MaxConsecutiveRule) Emit(s *System, in *Input) {
	w := in.Params.Window
	if !RestRuleApplies(len(s.Employees), s.Days, in.Params) {
		return
	}
	s.RestRule = true
	for col, e := range s.Employees {
		for d := 1; d <= s.Days-w+1; d++ {
			terms := make([]Term, w)
			for i := 0; i < w; i++ {
				terms[i] = Term{Var: s.Var(col, d+i), Coef: 1}
			}
			s.Add(Linear{
				Kind:  KindMaxConsecutive,
				Label: fmt.Sprintf("max_consecutive[%s,d%d..d%d]", e, d, d+w-1),
				Terms: terms,
				Op:    OpGE,
				RHS:   1,
			})
		}
	}
}

// RestRuleApplies 判断连续上班规则是否生效
func RestRuleApplies(employees, days int, p Params) bool {
	return employees > p.Headcount && p.Window > 0 && days >= p.Window
}

// ObjectiveRule 目标：最小化休息总天数
type ObjectiveRule struct{}

func (ObjectiveRule) Name() string { return "objective" }
func (ObjectiveRule) Priority() int { return 100 }

// Emit 写入目标函数
func (ObjectiveRule) Emit(s *System, _ *Input) {
	s.Objective = make([]Term, s.NumVars())
	for v := range s.Objective {
		s.Objective[v] = Term{Var: v, Coef: 1}
	}
}
