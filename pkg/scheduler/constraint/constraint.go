// Package constraint 把员工、日期与固定约束翻译为 0-1 线性约束系统
//
// 变量极性全局固定：x[e,d] = 1 表示休息，0 表示上班。
package constraint

import (
	"fmt"
	"math"

	"github.com/kinmu/kinmu/pkg/model"
)

// Kind 约束类型标识
type Kind string

const (
	KindPin            Kind = "pin"
	KindCoverage       Kind = "coverage"
	KindFairnessMin    Kind = "fairness_min"
	KindFairnessMax    Kind = "fairness_max"
	KindMaxConsecutive Kind = "max_consecutive"
)

// Op 比较运算
type Op string

const (
	OpEQ Op = "="
	OpGE Op = ">="
	OpLE Op = "<="
)

// tolerance 比较浮点右端项时的容差
const tolerance = 1e-9

// Term 线性项 coef·x[var]
type Term struct {
	Var  int `json:"var"`
	Coef int `json:"coef"`
}

// Linear 一条线性约束 Σ coef·x  op  rhs
type Linear struct {
	Kind  Kind    `json:"kind"`
	Label string  `json:"label"`
	Terms []Term  `json:"terms"`
	Op    Op      `json:"op"`
	RHS   float64 `json:"rhs"`
}

// Activity 计算左端值；values 必须是完整的 0/1 赋值
func (l Linear) Activity(values []int) int {
	act := 0
	for _, t := range l.Terms {
		act += t.Coef * values[t.Var]
	}
	return act
}

// Holds 判断给定左端值是否满足约束
func (l Linear) Holds(activity int) bool {
	a := float64(activity)
	switch l.Op {
	case OpEQ:
		return math.Abs(a-l.RHS) <= tolerance
	case OpGE:
		return a >= l.RHS-tolerance
	case OpLE:
		return a <= l.RHS+tolerance
	}
	return false
}

// IntegerBounds 返回整数左端值允许的区间 [lo, hi]；区间为空时 ok=false
func (l Linear) IntegerBounds() (lo, hi int, ok bool) {
	const inf = math.MaxInt32
	switch l.Op {
	case OpEQ:
		r := math.Round(l.RHS)
		if math.Abs(r-l.RHS) > tolerance {
			return 0, 0, false
		}
		return int(r), int(r), true
	case OpGE:
		return int(math.Ceil(l.RHS - tolerance)), inf, true
	case OpLE:
		return -inf, int(math.Floor(l.RHS + tolerance)), true
	}
	return 0, 0, false
}

// String 返回可读形式
func (l Linear) String() string {
	return fmt.Sprintf("%s: %d terms %s %.4g", l.Label, len(l.Terms), l.Op, l.RHS)
}

// VarInfo 变量对应的 (员工, 日期)
type VarInfo struct {
	Employee model.Employee `json:"employee"`
	Day      model.Day      `json:"day"`
}

// System 0-1 线性约束系统（目标为最小化）
type System struct {
	Employees   model.Roster `json:"employees"`
	Days        int          `json:"days"`
	Headcount   int          `json:"headcount"`
	Vars        []VarInfo    `json:"vars"`
	Constraints []Linear     `json:"constraints"`
	Objective   []Term       `json:"objective"`
	RestRule    bool         `json:"rest_rule"`
}

// NewSystem 按 (员工, 日期) 分配变量，员工优先排列
func NewSystem(roster model.Roster, days, headcount int) *System {
	s := &System{
		Employees: roster,
		Days:      days,
		Headcount: headcount,
		Vars:      make([]VarInfo, 0, len(roster)*days),
	}
	for _, e := range roster {
		for d := 1; d <= days; d++ {
			s.Vars = append(s.Vars, VarInfo{Employee: e, Day: d})
		}
	}
	return s
}

// NumVars 变量个数
func (s *System) NumVars() int {
	return len(s.Vars)
}

// Var 返回第 col 位员工第 day 天的变量编号
func (s *System) Var(col int, day model.Day) int {
	return col*s.Days + day - 1
}

// Add 追加约束
func (s *System) Add(l Linear) {
	s.Constraints = append(s.Constraints, l)
}

// CountByKind 按类型统计约束数量
func (s *System) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, c := range s.Constraints {
		counts[c.Kind]++
	}
	return counts
}

// ObjectiveValue 计算目标值
func (s *System) ObjectiveValue(values []int) float64 {
	v := 0
	for _, t := range s.Objective {
		v += t.Coef * values[t.Var]
	}
	return float64(v)
}

// Violation 约束违反详情
type Violation struct {
	Kind     Kind    `json:"kind"`
	Label    string  `json:"label"`
	Activity int     `json:"activity"`
	Op       Op      `json:"op"`
	RHS      float64 `json:"rhs"`
}

// Check 逐条精确检查完整赋值，返回违反的约束
func (s *System) Check(values []int) []Violation {
	var out []Violation
	if len(values) != s.NumVars() {
		return []Violation{{Kind: "shape", Label: fmt.Sprintf("赋值长度 %d 与变量数 %d 不符", len(values), s.NumVars())}}
	}
	for _, v := range values {
		if v != 0 && v != 1 {
			return []Violation{{Kind: "domain", Label: fmt.Sprintf("变量取值 %d 不是 0/1", v)}}
		}
	}
	for _, c := range s.Constraints {
		act := c.Activity(values)
		if !c.Holds(act) {
			out = append(out, Violation{Kind: c.Kind, Label: c.Label, Activity: act, Op: c.Op, RHS: c.RHS})
		}
	}
	return out
}
