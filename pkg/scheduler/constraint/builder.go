package constraint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// Builder 约束系统构建器，按优先级依次调用已注册的规则
type Builder struct {
	rules []Rule
	mu    sync.RWMutex
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{rules: make([]Rule, 0)}
}

// DefaultBuilder 注册全部内置规则的构建器
func DefaultBuilder() *Builder {
	b := NewBuilder()
	b.Register(PinRule{})
	b.Register(CoverageRule{})
	b.Register(FairnessRule{})
	b.Register(MaxConsecutiveRule{})
	b.Register(ObjectiveRule{})
	return b
}

// Register 注册规则，同名规则被替换
func (b *Builder) Register(r Rule) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.rules {
		if existing.Name() == r.Name() {
			b.rules[i] = r
			return
		}
	}
	b.rules = append(b.rules, r)
	sort.SliceStable(b.rules, func(i, j int) bool {
		return b.rules[i].Priority() < b.rules[j].Priority()
	})
}

// Unregister 注销规则
func (b *Builder) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.rules {
		if r.Name() == name {
			b.rules = append(b.rules[:i], b.rules[i+1:]...)
			return
		}
	}
}

// Rules 返回已注册规则的副本
func (b *Builder) Rules() []Rule {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Rule, len(b.rules))
	copy(out, b.rules)
	return out
}

// Build 校验输入并生成约束系统
func (b *Builder) Build(in Input) (*System, error) {
	pins, err := Validate(&in)
	if err != nil {
		return nil, err
	}
	in.Pins = pins

	s := NewSystem(in.Roster, in.Days, in.Params.Headcount)
	for _, r := range b.Rules() {
		r.Emit(s, &in)
	}
	return s, nil
}

// Validate 在构建之前拒绝非法输入，返回去重后的 Pin
func Validate(in *Input) ([]model.Pin, error) {
	if len(in.Roster) == 0 {
		return nil, errors.InvalidInput("employees", "员工列表不能为空")
	}
	if idx := in.Roster.Blank(); len(idx) > 0 {
		return nil, errors.InvalidInput("employees", fmt.Sprintf("第 %d 位员工标识为空", idx[0]+1))
	}
	if dups := in.Roster.Duplicates(); len(dups) > 0 {
		return nil, errors.InvalidInput("employees", fmt.Sprintf("员工 %s 重复出现", dups[0]))
	}
	if in.Days <= 0 {
		return nil, errors.InvalidInput("days", fmt.Sprintf("天数必须为正数: %d", in.Days))
	}

	p := in.Params
	if p.Headcount < 1 {
		return nil, errors.InvalidInput("params.headcount", fmt.Sprintf("每日人数必须至少为 1: %d", p.Headcount))
	}
	if p.Window < 1 {
		return nil, errors.InvalidInput("params.window", fmt.Sprintf("窗口长度必须至少为 1: %d", p.Window))
	}
	if p.LowerFactor <= 0 || p.UpperFactor <= 0 {
		return nil, errors.InvalidInput("params", "公平性系数必须为正数")
	}

	type key struct {
		e model.Employee
		d model.Day
	}
	states := make(map[key]model.PinState, len(in.Pins))
	pins := make([]model.Pin, 0, len(in.Pins))
	for i, pin := range in.Pins {
		field := fmt.Sprintf("pins[%d]", i)
		if !in.Roster.Contains(pin.Employee) {
			return nil, errors.InvalidInput(field, fmt.Sprintf("员工 %s 不在名单中", pin.Employee))
		}
		if pin.Day < 1 || pin.Day > in.Days {
			return nil, errors.InvalidInput(field, fmt.Sprintf("日期 %d 超出范围 1..%d", pin.Day, in.Days))
		}
		if !pin.State.Valid() {
			return nil, errors.InvalidInput(field, fmt.Sprintf("未知的固定状态: %q", pin.State))
		}
		k := key{pin.Employee, pin.Day}
		if prev, ok := states[k]; ok {
			if prev != pin.State {
				return nil, errors.InvalidInput(field, fmt.Sprintf("员工 %s 第 %d 天同时被固定为 %s 和 %s", pin.Employee, pin.Day, prev, pin.State))
			}
			continue
		}
		states[k] = pin.State
		pins = append(pins, pin)
	}
	model.SortPins(pins, in.Roster)
	return pins, nil
}
