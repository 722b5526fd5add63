package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

func buildABC(t *testing.T, pins ...model.Pin) *System {
	t.Helper()
	s, err := DefaultBuilder().Build(Input{
		Roster: model.RosterOf("A", "B", "C"),
		Days:   30,
		Pins:   pins,
		Params: DefaultParams(),
	})
	require.NoError(t, err)
	return s
}

// rotation 轮流上班：第 d 天由第 (d-1)%m 位员工上班
func rotation(s *System) []int {
	values := make([]int, s.NumVars())
	m := len(s.Employees)
	for col := range s.Employees {
		for d := 1; d <= s.Days; d++ {
			if (d-1)%m != col {
				values[s.Var(col, d)] = 1
			}
		}
	}
	return values
}

func TestBuildShape(t *testing.T) {
	s := buildABC(t, model.Pin{Employee: "A", Day: 5, State: model.PinOff})

	assert.Equal(t, 90, s.NumVars())
	assert.True(t, s.RestRule)
	assert.Equal(t, map[Kind]int{
		KindPin:            1,
		KindCoverage:       30,
		KindFairnessMin:    3,
		KindFairnessMax:    3,
		KindMaxConsecutive: 84,
	}, s.CountByKind())
	assert.Len(t, s.Objective, 90)
	assert.Equal(t, VarInfo{Employee: "B", Day: 7}, s.Vars[s.Var(1, 7)])
}

// 固定为休息的格子取 1，固定为上班的格子取 0。
func TestPinPolarity(t *testing.T) {
	s := buildABC(t,
		model.Pin{Employee: "A", Day: 5, State: model.PinOff},
		model.Pin{Employee: "C", Day: 2, State: model.PinWorking},
	)

	var pins []Linear
	for _, c := range s.Constraints {
		if c.Kind == KindPin {
			pins = append(pins, c)
		}
	}
	require.Len(t, pins, 2)

	assert.Equal(t, []Term{{Var: s.Var(0, 5), Coef: 1}}, pins[0].Terms)
	assert.Equal(t, OpEQ, pins[0].Op)
	assert.Equal(t, 1.0, pins[0].RHS)

	assert.Equal(t, []Term{{Var: s.Var(2, 2), Coef: 1}}, pins[1].Terms)
	assert.Equal(t, 0.0, pins[1].RHS)

	assert.Equal(t, 1, PinLiteral(model.PinOff))
	assert.Equal(t, 0, PinLiteral(model.PinWorking))
}

func TestCoverageAndFairnessFormulas(t *testing.T) {
	s := buildABC(t)

	for _, c := range s.Constraints {
		switch c.Kind {
		case KindCoverage:
			assert.Equal(t, 2.0, c.RHS, "三人每天一人上班，两人休息")
			assert.Len(t, c.Terms, 3)
		case KindFairnessMin:
			// 出勤 ≥ 30/(3·1.5) ⇔ Σx ≤ 30 − 6.67
			assert.InDelta(t, 30-30/4.5, c.RHS, 1e-9)
			_, hi, ok := c.IntegerBounds()
			require.True(t, ok)
			assert.Equal(t, 23, hi)
		case KindFairnessMax:
			// 出勤 ≤ (30/3)·2 ⇔ Σx ≥ 10
			assert.InDelta(t, 10.0, c.RHS, 1e-9)
			lo, _, ok := c.IntegerBounds()
			require.True(t, ok)
			assert.Equal(t, 10, lo)
		case KindMaxConsecutive:
			assert.Equal(t, OpGE, c.Op)
			assert.Len(t, c.Terms, 3)
		}
	}
}

func TestSingleEmployeeHasNoRestRule(t *testing.T) {
	s, err := DefaultBuilder().Build(Input{Roster: model.RosterOf("A"), Days: 30, Params: DefaultParams()})
	require.NoError(t, err)

	assert.False(t, s.RestRule)
	assert.Zero(t, s.CountByKind()[KindMaxConsecutive])

	allWorking := make([]int, s.NumVars())
	assert.Empty(t, s.Check(allWorking), "单人每天上班满足全部约束")
}

func TestCheck(t *testing.T) {
	s := buildABC(t, model.Pin{Employee: "A", Day: 5, State: model.PinOff})

	good := rotation(s)
	assert.Empty(t, s.Check(good))
	assert.Equal(t, 60.0, s.ObjectiveValue(good))

	bad := make([]int, s.NumVars())
	violations := s.Check(bad)
	require.NotEmpty(t, violations)
	kinds := map[Kind]bool{}
	for _, v := range violations {
		kinds[v.Kind] = true
	}
	assert.True(t, kinds[KindCoverage])
	assert.True(t, kinds[KindPin])
	assert.True(t, kinds[KindMaxConsecutive])

	assert.Equal(t, Kind("shape"), s.Check([]int{1})[0].Kind)
	bad[0] = 2
	assert.Equal(t, Kind("domain"), s.Check(bad)[0].Kind)
}

func TestIntegerBounds(t *testing.T) {
	_, _, ok := Linear{Op: OpEQ, RHS: 1.5}.IntegerBounds()
	assert.False(t, ok, "非整数等式无整数解")

	lo, hi, ok := Linear{Op: OpEQ, RHS: 2}.IntegerBounds()
	assert.True(t, ok)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 2, hi)

	lo, _, _ = Linear{Op: OpGE, RHS: 6.0000000001}.IntegerBounds()
	assert.Equal(t, 6, lo, "容差内视为整数")
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	roster := model.RosterOf("A", "B")
	params := DefaultParams()

	tests := []struct {
		name string
		in   Input
	}{
		{"空名单", Input{Days: 30, Params: params}},
		{"重复员工", Input{Roster: model.RosterOf("A", "A"), Days: 30, Params: params}},
		{"空白员工", Input{Roster: model.RosterOf("A", " "), Days: 30, Params: params}},
		{"天数为零", Input{Roster: roster, Days: 0, Params: params}},
		{"未知员工", Input{Roster: roster, Days: 30, Params: params, Pins: []model.Pin{{Employee: "Z", Day: 1, State: model.PinOff}}}},
		{"日期越界", Input{Roster: roster, Days: 30, Params: params, Pins: []model.Pin{{Employee: "A", Day: 31, State: model.PinOff}}}},
		{"日期为零", Input{Roster: roster, Days: 30, Params: params, Pins: []model.Pin{{Employee: "A", Day: 0, State: model.PinOff}}}},
		{"未知状态", Input{Roster: roster, Days: 30, Params: params, Pins: []model.Pin{{Employee: "A", Day: 1, State: "maybe"}}}},
		{"冲突固定", Input{Roster: roster, Days: 30, Params: params, Pins: []model.Pin{
			{Employee: "A", Day: 3, State: model.PinOff},
			{Employee: "A", Day: 3, State: model.PinWorking},
		}}},
		{"人数为零", Input{Roster: roster, Days: 30, Params: Params{Headcount: 0, Window: 3, LowerFactor: 1.5, UpperFactor: 2}}},
		{"系数非正", Input{Roster: roster, Days: 30, Params: Params{Headcount: 1, Window: 3, LowerFactor: 0, UpperFactor: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DefaultBuilder().Build(tt.in)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, errors.CodeInvalidInput), err.Error())
		})
	}
}

func TestBuildDeduplicatesIdenticalPins(t *testing.T) {
	pin := model.Pin{Employee: "A", Day: 3, State: model.PinOff}
	s := buildABC(t, pin, pin)
	assert.Equal(t, 1, s.CountByKind()[KindPin])
}

type namedRule struct {
	name     string
	priority int
}

func (r namedRule) Name() string { return r.name }
func (r namedRule) Priority() int { return r.priority }
func (r namedRule) Emit(*System, *Input) {}

func TestBuilderRegisterOrderAndReplace(t *testing.T) {
	b := NewBuilder()
	b.Register(namedRule{"late", 50})
	b.Register(namedRule{"early", 5})
	b.Register(namedRule{"late", 1})

	rules := b.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].Name())
	assert.Equal(t, 1, rules[1].Priority(), "同名规则被替换")

	b.Unregister("early")
	assert.Len(t, b.Rules(), 1)
}

func TestBuildWithoutRestRuleRegistered(t *testing.T) {
	b := DefaultBuilder()
	b.Unregister(MaxConsecutiveRule{}.Name())

	s, err := b.Build(Input{Roster: model.RosterOf("A", "B"), Days: 10, Params: DefaultParams()})
	require.NoError(t, err)
	assert.Zero(t, s.CountByKind()[KindMaxConsecutive])
	assert.False(t, s.RestRule)
}
