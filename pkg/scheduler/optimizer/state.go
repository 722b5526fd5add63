package optimizer

import (
	"math/rand"

	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

const free int8 = -1

type occurrence struct {
	row  int
	coef int
}

type row struct {
	terms []constraint.Term
	lo    int
	hi    int
	eq    bool
	unit  bool // 全部系数为 1
}

// state 当前赋值及各行左端值，支持增量计算翻转代价
type state struct {
	rows      []row
	occ       [][]occurrence
	fixed     []int8
	guide     []float64
	free      []int
	values    []int
	act       []int
	violation int
}

func newState(p *Problem) (*state, bool) {
	s := p.System
	n := s.NumVars()
	st := &state{
		rows:   make([]row, 0, len(s.Constraints)),
		occ:    make([][]occurrence, n),
		fixed:  make([]int8, n),
		guide:  p.Guide,
		values: make([]int, n),
	}
	for v := range st.fixed {
		st.fixed[v] = free
		if p.Fixed != nil {
			st.fixed[v] = p.Fixed[v]
		}
		if st.fixed[v] == free {
			st.free = append(st.free, v)
		}
	}

	for _, c := range s.Constraints {
		lo, hi, ok := c.IntegerBounds()
		if !ok || lo > hi {
			return nil, false
		}
		terms := merge(c.Terms)
		ri := len(st.rows)
		unit := true
		for _, t := range terms {
			if t.Coef != 1 {
				unit = false
			}
			st.occ[t.Var] = append(st.occ[t.Var], occurrence{row: ri, coef: t.Coef})
		}
		st.rows = append(st.rows, row{terms: terms, lo: lo, hi: hi, eq: lo == hi, unit: unit})
	}
	st.act = make([]int, len(st.rows))
	return st, true
}

func merge(terms []constraint.Term) []constraint.Term {
	idx := make(map[int]int, len(terms))
	out := make([]constraint.Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := idx[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		idx[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}

func dist(act, lo, hi int) int {
	if act < lo {
		return lo - act
	}
	if act > hi {
		return act - hi
	}
	return 0
}

// reset 载入完整赋值并重算左端值
func (st *state) reset(values []int) {
	copy(st.values, values)
	st.violation = 0
	for ri := range st.rows {
		r := &st.rows[ri]
		a := 0
		for _, t := range r.terms {
			a += t.Coef * st.values[t.Var]
		}
		st.act[ri] = a
		st.violation += dist(a, r.lo, r.hi)
	}
}

// initial 生成初始解：固定变量取固定值，其余按松弛解或随机取值，再修复单位系数等式行
func (st *state) initial(rng *rand.Rand) []int {
	values := make([]int, len(st.fixed))
	for v, f := range st.fixed {
		switch {
		case f != free:
			values[v] = int(f)
		case st.guide != nil:
			if st.guide[v] >= 0.5 {
				values[v] = 1
			}
			if rng.Float64() < 0.1 {
				values[v] = 1 - values[v]
			}
		default:
			values[v] = rng.Intn(2)
		}
	}

	for ri := range st.rows {
		r := &st.rows[ri]
		if !r.eq || !r.unit {
			continue
		}
		a := 0
		var candidates []int
		for _, t := range r.terms {
			a += values[t.Var]
			if st.fixed[t.Var] == free {
				candidates = append(candidates, t.Var)
			}
		}
		rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		for _, v := range candidates {
			if a < r.lo && values[v] == 0 {
				values[v] = 1
				a++
			} else if a > r.hi && values[v] == 1 {
				values[v] = 0
				a--
			}
		}
	}
	return values
}

// flipDelta 翻转 v 引起的违反量变化
func (st *state) flipDelta(v int) int {
	d := 1 - 2*st.values[v]
	delta := 0
	for _, o := range st.occ[v] {
		r := &st.rows[o.row]
		a := st.act[o.row]
		delta += dist(a+o.coef*d, r.lo, r.hi) - dist(a, r.lo, r.hi)
	}
	return delta
}

func (st *state) flip(v int) {
	d := 1 - 2*st.values[v]
	for _, o := range st.occ[v] {
		r := &st.rows[o.row]
		a := st.act[o.row]
		na := a + o.coef*d
		st.violation += dist(na, r.lo, r.hi) - dist(a, r.lo, r.hi)
		st.act[o.row] = na
	}
	st.values[v] = 1 - st.values[v]
}

func (st *state) moveDelta(m Move) int {
	if m.B < 0 {
		return st.flipDelta(m.A)
	}
	da := st.flipDelta(m.A)
	st.flip(m.A)
	db := st.flipDelta(m.B)
	st.flip(m.A)
	return da + db
}

func (st *state) apply(m Move) {
	st.flip(m.A)
	if m.B >= 0 {
		st.flip(m.B)
	}
}

// pickViolated 从随机位置起找一条违反的行；没有时返回 -1
func (st *state) pickViolated(rng *rand.Rand) int {
	n := len(st.rows)
	if n == 0 {
		return -1
	}
	start := rng.Intn(n)
	for i := 0; i < n; i++ {
		ri := (start + i) % n
		r := &st.rows[ri]
		if dist(st.act[ri], r.lo, r.hi) > 0 {
			return ri
		}
	}
	return -1
}

func (st *state) snapshot() *Solution {
	values := make([]int, len(st.values))
	copy(values, st.values)
	return &Solution{Values: values, Violation: st.violation}
}
