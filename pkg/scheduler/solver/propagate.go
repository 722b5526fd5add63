package solver

import (
	"fmt"
	"math"

	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

const free int8 = -1

type occurrence struct {
	row  int
	coef int
}

// prow 整数化后的约束行 lo ≤ Σ coef·x ≤ hi
type prow struct {
	label string
	terms []constraint.Term
	lo    int
	hi    int
	eq    bool
}

// propagator 维护变量域并做界推理，回溯通过 trail 撤销
type propagator struct {
	rows   []prow
	occ    [][]occurrence
	dom    []int8
	trail  []int
	queue  []int
	queued []bool
}

// newPropagator 把系统整数化；若某行在整数上无解，返回该行的标签
func newPropagator(s *constraint.System) (*propagator, string) {
	n := s.NumVars()
	p := &propagator{
		rows:   make([]prow, 0, len(s.Constraints)),
		occ:    make([][]occurrence, n),
		dom:    make([]int8, n),
		trail:  make([]int, 0, n),
		queued: make([]bool, 0, len(s.Constraints)),
	}
	for v := range p.dom {
		p.dom[v] = free
	}

	for _, c := range s.Constraints {
		lo, hi, ok := c.IntegerBounds()
		if !ok || lo > hi {
			return nil, c.Label
		}
		terms := mergeTerms(c.Terms, n)
		if len(terms) == 0 {
			if lo > 0 || hi < 0 {
				return nil, c.Label
			}
			continue
		}
		ri := len(p.rows)
		p.rows = append(p.rows, prow{label: c.Label, terms: terms, lo: lo, hi: hi, eq: lo == hi})
		p.queued = append(p.queued, false)
		for _, t := range terms {
			p.occ[t.Var] = append(p.occ[t.Var], occurrence{row: ri, coef: t.Coef})
		}
	}
	return p, ""
}

// mergeTerms 合并同一变量的系数并去掉零系数
func mergeTerms(terms []constraint.Term, n int) []constraint.Term {
	seen := make(map[int]int, len(terms))
	out := make([]constraint.Term, 0, len(terms))
	for _, t := range terms {
		if t.Var < 0 || t.Var >= n {
			panic(fmt.Sprintf("solver: 变量编号 %d 越界", t.Var))
		}
		if i, ok := seen[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		seen[t.Var] = len(out)
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

func (p *propagator) assign(v int, val int8) {
	p.dom[v] = val
	p.trail = append(p.trail, v)
}

func (p *propagator) mark() int {
	return len(p.trail)
}

func (p *propagator) undo(mark int) {
	for i := len(p.trail) - 1; i >= mark; i-- {
		p.dom[p.trail[i]] = free
	}
	p.trail = p.trail[:mark]
}

// fix 固定变量并传播；冲突时返回 false，调用方负责 undo
func (p *propagator) fix(v int, val int8) bool {
	if p.dom[v] != free {
		return p.dom[v] == val
	}
	p.assign(v, val)
	p.enqueueVar(v)
	return p.run()
}

// propagateAll 对全部行传播一遍
func (p *propagator) propagateAll() bool {
	for ri := range p.rows {
		p.enqueue(ri)
	}
	return p.run()
}

func (p *propagator) enqueue(ri int) {
	if !p.queued[ri] {
		p.queued[ri] = true
		p.queue = append(p.queue, ri)
	}
}

func (p *propagator) enqueueVar(v int) {
	for _, o := range p.occ[v] {
		p.enqueue(o.row)
	}
}

func (p *propagator) run() bool {
	for len(p.queue) > 0 {
		ri := p.queue[len(p.queue)-1]
		p.queue = p.queue[:len(p.queue)-1]
		p.queued[ri] = false
		if !p.propagateRow(ri) {
			for _, rest := range p.queue {
				p.queued[rest] = false
			}
			p.queue = p.queue[:0]
			return false
		}
	}
	return true
}

// rowRange 返回已固定部分之和，以及自由变量中正系数之和与负系数之和
func (p *propagator) rowRange(r *prow) (fixed, pos, neg int) {
	for _, t := range r.terms {
		switch p.dom[t.Var] {
		case free:
			if t.Coef > 0 {
				pos += t.Coef
			} else {
				neg += t.Coef
			}
		case 1:
			fixed += t.Coef
		}
	}
	return fixed, pos, neg
}

// propagateRow 检查行的可满足性并固定被迫取值的变量
func (p *propagator) propagateRow(ri int) bool {
	r := &p.rows[ri]
	fixed, pos, neg := p.rowRange(r)
	minAct, maxAct := fixed+neg, fixed+pos
	if minAct > r.hi || maxAct < r.lo {
		return false
	}
	for _, t := range r.terms {
		if p.dom[t.Var] != free {
			continue
		}
		c := t.Coef
		forced := free
		if c > 0 {
			if minAct+c > r.hi {
				forced = 0
			} else if maxAct-c < r.lo {
				forced = 1
			}
		} else {
			if maxAct+c < r.lo {
				forced = 0
			} else if minAct-c > r.hi {
				forced = 1
			}
		}
		if forced != free {
			p.assign(t.Var, forced)
			p.enqueueVar(t.Var)
		}
	}
	return true
}

// entailed 行在当前域下是否已必然满足
func (p *propagator) entailed(r *prow) bool {
	fixed, pos, neg := p.rowRange(r)
	return fixed+neg >= r.lo && fixed+pos <= r.hi
}

// pickVar 选择自由变量最少的未满足行中的第一个自由变量；全部固定时返回 -1
func (p *propagator) pickVar() int {
	best, bestFree := -1, math.MaxInt
	for i := range p.rows {
		r := &p.rows[i]
		if p.entailed(r) {
			continue
		}
		n, first := 0, -1
		for _, t := range r.terms {
			if p.dom[t.Var] == free {
				n++
				if first < 0 {
					first = t.Var
				}
			}
		}
		if n > 0 && n < bestFree {
			best, bestFree = first, n
		}
	}
	if best >= 0 {
		return best
	}
	for v, d := range p.dom {
		if d == free {
			return v
		}
	}
	return -1
}

func (p *propagator) freeCount() int {
	n := 0
	for _, d := range p.dom {
		if d == free {
			n++
		}
	}
	return n
}

// values 返回完整赋值；仍有自由变量时 ok=false
func (p *propagator) values() ([]int, bool) {
	out := make([]int, len(p.dom))
	for v, d := range p.dom {
		if d == free {
			return nil, false
		}
		out[v] = int(d)
	}
	return out, true
}

// objectiveLowerBound 当前域下目标函数的下界
func (p *propagator) objectiveLowerBound(obj []constraint.Term) int {
	lb := 0
	for _, t := range obj {
		switch p.dom[t.Var] {
		case 1:
			lb += t.Coef
		case free:
			if t.Coef < 0 {
				lb += t.Coef
			}
		}
	}
	return lb
}

// domain 返回当前域的副本
func (p *propagator) domain() []int8 {
	out := make([]int8, len(p.dom))
	copy(out, p.dom)
	return out
}

// impliedObjective 判断目标是否为若干互不相交等式行之和；是则返回其常数值
//
// 已固定变量计入常数，只要求自由变量被覆盖恰好一次。
func (p *propagator) impliedObjective(obj []constraint.Term) (int, bool) {
	n := len(p.dom)
	coef := make([]int, n)
	for _, t := range obj {
		coef[t.Var] += t.Coef
	}

	value := 0
	for v, d := range p.dom {
		if d == 1 {
			value += coef[v]
		}
	}

	covered := make([]bool, n)
	for i := range p.rows {
		r := &p.rows[i]
		if !r.eq {
			continue
		}
		fixed, nFree, match := 0, 0, true
		for _, t := range r.terms {
			switch p.dom[t.Var] {
			case 1:
				fixed += t.Coef
			case free:
				nFree++
				if covered[t.Var] || coef[t.Var] != t.Coef {
					match = false
				}
			}
		}
		if nFree == 0 || !match {
			continue
		}
		for _, t := range r.terms {
			if p.dom[t.Var] == free {
				covered[t.Var] = true
			}
		}
		value += r.lo - fixed
	}

	for v, d := range p.dom {
		if d == free && coef[v] != 0 && !covered[v] {
			return 0, false
		}
	}
	return value, true
}
