package solver

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

// errRelaxationSkipped 松弛问题过大或为空，不求解
var errRelaxationSkipped = stderrors.New("solver: relaxation skipped")

const simplexTolerance = 1e-10

// relaxation 根节点 LP 松弛（去掉整数性与 x ≤ 1）
type relaxation struct {
	bound float64   // 目标下界，含已固定变量
	x     []float64 // 每个变量的松弛取值，已固定变量为其固定值
	rows  int
	cols  int
}

// guide 返回松弛解建议的取值
func (r *relaxation) guide(v int) int8 {
	if r == nil || math.IsNaN(r.x[v]) {
		return free
	}
	if r.x[v] >= 0.5 {
		return 1
	}
	return 0
}

// solveRelaxation 以标准型 min cᵀz, Az = b, z ≥ 0 求解松弛
//
// 已固定变量代入常数，每条不等式加一个松弛列，b < 0 的行整体取反。
// 返回 lp.ErrInfeasible 表示整数问题必然无解；其他错误表示松弛不可用。
func solveRelaxation(ctx context.Context, s *constraint.System, p *propagator, maxRows int) (*relaxation, error) {
	n := len(p.dom)
	objCoef := make([]float64, n)
	for _, t := range s.Objective {
		objCoef[t.Var] += float64(t.Coef)
	}

	type entry struct {
		col  int
		coef float64
	}
	type lpRow struct {
		entries []entry
		slack   float64
		rhs     float64
	}

	col := make([]int, n)
	for v := range col {
		col[v] = -1
	}
	nVarCols := 0
	rows := make([]lpRow, 0, len(p.rows))

	addRow := func(entries []entry, slack, rhs float64) {
		rows = append(rows, lpRow{entries: entries, slack: slack, rhs: rhs})
	}

	for i := range p.rows {
		r := &p.rows[i]
		fixed := 0
		var entries []entry
		for _, t := range r.terms {
			switch p.dom[t.Var] {
			case free:
				if col[t.Var] < 0 {
					col[t.Var] = nVarCols
					nVarCols++
				}
				entries = append(entries, entry{col: col[t.Var], coef: float64(t.Coef)})
			case 1:
				fixed += t.Coef
			}
		}
		if len(entries) == 0 {
			continue
		}
		const inf = math.MaxInt32
		switch {
		case r.eq:
			addRow(entries, 0, float64(r.lo-fixed))
		case r.hi >= inf:
			addRow(entries, -1, float64(r.lo-fixed))
		case r.lo <= -inf:
			addRow(entries, 1, float64(r.hi-fixed))
		default:
			addRow(entries, -1, float64(r.lo-fixed))
			addRow(append([]entry(nil), entries...), 1, float64(r.hi-fixed))
		}
	}

	nSlack := 0
	for _, r := range rows {
		if r.slack != 0 {
			nSlack++
		}
	}
	nRows, nCols := len(rows), nVarCols+nSlack
	if nRows == 0 || nRows > nCols || (maxRows > 0 && nRows > maxRows) {
		return nil, errRelaxationSkipped
	}

	A := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	slackCol := nVarCols
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for _, e := range r.entries {
			A.Set(i, e.col, A.At(i, e.col)+sign*e.coef)
		}
		if r.slack != 0 {
			A.Set(i, slackCol, sign*r.slack)
			slackCol++
		}
		b[i] = sign * r.rhs
	}

	c := make([]float64, nCols)
	constant := 0.0
	for v := 0; v < n; v++ {
		switch {
		case col[v] >= 0:
			c[col[v]] = objCoef[v]
		case p.dom[v] == 1:
			constant += objCoef[v]
		case p.dom[v] == free && objCoef[v] < 0:
			// 不出现在任何行中的自由变量直接取最优的一端
			constant += objCoef[v]
		}
	}

	type result struct {
		f   float64
		x   []float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("solver: simplex panic: %v", r)}
			}
		}()
		f, x, err := lp.Simplex(c, A, b, simplexTolerance, nil)
		done <- result{f: f, x: x, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, res.err
	}

	rel := &relaxation{
		bound: res.f + constant,
		x:     make([]float64, n),
		rows:  nRows,
		cols:  nCols,
	}
	for v := 0; v < n; v++ {
		switch {
		case col[v] >= 0:
			rel.x[v] = res.x[col[v]]
		case p.dom[v] == free:
			if objCoef[v] < 0 {
				rel.x[v] = 1
			} else {
				rel.x[v] = 0
			}
		default:
			rel.x[v] = float64(p.dom[v])
		}
	}
	return rel, nil
}

// ceilBound 把松弛下界取整为整数目标的下界
func ceilBound(bound float64) int {
	return int(math.Ceil(bound - 1e-6))
}
