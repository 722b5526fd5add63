package optimizer

import (
	"math/rand"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveFlip MoveType = iota // 翻转一个变量
	MoveSwap                 // 在同一单位等式行内交换两个变量的取值
)

// Move 邻域移动；B < 0 表示单变量翻转
type Move struct {
	A int
	B int
}

// Type 返回移动类型
func (m Move) Type() MoveType {
	if m.B < 0 {
		return MoveFlip
	}
	return MoveSwap
}

// Key 禁忌表键，交换不区分方向
func (m Move) Key() uint64 {
	a, b := m.A, m.B
	if b >= 0 && b < a {
		a, b = b, a
	}
	return uint64(uint32(a))<<32 | uint64(uint32(b+1))
}

// NeighborhoodGenerator 针对一条违反行生成修复移动
type NeighborhoodGenerator struct {
	size     int
	partners int
}

// NewNeighborhoodGenerator 创建邻域生成器；size 为候选上限
func NewNeighborhoodGenerator(size int) *NeighborhoodGenerator {
	if size < 1 {
		size = 48
	}
	return &NeighborhoodGenerator{size: size, partners: 4}
}

// Candidates 返回能把第 ri 行左端值推向可行区间的移动
//
// 单变量翻转之外，对变量所在的其他单位等式行各取若干交换伙伴，
// 使交换后该等式行保持不变。
func (g *NeighborhoodGenerator) Candidates(st *state, ri int, rng *rand.Rand) []Move {
	r := &st.rows[ri]
	if len(r.terms) == 0 {
		return nil
	}
	up := st.act[ri] < r.lo

	moves := make([]Move, 0, g.size)
	off := rng.Intn(len(r.terms))
	for k := range r.terms {
		t := r.terms[(off+k)%len(r.terms)]
		v := t.Var
		if st.fixed[v] != free {
			continue
		}
		d := 1 - 2*st.values[v]
		if (t.Coef*d > 0) != up {
			continue
		}
		moves = append(moves, Move{A: v, B: -1})

		want := 1 - st.values[v]
		for _, o := range st.occ[v] {
			if o.row == ri {
				continue
			}
			r2 := &st.rows[o.row]
			if !r2.eq || !r2.unit {
				continue
			}
			found := 0
			off2 := rng.Intn(len(r2.terms))
			for j := range r2.terms {
				w := r2.terms[(off2+j)%len(r2.terms)].Var
				if w == v || st.fixed[w] != free || st.values[w] != want {
					continue
				}
				moves = append(moves, Move{A: v, B: w})
				found++
				if found >= g.partners {
					break
				}
			}
		}
		if len(moves) >= g.size {
			break
		}
	}
	return moves
}
