package model

import (
	"strings"
)

// Employee 员工标识，顺序决定排班表的列顺序
type Employee string

// Roster 有序员工名单
type Roster []Employee

// Strings 返回字符串切片
func (r Roster) Strings() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = string(e)
	}
	return out
}

// Index 返回员工位置，不存在时返回 -1
func (r Roster) Index(e Employee) int {
	for i, x := range r {
		if x == e {
			return i
		}
	}
	return -1
}

// Contains 检查员工是否在名单中
func (r Roster) Contains(e Employee) bool {
	return r.Index(e) >= 0
}

// Duplicates 返回重复出现的员工（按首次重复顺序）
func (r Roster) Duplicates() []Employee {
	seen := make(map[Employee]bool, len(r))
	var dups []Employee
	for _, e := range r {
		if seen[e] {
			dups = append(dups, e)
			continue
		}
		seen[e] = true
	}
	return dups
}

// Blank 返回空白标识的位置
func (r Roster) Blank() []int {
	var idx []int
	for i, e := range r {
		if strings.TrimSpace(string(e)) == "" {
			idx = append(idx, i)
		}
	}
	return idx
}

// RosterOf 由字符串构造名单
func RosterOf(names ...string) Roster {
	r := make(Roster, len(names))
	for i, n := range names {
		r[i] = Employee(n)
	}
	return r
}
