package model

import (
	"time"

	"github.com/google/uuid"
)

// CellState 单元格状态
type CellState string

const (
	CellWorking    CellState = "working"
	CellOff        CellState = "off"
	CellUnresolved CellState = "unresolved"
)

// DayRow 排班表中的一行（一天）
type DayRow struct {
	Day          Day         `json:"day"`
	Weekday      int         `json:"weekday"` // 0=周一 … 6=周日
	WeekdayLabel string      `json:"weekday_label"`
	Cells        []CellState `json:"cells"` // 与 Schedule.Employees 同序
	Headcount    int         `json:"headcount"`
}

// Schedule 排班结果（只读）
type Schedule struct {
	ID          uuid.UUID     `json:"id"`
	Month       MonthRef      `json:"month"`
	Employees   Roster        `json:"employees"`
	Rows        []DayRow      `json:"rows"`
	Totals      []int         `json:"totals"` // 每位员工的出勤天数
	Required    int           `json:"required_headcount"`
	Objective   float64       `json:"objective"` // 休息总天数
	Status      string        `json:"status"`
	Solver      string        `json:"solver"`
	SolveTime   time.Duration `json:"solve_time"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Days 返回天数
func (s *Schedule) Days() int {
	return len(s.Rows)
}

// Cell 返回指定员工某天的状态
func (s *Schedule) Cell(e Employee, day Day) CellState {
	col := s.Employees.Index(e)
	if col < 0 || day < 1 || day > len(s.Rows) {
		return CellUnresolved
	}
	return s.Rows[day-1].Cells[col]
}

// Total 返回员工的出勤天数
func (s *Schedule) Total(e Employee) int {
	col := s.Employees.Index(e)
	if col < 0 {
		return 0
	}
	return s.Totals[col]
}

// WorkingDays 返回员工上班的日期
func (s *Schedule) WorkingDays(e Employee) []Day {
	col := s.Employees.Index(e)
	if col < 0 {
		return nil
	}
	var days []Day
	for _, row := range s.Rows {
		if row.Cells[col] == CellWorking {
			days = append(days, row.Day)
		}
	}
	return days
}

// Column 返回某员工整月的状态
func (s *Schedule) Column(e Employee) []CellState {
	col := s.Employees.Index(e)
	if col < 0 {
		return nil
	}
	out := make([]CellState, len(s.Rows))
	for i, row := range s.Rows {
		out[i] = row.Cells[col]
	}
	return out
}
