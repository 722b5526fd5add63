// Package validator 提供排班验证功能
package validator

import (
	"fmt"
	"sort"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictShape       ConflictType = "shape"           // 表格结构错误
	ConflictUnresolved  ConflictType = "unresolved"      // 未确定的单元格
	ConflictCoverage    ConflictType = "coverage"        // 当日上班人数不符
	ConflictFairnessMin ConflictType = "fairness_min"    // 出勤天数过少
	ConflictFairnessMax ConflictType = "fairness_max"    // 出勤天数过多
	ConflictConsecutive ConflictType = "max_consecutive" // 连续上班过长
	ConflictPin         ConflictType = "pin"             // 违反固定安排
)

// 严重程度
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType   `json:"type"`
	Severity string         `json:"severity"`
	Employee model.Employee `json:"employee,omitempty"`
	Day      model.Day      `json:"day,omitempty"`
	Message  string         `json:"message"`
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	Params           constraint.Params
	CheckFairness    bool
	CheckConsecutive bool
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		Params:           constraint.DefaultParams(),
		CheckFairness:    true,
		CheckConsecutive: true,
	}
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectAll 检测排班表中的所有冲突，按日期、员工排序
func (d *ConflictDetector) DetectAll(s *model.Schedule, pins []model.Pin) []Conflict {
	if s == nil {
		return []Conflict{{Type: ConflictShape, Severity: SeverityError, Message: "排班表为空"}}
	}
	if shape := d.detectShape(s); len(shape) > 0 {
		return shape
	}

	var conflicts []Conflict
	conflicts = append(conflicts, d.detectUnresolved(s)...)
	conflicts = append(conflicts, d.detectCoverage(s)...)
	if d.config.CheckFairness {
		conflicts = append(conflicts, d.detectFairness(s)...)
	}
	if d.config.CheckConsecutive {
		conflicts = append(conflicts, d.detectConsecutiveDays(s)...)
	}
	conflicts = append(conflicts, d.detectPins(s, pins)...)

	order := make(map[model.Employee]int, len(s.Employees))
	for i, e := range s.Employees {
		order[e] = i
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Day != conflicts[j].Day {
			return conflicts[i].Day < conflicts[j].Day
		}
		return order[conflicts[i].Employee] < order[conflicts[j].Employee]
	})
	return conflicts
}

// DetectForChange 检测把某员工某天改为指定状态后，与该员工或该日相关的冲突
func (d *ConflictDetector) DetectForChange(s *model.Schedule, pins []model.Pin, e model.Employee, day model.Day, state model.CellState) []Conflict {
	col := s.Employees.Index(e)
	if col < 0 || day < 1 || day > len(s.Rows) || col >= len(s.Rows[day-1].Cells) {
		return []Conflict{{
			Type:     ConflictShape,
			Severity: SeverityError,
			Employee: e,
			Day:      day,
			Message:  fmt.Sprintf("单元格 %s 第 %d 天不存在", e, day),
		}}
	}

	changed := *s
	changed.Rows = make([]model.DayRow, len(s.Rows))
	for i, row := range s.Rows {
		row.Cells = append([]model.CellState(nil), row.Cells...)
		changed.Rows[i] = row
	}
	changed.Rows[day-1].Cells[col] = state

	var related []Conflict
	for _, c := range d.DetectAll(&changed, pins) {
		if c.Employee == e || (c.Employee == "" && c.Day == day) {
			related = append(related, c)
		}
	}
	return related
}

// detectShape 检查每行单元格数量与名单一致、日期连续
func (d *ConflictDetector) detectShape(s *model.Schedule) []Conflict {
	var conflicts []Conflict
	if len(s.Employees) == 0 || len(s.Rows) == 0 {
		return []Conflict{{Type: ConflictShape, Severity: SeverityError, Message: "排班表缺少员工或日期"}}
	}
	if dups := s.Employees.Duplicates(); len(dups) > 0 {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictShape,
			Severity: SeverityError,
			Employee: dups[0],
			Message:  fmt.Sprintf("员工 %s 重复出现", dups[0]),
		})
	}
	for i, row := range s.Rows {
		if row.Day != i+1 {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictShape,
				Severity: SeverityError,
				Day:      i + 1,
				Message:  fmt.Sprintf("第 %d 行的日期为 %d", i+1, row.Day),
			})
		}
		if len(row.Cells) != len(s.Employees) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictShape,
				Severity: SeverityError,
				Day:      i + 1,
				Message:  fmt.Sprintf("第 %d 天有 %d 个单元格，名单有 %d 人", i+1, len(row.Cells), len(s.Employees)),
			})
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectUnresolved(s *model.Schedule) []Conflict {
	var conflicts []Conflict
	for _, row := range s.Rows {
		for col, cell := range row.Cells {
			if cell != model.CellWorking && cell != model.CellOff {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictUnresolved,
					Severity: SeverityError,
					Employee: s.Employees[col],
					Day:      row.Day,
					Message:  fmt.Sprintf("%s 第 %d 天状态未确定", s.Employees[col], row.Day),
				})
			}
		}
	}
	return conflicts
}

// detectCoverage 每天上班人数必须恰好等于需求人数
func (d *ConflictDetector) detectCoverage(s *model.Schedule) []Conflict {
	required := d.config.Params.Headcount
	var conflicts []Conflict
	for _, row := range s.Rows {
		working := countWorking(row.Cells)
		if working != required {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictCoverage,
				Severity: SeverityError,
				Day:      row.Day,
				Message:  fmt.Sprintf("第 %d 天上班 %d 人，需要 %d 人", row.Day, working, required),
			})
		}
	}
	return conflicts
}

// detectFairness 出勤天数须在 [n/(m·下限系数), (n/m)·上限系数] 之内
func (d *ConflictDetector) detectFairness(s *model.Schedule) []Conflict {
	lower, upper := d.config.Params.WorkingBounds(len(s.Rows), len(s.Employees))
	var conflicts []Conflict
	for col, e := range s.Employees {
		working := 0
		for _, row := range s.Rows {
			if row.Cells[col] == model.CellWorking {
				working++
			}
		}
		switch {
		case float64(working) < lower:
			conflicts = append(conflicts, Conflict{
				Type:     ConflictFairnessMin,
				Severity: SeverityError,
				Employee: e,
				Message:  fmt.Sprintf("%s 出勤 %d 天，少于下限 %.2f", e, working, lower),
			})
		case float64(working) > upper:
			conflicts = append(conflicts, Conflict{
				Type:     ConflictFairnessMax,
				Severity: SeverityError,
				Employee: e,
				Message:  fmt.Sprintf("%s 出勤 %d 天，超过上限 %.2f", e, working, upper),
			})
		}
	}
	return conflicts
}

// detectConsecutiveDays 连续上班达到窗口长度即冲突，每段只报告一次
func (d *ConflictDetector) detectConsecutiveDays(s *model.Schedule) []Conflict {
	p := d.config.Params
	if !constraint.RestRuleApplies(len(s.Employees), len(s.Rows), p) {
		return nil
	}

	var conflicts []Conflict
	for col, e := range s.Employees {
		run := 0
		for i := 0; i <= len(s.Rows); i++ {
			if i < len(s.Rows) && s.Rows[i].Cells[col] == model.CellWorking {
				run++
				continue
			}
			if run >= p.Window {
				start := i - run + 1
				conflicts = append(conflicts, Conflict{
					Type:     ConflictConsecutive,
					Severity: SeverityError,
					Employee: e,
					Day:      start,
					Message:  fmt.Sprintf("%s 从第 %d 天起连续上班 %d 天，上限 %d 天", e, start, run, p.Window-1),
				})
			}
			run = 0
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectPins(s *model.Schedule, pins []model.Pin) []Conflict {
	var conflicts []Conflict
	for _, pin := range pins {
		col := s.Employees.Index(pin.Employee)
		if col < 0 || pin.Day < 1 || pin.Day > len(s.Rows) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictPin,
				Severity: SeverityWarning,
				Employee: pin.Employee,
				Day:      pin.Day,
				Message:  fmt.Sprintf("固定安排 %s 不在排班表范围内", pin),
			})
			continue
		}
		want := model.CellOff
		if pin.State == model.PinWorking {
			want = model.CellWorking
		}
		if got := s.Rows[pin.Day-1].Cells[col]; got != want {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictPin,
				Severity: SeverityError,
				Employee: pin.Employee,
				Day:      pin.Day,
				Message:  fmt.Sprintf("%s 第 %d 天应为 %s，实际为 %s", pin.Employee, pin.Day, want, got),
			})
		}
	}
	return conflicts
}

func countWorking(cells []model.CellState) int {
	n := 0
	for _, c := range cells {
		if c == model.CellWorking {
			n++
		}
	}
	return n
}

// HasErrors 是否存在 error 级别的冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate 检测冲突，存在 error 级别冲突时返回 SCHEDULE_CONFLICT
func (d *ConflictDetector) Validate(s *model.Schedule, pins []model.Pin) ([]Conflict, error) {
	conflicts := d.DetectAll(s, pins)
	if !HasErrors(conflicts) {
		return conflicts, nil
	}
	err := errors.Newf(errors.CodeScheduleConflict, "排班表存在 %d 处冲突", len(conflicts))
	return conflicts, err.WithField("conflicts", len(conflicts))
}
