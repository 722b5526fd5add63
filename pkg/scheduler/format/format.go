// Package format 把求解结果整理为按天排列的排班表
package format

import (
	"fmt"
	"time"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
	"github.com/kinmu/kinmu/pkg/scheduler/solver"
)

// Formatter 排班表格式化器
type Formatter struct {
	labels [7]string
	now    func() time.Time
}

// Option 格式化选项
type Option func(*Formatter)

// WithLocale 设置星期标签语言（ja/en/zh）
func WithLocale(locale string) Option {
	return func(f *Formatter) {
		f.labels = calendar.Labels(locale)
	}
}

// WithClock 设置生成时间来源
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) {
		f.now = now
	}
}

// NewFormatter 创建格式化器，默认日文星期标签
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		labels: calendar.WeekdayNamesJA,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format 生成排班表；非最优结果直接返回对应错误，不生成表格
//
// 变量取值 0 为上班，1 为休息，未求出的变量记为 unresolved，不计入任何合计。
func (f *Formatter) Format(month calendar.Month, sys *constraint.System, out *solver.Outcome) (*model.Schedule, error) {
	if err := out.Err(); err != nil {
		return nil, err
	}
	if sys == nil {
		return nil, errors.New(errors.CodeInternal, "约束系统为空")
	}
	if sys.Days != month.Days {
		return nil, errors.Newf(errors.CodeInternal, "约束系统天数 %d 与 %s 的天数 %d 不符", sys.Days, month.Ref(), month.Days)
	}

	m := len(sys.Employees)
	sched := &model.Schedule{
		Month:       month.Ref(),
		Employees:   append(model.Roster(nil), sys.Employees...),
		Rows:        make([]model.DayRow, month.Days),
		Totals:      make([]int, m),
		Required:    sys.Headcount,
		Objective:   out.Objective,
		Status:      out.Status.String(),
		Solver:      out.Solver,
		SolveTime:   out.Duration,
		GeneratedAt: f.now(),
	}

	for d := 1; d <= month.Days; d++ {
		wd := month.Weekday(d)
		row := model.DayRow{
			Day:          d,
			Weekday:      wd,
			WeekdayLabel: f.labels[wd],
			Cells:        make([]model.CellState, m),
		}
		for col := range sys.Employees {
			switch valueAt(out, sys.Var(col, d)) {
			case solver.Zero:
				row.Cells[col] = model.CellWorking
				row.Headcount++
				sched.Totals[col]++
			case solver.One:
				row.Cells[col] = model.CellOff
			default:
				row.Cells[col] = model.CellUnresolved
			}
		}
		sched.Rows[d-1] = row
	}
	return sched, nil
}

func valueAt(out *solver.Outcome, v int) solver.Value {
	if v < 0 || v >= len(out.Values) {
		return solver.Unresolved
	}
	return out.Values[v]
}

// Summary 返回一行摘要
func Summary(s *model.Schedule) string {
	return fmt.Sprintf("%s %d 人 %d 天，休息合计 %.0f（%s）", s.Month, len(s.Employees), s.Days(), s.Objective, s.Status)
}
