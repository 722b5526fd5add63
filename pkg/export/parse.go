package export

import (
	"strconv"
	"strings"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// ParseTable 把 Table 生成的表格还原为排班表；合计行被忽略，合计重新计数
func ParseTable(data Dataset, month calendar.Month, marks Marks) (*model.Schedule, error) {
	if len(data.Headers) < 3 {
		return nil, errors.InvalidInput("headers", "表头至少需要日期、星期和一名员工")
	}
	roster := model.RosterOf(data.Headers[2:]...)
	if dups := roster.Duplicates(); len(dups) > 0 {
		return nil, errors.InvalidInput("headers", "员工重复: "+string(dups[0]))
	}

	sched := &model.Schedule{
		Month:     month.Ref(),
		Employees: roster,
		Totals:    make([]int, len(roster)),
	}
	for i, record := range data.Rows {
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		day, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			// 合计行等非日期行
			continue
		}
		if day != len(sched.Rows)+1 {
			return nil, errors.Newf(errors.CodeInvalidInput, "第 %d 行的日期 %d 不连续", i+2, day)
		}
		if !month.Contains(day) {
			return nil, errors.Newf(errors.CodeInvalidInput, "日期 %d 超出 %s", day, month.Ref())
		}

		row := model.DayRow{
			Day:     day,
			Weekday: month.Weekday(day),
			Cells:   make([]model.CellState, len(roster)),
		}
		if len(record) > 1 {
			row.WeekdayLabel = record[1]
		}
		for col := range roster {
			mark := ""
			// 行尾的空单元格会被读取端截掉
			if col+2 < len(record) {
				mark = strings.TrimSpace(record[col+2])
			}
			state, ok := marks.parse(mark)
			if !ok {
				return nil, errors.Newf(errors.CodeInvalidInput, "第 %d 天 %s 的内容 %q 无法识别", day, roster[col], mark)
			}
			row.Cells[col] = state
			if state == model.CellWorking {
				row.Headcount++
				sched.Totals[col]++
			}
		}
		sched.Rows = append(sched.Rows, row)
	}
	if len(sched.Rows) != month.Days {
		return nil, errors.Newf(errors.CodeInvalidInput, "%s 应有 %d 天，表格只有 %d 天", month.Ref(), month.Days, len(sched.Rows))
	}
	return sched, nil
}

func (m Marks) parse(s string) (model.CellState, bool) {
	switch s {
	case m.Working:
		return model.CellWorking, true
	case m.Off:
		return model.CellOff, true
	case m.Unresolved:
		return model.CellUnresolved, true
	default:
		return "", false
	}
}
