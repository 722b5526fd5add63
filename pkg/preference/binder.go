// Package preference 把原始偏好条目展开为按天的固定约束（Pin）
package preference

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// Binder 偏好绑定器
//
// 绑定出的 Pin 一律为 model.PinOff：列出的日期固定为休息（变量取 1）。
// 反转标志表示"除列出的日期以外"。
type Binder struct {
	validate *validator.Validate
}

// NewBinder 创建偏好绑定器
func NewBinder() *Binder {
	return &Binder{validate: validator.New()}
}

type cell struct {
	employee model.Employee
	day      model.Day
}

// Bind 展开偏好条目
func (b *Binder) Bind(month calendar.Month, roster model.Roster, entries []model.PreferenceEntry) ([]model.Pin, error) {
	seen := make(map[cell]bool)
	pins := make([]model.Pin, 0)

	for i, entry := range entries {
		if err := b.check(month, roster, i, entry); err != nil {
			return nil, err
		}

		for _, d := range Expand(month, entry) {
			c := cell{entry.Employee, d}
			if seen[c] {
				continue
			}
			seen[c] = true
			pins = append(pins, model.Pin{Employee: entry.Employee, Day: d, State: model.PinOff})
		}
	}

	model.SortPins(pins, roster)
	return pins, nil
}

// Expand 计算单个条目覆盖的日期（升序，不校验）
//
// 显式日期先按反转标志取补集；星期展开后同样取补集，并去掉已被显式日期覆盖的日期。
func Expand(month calendar.Month, entry model.PreferenceEntry) []model.Day {
	dateSet := toSet(entry.Dates)
	if entry.DatesInverted {
		dateSet = complement(month, dateSet)
	}

	weekdaySet := toSet(month.DaysOnWeekdays(entry.Weekdays))
	if entry.WeekdaysInverted {
		weekdaySet = complement(month, weekdaySet)
	}
	for d := range dateSet {
		delete(weekdaySet, d)
	}

	days := make([]model.Day, 0, len(dateSet)+len(weekdaySet))
	for d := range dateSet {
		days = append(days, d)
	}
	for d := range weekdaySet {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

func (b *Binder) check(month calendar.Month, roster model.Roster, idx int, entry model.PreferenceEntry) error {
	field := fmt.Sprintf("preferences[%d]", idx)

	if err := b.validate.Struct(entry); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s 不满足 %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			}
			return errors.InvalidInput(field, strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, errors.CodeInvalidInput, "偏好条目校验失败")
	}

	if !roster.Contains(entry.Employee) {
		return errors.InvalidInput(field+".employee", fmt.Sprintf("员工 %s 不在名单中", entry.Employee))
	}
	for _, d := range entry.Dates {
		if !month.Contains(d) {
			return errors.InvalidInput(field+".dates", fmt.Sprintf("日期 %d 超出 %s 的范围 1..%d", d, month.Ref(), month.Days))
		}
	}
	return nil
}

func toSet(days []int) map[model.Day]bool {
	set := make(map[model.Day]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

func complement(month calendar.Month, set map[model.Day]bool) map[model.Day]bool {
	out := make(map[model.Day]bool, month.Days)
	for d := 1; d <= month.Days; d++ {
		if !set[d] {
			out[d] = true
		}
	}
	return out
}
