// Package calendar 解析目标月份：天数、首日星期以及星期到日期的展开
package calendar

import (
	"fmt"
	"time"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// SelectorKind 月份选择方式
type SelectorKind string

const (
	KindThisMonth SelectorKind = "this_month"
	KindNextMonth SelectorKind = "next_month"
	KindOffset    SelectorKind = "offset"
	KindExplicit  SelectorKind = "explicit"
)

// MonthSelector 月份选择器
type MonthSelector struct {
	Kind   SelectorKind `json:"kind" yaml:"kind" toml:"kind"`
	Offset int          `json:"offset,omitempty" yaml:"offset,omitempty" toml:"offset,omitempty"`
	Year   int          `json:"year,omitempty" yaml:"year,omitempty" toml:"year,omitempty"`
	Month  int          `json:"month,omitempty" yaml:"month,omitempty" toml:"month,omitempty"`
}

// ThisMonth 本月
func ThisMonth() MonthSelector { return MonthSelector{Kind: KindThisMonth} }

// NextMonth 下月
func NextMonth() MonthSelector { return MonthSelector{Kind: KindNextMonth} }

// Offset 距本月 k 个月
func Offset(k int) MonthSelector { return MonthSelector{Kind: KindOffset, Offset: k} }

// Explicit 指定年月
func Explicit(year int, month time.Month) MonthSelector {
	return MonthSelector{Kind: KindExplicit, Year: year, Month: int(month)}
}

// String 返回可读描述
func (s MonthSelector) String() string {
	switch s.Kind {
	case KindOffset:
		return fmt.Sprintf("offset(%d)", s.Offset)
	case KindExplicit:
		return fmt.Sprintf("%04d-%02d", s.Year, s.Month)
	case "":
		return string(KindThisMonth)
	default:
		return string(s.Kind)
	}
}

// Month 解析后的月份
type Month struct {
	Year         int        `json:"year"`
	Month        time.Month `json:"month"`
	Days         int        `json:"days"`
	FirstWeekday int        `json:"first_weekday"` // 0=周一 … 6=周日
}

// Ref 返回年月引用
func (m Month) Ref() model.MonthRef {
	return model.MonthRef{Year: m.Year, Month: m.Month}
}

// Contains 检查日期是否在本月范围内
func (m Month) Contains(day int) bool {
	return day >= 1 && day <= m.Days
}

// Weekday 返回某天的星期（0=周一）
func (m Month) Weekday(day int) int {
	return (m.FirstWeekday + day - 1) % 7
}

// AllDays 返回 1..Days
func (m Month) AllDays() []int {
	days := make([]int, m.Days)
	for i := range days {
		days[i] = i + 1
	}
	return days
}

// DaysOnWeekdays 把星期集合展开为本月的日期（升序）
func (m Month) DaysOnWeekdays(weekdays []int) []int {
	want := [7]bool{}
	for _, w := range weekdays {
		if w >= 0 && w < 7 {
			want[w] = true
		}
	}
	var days []int
	for d := 1; d <= m.Days; d++ {
		if want[m.Weekday(d)] {
			days = append(days, d)
		}
	}
	return days
}

// Resolver 月份解析器
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

// Option 解析器选项
type Option func(*Resolver)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLocation 指定时区（"本月"按该时区计算）
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) { r.loc = loc }
}

// NewResolver 创建月份解析器
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 解析月份选择器
func (r *Resolver) Resolve(sel MonthSelector) (Month, error) {
	now := r.now().In(r.loc)
	year, month := now.Year(), now.Month()

	switch sel.Kind {
	case KindThisMonth, "":
	case KindNextMonth:
		year, month = shift(year, month, 1)
	case KindOffset:
		if sel.Offset < 0 {
			return Month{}, errors.InvalidInput("month.offset", fmt.Sprintf("偏移量不能为负数: %d", sel.Offset))
		}
		year, month = shift(year, month, sel.Offset)
	case KindExplicit:
		if sel.Month < 1 || sel.Month > 12 {
			return Month{}, errors.InvalidInput("month.month", fmt.Sprintf("月份超出范围: %d", sel.Month))
		}
		if sel.Year < 1 || sel.Year > 9999 {
			return Month{}, errors.InvalidInput("month.year", fmt.Sprintf("年份超出范围: %d", sel.Year))
		}
		year, month = sel.Year, time.Month(sel.Month)
	default:
		return Month{}, errors.InvalidInput("month.kind", fmt.Sprintf("未知的月份选择方式: %s", sel.Kind))
	}

	return Of(year, month), nil
}

// Of 直接由年月构造 Month
func Of(year int, month time.Month) Month {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	return Month{
		Year:         year,
		Month:        month,
		Days:         days,
		FirstWeekday: MondayIndex(first.Weekday()),
	}
}

// MondayIndex 把 time.Weekday（周日=0）转换为周一=0 的编号
func MondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// shift 按日历把年月前移 k 个月
func shift(year int, month time.Month, k int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, k, 0)
	return t.Year(), t.Month()
}
