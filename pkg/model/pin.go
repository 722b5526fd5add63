package model

import (
	"fmt"
	"sort"
)

// PinState 固定状态
type PinState string

const (
	PinOff     PinState = "off"     // 强制休息
	PinWorking PinState = "working" // 强制上班
)

// Valid 检查状态是否合法
func (s PinState) Valid() bool {
	return s == PinOff || s == PinWorking
}

// Pin 固定某员工某天的状态
type Pin struct {
	Employee Employee `json:"employee" yaml:"employee" toml:"employee"`
	Day      Day      `json:"day" yaml:"day" toml:"day"`
	State    PinState `json:"state" yaml:"state" toml:"state"`
}

// String 返回可读描述
func (p Pin) String() string {
	return fmt.Sprintf("%s@%d=%s", p.Employee, p.Day, p.State)
}

// SortPins 按名单顺序、日期排序
func SortPins(pins []Pin, roster Roster) {
	order := make(map[Employee]int, len(roster))
	for i, e := range roster {
		order[e] = i
	}
	sort.SliceStable(pins, func(i, j int) bool {
		oi, oj := order[pins[i].Employee], order[pins[j].Employee]
		if oi != oj {
			return oi < oj
		}
		return pins[i].Day < pins[j].Day
	})
}

// PreferenceEntry 原始偏好条目（展开前）
//
// Dates 与 Weekdays 为列出的日期/星期；对应的 Inverted 为 true 时表示
// "除这些以外的所有日期"。Weekday 0 = 周一 … 6 = 周日。
type PreferenceEntry struct {
	Employee         Employee `json:"employee" yaml:"employee" toml:"employee" validate:"required"`
	Dates            []Day    `json:"dates,omitempty" yaml:"dates,omitempty" toml:"dates,omitempty" validate:"dive,min=1,max=31"`
	DatesInverted    bool     `json:"dates_inverted,omitempty" yaml:"dates_inverted,omitempty" toml:"dates_inverted,omitempty"`
	Weekdays         []int    `json:"weekdays,omitempty" yaml:"weekdays,omitempty" toml:"weekdays,omitempty" validate:"dive,min=0,max=6"`
	WeekdaysInverted bool     `json:"weekdays_inverted,omitempty" yaml:"weekdays_inverted,omitempty" toml:"weekdays_inverted,omitempty"`
}
