// Package model 定义排班引擎的核心数据模型
package model

import "time"

// Day 月内日期（从1开始）
type Day = int

// MonthRef 已解析的年月
type MonthRef struct {
	Year  int        `json:"year" yaml:"year"`
	Month time.Month `json:"month" yaml:"month"`
}

// String 返回 YYYY-MM 格式
func (m MonthRef) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Date 返回该月指定日期
func (m MonthRef) Date(day Day) time.Time {
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}
