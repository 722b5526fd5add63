package stats

import (
	"github.com/kinmu/kinmu/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	TotalDays       int     `json:"total_days"`
	CoveredDays     int     `json:"covered_days"`     // 上班人数恰好满足需求的天数
	OverallCoverage float64 `json:"overall_coverage"` // 整体覆盖率 (%)

	DailyCoverage   []DayCoverage       `json:"daily_coverage"`
	WeekdayCoverage map[int]float64     `json:"weekday_coverage"` // 按星期（0=周一）的平均覆盖率
	Understaffed    []StaffingDeviation `json:"understaffed"`
	Overstaffed     []StaffingDeviation `json:"overstaffed"`

	UnresolvedCells int `json:"unresolved_cells"`

	// 需求满足度：Σ min(实际, 需求) / Σ 需求
	DemandSatisfaction float64 `json:"demand_satisfaction"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Day          model.Day `json:"day"`
	Weekday      int       `json:"weekday"`
	Required     int       `json:"required"`
	Assigned     int       `json:"assigned"`
	Unresolved   int       `json:"unresolved"`
	CoverageRate float64   `json:"coverage_rate"`
}

// StaffingDeviation 人数偏离需求的日期
type StaffingDeviation struct {
	Day      model.Day `json:"day"`
	Required int       `json:"required"`
	Assigned int       `json:"assigned"`
	Delta    int       `json:"delta"` // 实际 − 需求
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct {
	required int
}

// NewCoverageAnalyzer 创建覆盖率分析器，默认每天需要 1 人
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{required: 1}
}

// SetRequired 设置排班表未记录需求时使用的每日人数
func (c *CoverageAnalyzer) SetRequired(n int) {
	if n > 0 {
		c.required = n
	}
}

// Analyze 分析覆盖率；出勤人数按单元格重新计数，不信任行内 Headcount
func (c *CoverageAnalyzer) Analyze(s *model.Schedule) *CoverageMetrics {
	if s == nil || len(s.Rows) == 0 {
		return &CoverageMetrics{
			WeekdayCoverage:    make(map[int]float64),
			OverallCoverage:    100,
			DemandSatisfaction: 100,
		}
	}

	required := c.required
	if s.Required > 0 {
		required = s.Required
	}

	metrics := &CoverageMetrics{
		TotalDays:       len(s.Rows),
		DailyCoverage:   make([]DayCoverage, 0, len(s.Rows)),
		WeekdayCoverage: make(map[int]float64),
	}

	weekdaySum := make(map[int]float64)
	weekdayCount := make(map[int]int)
	satisfied, demanded := 0, 0

	for _, row := range s.Rows {
		day := DayCoverage{Day: row.Day, Weekday: row.Weekday, Required: required}
		for _, cell := range row.Cells {
			switch cell {
			case model.CellWorking:
				day.Assigned++
			case model.CellOff:
			default:
				day.Unresolved++
			}
		}
		day.CoverageRate = float64(day.Assigned) / float64(required) * 100
		metrics.UnresolvedCells += day.Unresolved

		switch {
		case day.Assigned == required:
			metrics.CoveredDays++
		case day.Assigned < required:
			metrics.Understaffed = append(metrics.Understaffed, deviation(day))
		default:
			metrics.Overstaffed = append(metrics.Overstaffed, deviation(day))
		}

		satisfied += min(day.Assigned, required)
		demanded += required
		weekdaySum[row.Weekday] += day.CoverageRate
		weekdayCount[row.Weekday]++
		metrics.DailyCoverage = append(metrics.DailyCoverage, day)
	}

	metrics.OverallCoverage = float64(metrics.CoveredDays) / float64(metrics.TotalDays) * 100
	metrics.DemandSatisfaction = float64(satisfied) / float64(demanded) * 100
	for wd, sum := range weekdaySum {
		metrics.WeekdayCoverage[wd] = sum / float64(weekdayCount[wd])
	}
	return metrics
}

func deviation(d DayCoverage) StaffingDeviation {
	return StaffingDeviation{
		Day:      d.Day,
		Required: d.Required,
		Assigned: d.Assigned,
		Delta:    d.Assigned - d.Required,
	}
}
