// Package stats 提供排班统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/kinmu/kinmu/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 出勤天数公平性
	WorkdayGini     float64 `json:"workday_gini"`     // 出勤基尼系数 (0=完全公平, 1=完全不公平)
	WorkdayVariance float64 `json:"workday_variance"` // 出勤方差
	WorkdayStdDev   float64 `json:"workday_std_dev"`  // 出勤标准差
	AvgWorkdays     float64 `json:"avg_workdays"`     // 人均出勤
	MaxWorkdays     int     `json:"max_workdays"`
	MinWorkdays     int     `json:"min_workdays"`
	WorkdayRange    int     `json:"workday_range"` // 出勤极差

	// 周末出勤公平性
	WeekendGini float64 `json:"weekend_gini"`

	EmployeeStats []EmployeeStat `json:"employee_stats"`

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 0-100
}

// EmployeeStat 员工统计
type EmployeeStat struct {
	Employee     model.Employee `json:"employee"`
	WorkingDays  int            `json:"working_days"`
	OffDays      int            `json:"off_days"`
	WeekendDays  int            `json:"weekend_days"` // 周六、周日出勤
	LongestRun   int            `json:"longest_run"`  // 最长连续出勤
	Deviation    float64        `json:"deviation"`    // 与平均值的偏差百分比
	ShareOfTotal float64        `json:"share_of_total"`
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct {
	weekend map[int]bool // 周末的星期下标（0=周一）
}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{
		weekend: map[int]bool{5: true, 6: true},
	}
}

// Analyze 分析排班公平性；unresolved 单元格既不算出勤也不算休息
func (f *FairnessAnalyzer) Analyze(s *model.Schedule) *FairnessMetrics {
	if s == nil || len(s.Employees) == 0 || len(s.Rows) == 0 {
		return &FairnessMetrics{OverallFairnessScore: 100}
	}

	employeeStats := f.calculateEmployeeStats(s)

	workdays := make([]float64, len(employeeStats))
	weekends := make([]float64, len(employeeStats))
	total := 0
	for i, stat := range employeeStats {
		workdays[i] = float64(stat.WorkingDays)
		weekends[i] = float64(stat.WeekendDays)
		total += stat.WorkingDays
	}

	avg := calculateMean(workdays)
	variance := calculateVariance(workdays, avg)
	stdDev := math.Sqrt(variance)
	maxDays, minDays := calculateRange(workdays)

	for i := range employeeStats {
		if avg > 0 {
			employeeStats[i].Deviation = (float64(employeeStats[i].WorkingDays) - avg) / avg * 100
		}
		if total > 0 {
			employeeStats[i].ShareOfTotal = float64(employeeStats[i].WorkingDays) / float64(total) * 100
		}
	}

	workdayGini := calculateGini(workdays)
	weekendGini := calculateGini(weekends)

	return &FairnessMetrics{
		WorkdayGini:          workdayGini,
		WorkdayVariance:      variance,
		WorkdayStdDev:        stdDev,
		AvgWorkdays:          avg,
		MaxWorkdays:          int(maxDays),
		MinWorkdays:          int(minDays),
		WorkdayRange:         int(maxDays - minDays),
		WeekendGini:          weekendGini,
		EmployeeStats:        employeeStats,
		OverallFairnessScore: calculateOverallScore(workdayGini, weekendGini, stdDev, avg),
	}
}

// calculateEmployeeStats 按名单顺序统计每位员工
func (f *FairnessAnalyzer) calculateEmployeeStats(s *model.Schedule) []EmployeeStat {
	result := make([]EmployeeStat, len(s.Employees))
	runs := make([]int, len(s.Employees))

	for i, e := range s.Employees {
		result[i].Employee = e
	}
	for _, row := range s.Rows {
		for col, cell := range row.Cells {
			if col >= len(result) {
				break
			}
			stat := &result[col]
			switch cell {
			case model.CellWorking:
				stat.WorkingDays++
				if f.weekend[row.Weekday] {
					stat.WeekendDays++
				}
				runs[col]++
				if runs[col] > stat.LongestRun {
					stat.LongestRun = runs[col]
				}
			case model.CellOff:
				stat.OffDays++
				runs[col] = 0
			default:
				runs[col] = 0
			}
		}
	}
	return result
}

// Ranked 按出勤天数降序返回员工统计（同数按名单顺序）
func (m *FairnessMetrics) Ranked() []EmployeeStat {
	out := append([]EmployeeStat(nil), m.EmployeeStats...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WorkingDays > out[j].WorkingDays
	})
	return out
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算总体方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}
	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 计算综合公平性评分
func calculateOverallScore(workdayGini, weekendGini, stdDev, avg float64) float64 {
	const (
		workdayWeight = 0.6
		weekendWeight = 0.25
		stdDevWeight  = 0.15
	)

	workdayScore := (1 - workdayGini) * 100
	weekendScore := (1 - weekendGini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avg > 0 {
		cvScore = math.Max(0, 100-stdDev/avg*200)
	}

	score := workdayWeight*workdayScore +
		weekendWeight*weekendScore +
		stdDevWeight*cvScore
	return math.Max(0, math.Min(100, score))
}

// CompareSchedules 比较两个排班方案的公平性
func (f *FairnessAnalyzer) CompareSchedules(a, b *model.Schedule) map[string]float64 {
	m1 := f.Analyze(a)
	m2 := f.Analyze(b)

	return map[string]float64{
		"workday_gini_diff":       m2.WorkdayGini - m1.WorkdayGini,
		"weekend_gini_diff":       m2.WeekendGini - m1.WeekendGini,
		"overall_score_diff":      m2.OverallFairnessScore - m1.OverallFairnessScore,
		"schedule1_overall_score": m1.OverallFairnessScore,
		"schedule2_overall_score": m2.OverallFairnessScore,
	}
}
