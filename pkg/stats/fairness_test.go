package stats

import (
	"math"
	"testing"

	"github.com/kinmu/kinmu/pkg/model"
)

// grid 由列字符串构造排班表：W 上班，O 休息，其它为 unresolved；第 d 天的星期为 (d-1)%7
func grid(required int, cols ...string) *model.Schedule {
	s := &model.Schedule{Required: required, Totals: make([]int, len(cols))}
	for i := range cols {
		s.Employees = append(s.Employees, model.Employee(string(rune('A'+i))))
	}
	for d := 1; d <= len(cols[0]); d++ {
		row := model.DayRow{Day: d, Weekday: (d - 1) % 7, Cells: make([]model.CellState, len(cols))}
		for col, c := range cols {
			switch c[d-1] {
			case 'W':
				row.Cells[col] = model.CellWorking
				row.Headcount++
				s.Totals[col]++
			case 'O':
				row.Cells[col] = model.CellOff
			default:
				row.Cells[col] = model.CellUnresolved
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFairnessAnalyzer_Analyze(t *testing.T) {
	metrics := NewFairnessAnalyzer().Analyze(grid(1, "WOWOWOW", "OWOWOWO"))

	if metrics.MaxWorkdays != 4 || metrics.MinWorkdays != 3 || metrics.WorkdayRange != 1 {
		t.Errorf("极值错误: max=%d min=%d range=%d", metrics.MaxWorkdays, metrics.MinWorkdays, metrics.WorkdayRange)
	}
	if !almostEqual(metrics.AvgWorkdays, 3.5) {
		t.Errorf("AvgWorkdays = %f, want 3.5", metrics.AvgWorkdays)
	}
	if !almostEqual(metrics.WorkdayVariance, 0.25) || !almostEqual(metrics.WorkdayStdDev, 0.5) {
		t.Errorf("方差 = %f, 标准差 = %f", metrics.WorkdayVariance, metrics.WorkdayStdDev)
	}
	if !almostEqual(metrics.WorkdayGini, 1.0/14) {
		t.Errorf("WorkdayGini = %f, want %f", metrics.WorkdayGini, 1.0/14)
	}
	if metrics.WeekendGini != 0 {
		t.Errorf("两人周末各上一天，WeekendGini = %f", metrics.WeekendGini)
	}

	a := metrics.EmployeeStats[0]
	if a.Employee != "A" || a.WorkingDays != 4 || a.OffDays != 3 || a.WeekendDays != 1 {
		t.Errorf("A 的统计错误: %+v", a)
	}
	if !almostEqual(a.Deviation, 0.5/3.5*100) {
		t.Errorf("A.Deviation = %f", a.Deviation)
	}
	if !almostEqual(a.ShareOfTotal+metrics.EmployeeStats[1].ShareOfTotal, 100) {
		t.Error("出勤占比之和应为 100")
	}
}

func TestFairnessAnalyzer_EmptyInput(t *testing.T) {
	analyzer := NewFairnessAnalyzer()

	for _, s := range []*model.Schedule{nil, {}} {
		metrics := analyzer.Analyze(s)
		if metrics == nil || metrics.OverallFairnessScore != 100 {
			t.Fatalf("空排班表应返回满分指标, got %+v", metrics)
		}
	}
}

func TestFairnessAnalyzer_PerfectFairness(t *testing.T) {
	metrics := NewFairnessAnalyzer().Analyze(grid(1, "WOWOWO", "OWOWOW"))

	if metrics.WorkdayGini != 0 {
		t.Errorf("出勤相同时基尼系数应为 0, got %f", metrics.WorkdayGini)
	}
	if metrics.WorkdayRange != 0 {
		t.Errorf("WorkdayRange = %d", metrics.WorkdayRange)
	}
	for _, st := range metrics.EmployeeStats {
		if st.Deviation != 0 {
			t.Errorf("%s 偏差应为 0, got %f", st.Employee, st.Deviation)
		}
	}
}

func TestFairnessAnalyzer_LongestRunAndUnresolved(t *testing.T) {
	metrics := NewFairnessAnalyzer().Analyze(grid(1, "WWWOWW?W"))

	st := metrics.EmployeeStats[0]
	if st.LongestRun != 3 {
		t.Errorf("LongestRun = %d, want 3", st.LongestRun)
	}
	if st.WorkingDays != 6 || st.OffDays != 1 {
		t.Errorf("unresolved 不计入出勤或休息: working=%d off=%d", st.WorkingDays, st.OffDays)
	}
}

func TestFairnessAnalyzer_OverallScore(t *testing.T) {
	analyzer := NewFairnessAnalyzer()

	fair := analyzer.Analyze(grid(1, "WOWOWO", "OWOWOW"))
	unfair := analyzer.Analyze(grid(1, "WWWWWO", "OOOOOW"))

	if fair.OverallFairnessScore <= unfair.OverallFairnessScore {
		t.Errorf("公平方案评分应更高: %f <= %f", fair.OverallFairnessScore, unfair.OverallFairnessScore)
	}
	if unfair.OverallFairnessScore < 0 || fair.OverallFairnessScore > 100 {
		t.Error("评分应在 0-100 之间")
	}

	ranked := unfair.Ranked()
	if ranked[0].Employee != "A" || ranked[1].Employee != "B" {
		t.Errorf("Ranked 顺序错误: %v, %v", ranked[0].Employee, ranked[1].Employee)
	}

	diff := analyzer.CompareSchedules(grid(1, "WOWOWO", "OWOWOW"), grid(1, "WWWWWO", "OOOOOW"))
	if diff["overall_score_diff"] >= 0 {
		t.Errorf("overall_score_diff = %f, 应为负数", diff["overall_score_diff"])
	}
}

func TestCalculateGini(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"空", nil, 0},
		{"全零", []float64{0, 0, 0}, 0},
		{"相等", []float64{5, 5, 5}, 0},
		{"两人", []float64{10, 20}, 1.0 / 6},
		{"一人独占", []float64{0, 0, 0, 12}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateGini(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("calculateGini(%v) = %f, want %f", tt.values, got, tt.want)
			}
		})
	}
}
