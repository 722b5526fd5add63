package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// grid 由列字符串构造排班表：W 上班，O 休息，其它为 unresolved
func grid(cols ...string) *model.Schedule {
	s := &model.Schedule{Required: 1}
	for i := range cols {
		s.Employees = append(s.Employees, model.Employee(string(rune('A'+i))))
	}
	for d := 1; d <= len(cols[0]); d++ {
		row := model.DayRow{Day: d, Cells: make([]model.CellState, len(cols))}
		for col, c := range cols {
			switch c[d-1] {
			case 'W':
				row.Cells[col] = model.CellWorking
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

func types(conflicts []Conflict) []ConflictType {
	out := make([]ConflictType, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.Type
	}
	return out
}

func TestConflictDetector_ValidSchedule(t *testing.T) {
	detector := NewConflictDetector(nil)

	conflicts := detector.DetectAll(grid("WOOWOO", "OWOOWO", "OOWOOW"), []model.Pin{
		{Employee: "A", Day: 2, State: model.PinOff},
		{Employee: "C", Day: 3, State: model.PinWorking},
	})
	assert.Empty(t, conflicts)
}

func TestConflictDetector_DetectAll(t *testing.T) {
	detector := NewConflictDetector(DefaultDetectorConfig())

	conflicts := detector.DetectAll(grid("WWWOOO", "OOOWWO", "OOOOOO"), []model.Pin{
		{Employee: "A", Day: 1, State: model.PinOff},
	})

	require.Len(t, conflicts, 4, "%+v", conflicts)
	assert.Equal(t, []ConflictType{ConflictFairnessMin, ConflictConsecutive, ConflictPin, ConflictCoverage}, types(conflicts))

	assert.Equal(t, model.Employee("C"), conflicts[0].Employee)
	assert.Equal(t, model.Employee("A"), conflicts[1].Employee)
	assert.Equal(t, 1, conflicts[1].Day)
	assert.Equal(t, 6, conflicts[3].Day)
	assert.True(t, HasErrors(conflicts))
}

func TestConflictDetector_FairnessMax(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Params.UpperFactor = 1
	cfg.CheckConsecutive = false

	conflicts := NewConflictDetector(cfg).DetectAll(grid("WOWOWO", "OWOWOW", "OOOOOO"), nil)

	var got []ConflictType
	for _, c := range conflicts {
		if c.Employee != "" {
			got = append(got, c.Type)
		}
	}
	assert.Equal(t, []ConflictType{ConflictFairnessMax, ConflictFairnessMax, ConflictFairnessMin}, got)
}

func TestConflictDetector_SingleEmployeeHasNoRestRule(t *testing.T) {
	conflicts := NewConflictDetector(nil).DetectAll(grid("WWWWWW"), nil)
	assert.Empty(t, conflicts, "一人名单每天上班是唯一可行解")
}

func TestConflictDetector_ShapeAndUnresolved(t *testing.T) {
	detector := NewConflictDetector(nil)

	s := grid("WO", "OW")
	s.Rows[1].Cells = s.Rows[1].Cells[:1]
	conflicts := detector.DetectAll(s, nil)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictShape, conflicts[0].Type)

	conflicts = detector.DetectAll(grid("W?", "OO"), nil)
	assert.Contains(t, types(conflicts), ConflictUnresolved)
	assert.Contains(t, types(conflicts), ConflictCoverage, "unresolved 不计入上班人数")

	conflicts = detector.DetectAll(nil, nil)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictShape, conflicts[0].Type)
}

func TestConflictDetector_PinOutOfRangeIsWarning(t *testing.T) {
	conflicts := NewConflictDetector(nil).DetectAll(grid("WOOWOO", "OWOOWO", "OOWOOW"), []model.Pin{
		{Employee: "Z", Day: 1, State: model.PinOff},
	})
	require.Len(t, conflicts, 1)
	assert.Equal(t, SeverityWarning, conflicts[0].Severity)
	assert.False(t, HasErrors(conflicts))
}

func TestConflictDetector_DetectForChange(t *testing.T) {
	detector := NewConflictDetector(nil)
	s := grid("WOOWOO", "OWOOWO", "OOWOOW")

	conflicts := detector.DetectForChange(s, nil, "A", 2, model.CellWorking)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictCoverage, conflicts[0].Type)
	assert.Equal(t, 2, conflicts[0].Day)
	assert.Equal(t, model.CellOff, s.Cell("A", 2), "原表不被修改")

	conflicts = detector.DetectForChange(s, nil, "A", 40, model.CellOff)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictShape, conflicts[0].Type)

	// 单元格不足的行不会越界
	s.Rows[0].Cells = s.Rows[0].Cells[:1]
	conflicts = detector.DetectForChange(s, nil, "C", 1, model.CellOff)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictShape, conflicts[0].Type)
}

func TestConflictDetector_Validate(t *testing.T) {
	detector := NewConflictDetector(nil)

	conflicts, err := detector.Validate(grid("WOOWOO", "OWOOWO", "OOWOOW"), nil)
	assert.NoError(t, err)
	assert.Empty(t, conflicts)

	conflicts, err = detector.Validate(grid("WWWOOO", "OOOWWO", "OOOOOO"), nil)
	assert.NotEmpty(t, conflicts)
	assert.True(t, errors.Is(err, errors.CodeScheduleConflict))
	assert.Equal(t, 409, errors.GetHTTPStatus(err))
}
