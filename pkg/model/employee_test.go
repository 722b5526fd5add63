package model

import (
	"reflect"
	"testing"
)

func TestRoster_Duplicates(t *testing.T) {
	tests := []struct {
		name   string
		roster Roster
		want   []Employee
	}{
		{"无重复", RosterOf("A", "B", "C"), nil},
		{"一个重复", RosterOf("A", "B", "A"), []Employee{"A"}},
		{"多次重复", RosterOf("A", "A", "B", "B", "A"), []Employee{"A", "B", "A"}},
		{"空名单", Roster{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.roster.Duplicates()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Duplicates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoster_IndexAndBlank(t *testing.T) {
	r := RosterOf("A", " ", "C")
	if r.Index("C") != 2 {
		t.Errorf("Index(C) = %d, want 2", r.Index("C"))
	}
	if r.Contains("Z") {
		t.Error("不应包含 Z")
	}
	if got := r.Blank(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("Blank() = %v, want [1]", got)
	}
	if got := r.Strings(); !reflect.DeepEqual(got, []string{"A", " ", "C"}) {
		t.Errorf("Strings() = %v", got)
	}
}

func TestSortPins(t *testing.T) {
	roster := RosterOf("B", "A")
	pins := []Pin{
		{Employee: "A", Day: 3, State: PinOff},
		{Employee: "B", Day: 9, State: PinOff},
		{Employee: "A", Day: 1, State: PinWorking},
		{Employee: "B", Day: 2, State: PinOff},
	}
	SortPins(pins, roster)

	want := []string{"B@2=off", "B@9=off", "A@1=working", "A@3=off"}
	for i, p := range pins {
		if p.String() != want[i] {
			t.Errorf("pins[%d] = %s, want %s", i, p, want[i])
		}
	}
}

func TestSchedule_Accessors(t *testing.T) {
	s := &Schedule{
		Employees: RosterOf("A", "B"),
		Rows: []DayRow{
			{Day: 1, Cells: []CellState{CellWorking, CellOff}, Headcount: 1},
			{Day: 2, Cells: []CellState{CellOff, CellWorking}, Headcount: 1},
			{Day: 3, Cells: []CellState{CellWorking, CellUnresolved}, Headcount: 1},
		},
		Totals: []int{2, 1},
	}

	if s.Days() != 3 {
		t.Errorf("Days() = %d", s.Days())
	}
	if s.Cell("B", 3) != CellUnresolved {
		t.Errorf("Cell(B,3) = %s", s.Cell("B", 3))
	}
	if s.Cell("Z", 1) != CellUnresolved || s.Cell("A", 9) != CellUnresolved {
		t.Error("越界访问应返回 unresolved")
	}
	if got := s.WorkingDays("A"); !reflect.DeepEqual(got, []Day{1, 3}) {
		t.Errorf("WorkingDays(A) = %v", got)
	}
	if s.Total("A") != 2 || s.Total("Z") != 0 {
		t.Error("Total 计算错误")
	}
	if got := s.Column("B"); !reflect.DeepEqual(got, []CellState{CellOff, CellWorking, CellUnresolved}) {
		t.Errorf("Column(B) = %v", got)
	}
}
