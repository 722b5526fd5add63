package preference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// 2026-02: 28 天，1 日为周日，周三为 4/11/18/25
var feb = calendar.Of(2026, time.February)

func days(pins []model.Pin, e model.Employee) []int {
	var out []int
	for _, p := range pins {
		if p.Employee == e {
			out = append(out, p.Day)
		}
	}
	return out
}

func TestBind(t *testing.T) {
	roster := model.RosterOf("A", "B")

	tests := []struct {
		name    string
		entry   model.PreferenceEntry
		want    []int
		wantLen int
	}{
		{
			name:  "显式日期",
			entry: model.PreferenceEntry{Employee: "A", Dates: []int{5, 3}},
			want:  []int{3, 5},
		},
		{
			name:    "显式日期取反",
			entry:   model.PreferenceEntry{Employee: "A", Dates: []int{2}, DatesInverted: true},
			wantLen: 27,
		},
		{
			name:  "星期展开",
			entry: model.PreferenceEntry{Employee: "A", Weekdays: []int{2}},
			want:  []int{4, 11, 18, 25},
		},
		{
			name:  "日期与星期重叠只出现一次",
			entry: model.PreferenceEntry{Employee: "A", Dates: []int{4}, Weekdays: []int{2}},
			want:  []int{4, 11, 18, 25},
		},
		{
			name:    "星期取反并扣除显式日期",
			entry:   model.PreferenceEntry{Employee: "A", Dates: []int{5}, Weekdays: []int{2}, WeekdaysInverted: true},
			wantLen: 24,
		},
		{
			name:  "空条目不产生固定",
			entry: model.PreferenceEntry{Employee: "A"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pins, err := NewBinder().Bind(feb, roster, []model.PreferenceEntry{tt.entry})
			require.NoError(t, err)
			got := days(pins, "A")
			if tt.wantLen > 0 {
				assert.Len(t, got, tt.wantLen)
			} else {
				assert.Equal(t, tt.want, got)
			}
			assert.Empty(t, days(pins, "B"))
		})
	}
}

func TestBindInvertedWeekdaysExcludesListed(t *testing.T) {
	pins, err := NewBinder().Bind(feb, model.RosterOf("A"), []model.PreferenceEntry{
		{Employee: "A", Weekdays: []int{2}, WeekdaysInverted: true},
	})
	require.NoError(t, err)

	got := days(pins, "A")
	assert.Len(t, got, 24)
	for _, wed := range []int{4, 11, 18, 25} {
		assert.NotContains(t, got, wed)
	}
}

// 绑定出的固定一律是"休息"。改动这一约定会改变整个求解语义。
func TestBindPinPolarityIsForcedOff(t *testing.T) {
	pins, err := NewBinder().Bind(feb, model.RosterOf("A", "B"), []model.PreferenceEntry{
		{Employee: "A", Dates: []int{1, 2}},
		{Employee: "B", Weekdays: []int{0}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, pins)
	for _, p := range pins {
		assert.Equal(t, model.PinOff, p.State, p.String())
	}
}

func TestBindDeduplicatesAndOrdersByRoster(t *testing.T) {
	pins, err := NewBinder().Bind(feb, model.RosterOf("B", "A"), []model.PreferenceEntry{
		{Employee: "A", Dates: []int{3}},
		{Employee: "A", Dates: []int{7, 3}},
		{Employee: "B", Dates: []int{9}},
	})
	require.NoError(t, err)

	got := make([]string, len(pins))
	for i, p := range pins {
		got[i] = p.String()
	}
	assert.Equal(t, []string{"B@9=off", "A@3=off", "A@7=off"}, got)
}

func TestBindRejectsInvalidEntries(t *testing.T) {
	roster := model.RosterOf("A")

	for name, entry := range map[string]model.PreferenceEntry{
		"员工不在名单": {Employee: "Z", Dates: []int{1}},
		"员工为空":   {Employee: "", Dates: []int{1}},
		"日期超出本月": {Employee: "A", Dates: []int{29}},
		"日期为零":   {Employee: "A", Dates: []int{0}},
		"星期越界":   {Employee: "A", Weekdays: []int{7}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewBinder().Bind(feb, roster, []model.PreferenceEntry{entry})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeInvalidInput), err.Error())
		})
	}
}

func TestExpandDoesNotPanicOnOutOfRangeInput(t *testing.T) {
	got := Expand(feb, model.PreferenceEntry{Employee: "A", Dates: []int{40, 41, 42}, DatesInverted: true})
	assert.Len(t, got, 28)
}
