package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/internal/repository"
	"github.com/kinmu/kinmu/pkg/model"
)

// memoryPreferences 内存实现的偏好表
type memoryPreferences struct {
	mu     sync.Mutex
	marks  map[string]repository.PreferenceMark
	purged struct {
		now    time.Time
		months int
	}
}

func newMemoryPreferences() *memoryPreferences {
	return &memoryPreferences{marks: make(map[string]repository.PreferenceMark)}
}

func (m *memoryPreferences) Upsert(_ context.Context, e model.Employee, month model.MonthRef, days []model.Day, inverted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listed := make(map[int]bool)
	for _, d := range days {
		listed[d] = true
	}
	last := month.Date(1).AddDate(0, 1, -1).Day()
	for d := 1; d <= last; d++ {
		mark := repository.MarkUnlisted
		if listed[d] != inverted {
			mark = repository.MarkListed
		}
		day := month.Date(d)
		m.marks[day.Format("2006-01-02")+"/"+string(e)] = repository.PreferenceMark{Day: day, Employee: e, Mark: int16(mark)}
	}
	return nil
}

func (m *memoryPreferences) ListMonth(_ context.Context, month model.MonthRef) ([]repository.PreferenceMark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.PreferenceMark
	for _, mark := range m.marks {
		if mark.Day.Year() == month.Year && mark.Day.Month() == month.Month {
			out = append(out, mark)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].Employee < out[j].Employee
	})
	return out, nil
}

func (m *memoryPreferences) DeleteEmployee(_ context.Context, e model.Employee) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, mark := range m.marks {
		if mark.Employee == e {
			delete(m.marks, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryPreferences) PurgeOutside(_ context.Context, now time.Time, months int) (int64, error) {
	m.purged.now, m.purged.months = now, months
	return 4, nil
}

func newPreferenceRouter(t *testing.T, store PreferenceStore) *http.ServeMux {
	t.Helper()
	h := NewPreferenceHandler(store, newScheduleHandler(t), 6)
	h.now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/preferences", h.Upsert)
	mux.HandleFunc("GET /api/v1/preferences", h.List)
	mux.HandleFunc("DELETE /api/v1/preferences/{employee}", h.Delete)
	mux.HandleFunc("POST /api/v1/preferences/purge", h.Purge)
	mux.HandleFunc("POST /api/v1/preferences/schedule", h.Schedule)
	return mux
}

func TestPreferenceUpsertAndList(t *testing.T) {
	store := newMemoryPreferences()
	mux := newPreferenceRouter(t, store)

	rec := doJSON(t, mux.ServeHTTP, http.MethodPut, "/api/v1/preferences",
		`{"employee": "A", "year": 2026, "month": 11, "days": [3, 1]}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// 反转：除 1..28 以外的日期休息
	days := make([]int, 28)
	for i := range days {
		days[i] = i + 1
	}
	rec = doJSON(t, mux.ServeHTTP, http.MethodPut, "/api/v1/preferences", UpsertPreferenceRequest{
		Employee: "B", Year: 2026, Month: 11, Days: days, Inverted: true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux.ServeHTTP, http.MethodGet, "/api/v1/preferences?year=2026&month=11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got MonthPreferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2026-11", got.Month)
	assert.Equal(t, []model.PreferenceEntry{
		{Employee: "A", Dates: []int{1, 3}},
		{Employee: "B", Dates: []int{29, 30}},
	}, got.Entries)
}

func TestPreferenceValidation(t *testing.T) {
	mux := newPreferenceRouter(t, newMemoryPreferences())

	rec := doJSON(t, mux.ServeHTTP, http.MethodPut, "/api/v1/preferences", `{"employee": "", "year": 2026, "month": 13}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))

	rec = doJSON(t, mux.ServeHTTP, http.MethodGet, "/api/v1/preferences?year=2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferenceDeleteAndPurge(t *testing.T) {
	store := newMemoryPreferences()
	mux := newPreferenceRouter(t, store)
	doJSON(t, mux.ServeHTTP, http.MethodPut, "/api/v1/preferences", `{"employee": "A", "year": 2027, "month": 2, "days": [1]}`)

	rec := doJSON(t, mux.ServeHTTP, http.MethodDelete, "/api/v1/preferences/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted": 28}`, rec.Body.String())

	rec = doJSON(t, mux.ServeHTTP, http.MethodPost, "/api/v1/preferences/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted": 4}`, rec.Body.String())
	assert.Equal(t, 6, store.purged.months)
	assert.Equal(t, 2026, store.purged.now.Year())
}

func TestScheduleFromSheet(t *testing.T) {
	store := newMemoryPreferences()
	mux := newPreferenceRouter(t, store)
	for _, body := range []string{
		`{"employee": "A", "year": 2026, "month": 11, "days": [2]}`,
		`{"employee": "B", "year": 2026, "month": 11, "days": []}`,
		`{"employee": "C", "year": 2026, "month": 11, "days": [7, 8]}`,
	} {
		require.Equal(t, http.StatusNoContent, doJSON(t, mux.ServeHTTP, http.MethodPut, "/api/v1/preferences", body).Code)
	}

	rec := doJSON(t, mux.ServeHTTP, http.MethodPost, "/api/v1/preferences/schedule", `{"year": 2026, "month": 11}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.RosterOf("A", "B", "C"), resp.Schedule.Employees)
	assert.Equal(t, model.CellOff, resp.Schedule.Cell("A", 2))
	assert.Equal(t, model.CellOff, resp.Schedule.Cell("C", 7))
	assert.Equal(t, model.CellOff, resp.Schedule.Cell("C", 8))

	rec = doJSON(t, mux.ServeHTTP, http.MethodPost, "/api/v1/preferences/schedule", `{"year": 2027, "month": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "偏好表为空且未给出名单")
}
