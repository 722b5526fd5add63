package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kinmu/kinmu/internal/repository"
	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/model"
)

// PreferenceStore 偏好表存储
type PreferenceStore interface {
	Upsert(ctx context.Context, employee model.Employee, month model.MonthRef, days []model.Day, inverted bool) error
	ListMonth(ctx context.Context, month model.MonthRef) ([]repository.PreferenceMark, error)
	DeleteEmployee(ctx context.Context, employee model.Employee) (int64, error)
	PurgeOutside(ctx context.Context, now time.Time, months int) (int64, error)
}

// PreferenceHandler 偏好表处理器
type PreferenceHandler struct {
	repo      PreferenceStore
	schedule  *ScheduleHandler
	retention int
	now       func() time.Time
}

// NewPreferenceHandler 创建偏好表处理器
func NewPreferenceHandler(repo PreferenceStore, schedule *ScheduleHandler, retentionMonths int) *PreferenceHandler {
	return &PreferenceHandler{
		repo:      repo,
		schedule:  schedule,
		retention: retentionMonths,
		now:       time.Now,
	}
}

// UpsertPreferenceRequest 登记某员工某月的休息日
type UpsertPreferenceRequest struct {
	Employee string `json:"employee" validate:"required"`
	Year     int    `json:"year" validate:"required,min=2000,max=2100"`
	Month    int    `json:"month" validate:"required,min=1,max=12"`
	Days     []int  `json:"days" validate:"dive,min=1,max=31"`
	Inverted bool   `json:"inverted,omitempty"`
}

// Upsert 登记偏好
// PUT /api/v1/preferences
func (h *PreferenceHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertPreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ref := model.MonthRef{Year: req.Year, Month: time.Month(req.Month)}
	if err := h.repo.Upsert(r.Context(), model.Employee(req.Employee), ref, req.Days, req.Inverted); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MonthPreferences 某月偏好表
type MonthPreferences struct {
	Month   string                  `json:"month"`
	Entries []model.PreferenceEntry `json:"entries"`
}

// List 读取某月偏好
// GET /api/v1/preferences?year=2026&month=11
func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	ref, err := monthParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	marks, err := h.repo.ListMonth(r.Context(), ref)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MonthPreferences{Month: ref.String(), Entries: repository.Entries(marks)})
}

// Delete 删除员工的全部偏好
// DELETE /api/v1/preferences/{employee}
func (h *PreferenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.DeleteEmployee(r.Context(), model.Employee(r.PathValue("employee")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Purge 清理保留窗口外的偏好
// POST /api/v1/preferences/purge
func (h *PreferenceHandler) Purge(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.PurgeOutside(r.Context(), h.now(), h.retention)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.schedule.metrics.AddPurged(n)
	logger.WithContext(r.Context()).Info().Int64("rows", n).Msg("清理过期偏好")
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// SheetScheduleRequest 按偏好表排班
type SheetScheduleRequest struct {
	Employees      []string `json:"employees,omitempty" validate:"dive,required"`
	Year           int      `json:"year" validate:"required,min=2000,max=2100"`
	Month          int      `json:"month" validate:"required,min=1,max=12"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" validate:"min=0,max=600"`
}

// Schedule 读取偏好表并排班；未给出名单时以偏好表中出现的员工为名单
// POST /api/v1/preferences/schedule
func (h *PreferenceHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req SheetScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ref := model.MonthRef{Year: req.Year, Month: time.Month(req.Month)}
	marks, err := h.repo.ListMonth(r.Context(), ref)
	if err != nil {
		respondError(w, r, err)
		return
	}
	entries := repository.Entries(marks)

	roster := model.RosterOf(req.Employees...)
	if len(roster) == 0 {
		roster = sheetRoster(marks)
	} else {
		entries = onlyListed(entries, roster)
	}
	if len(roster) == 0 {
		respondError(w, r, errors.InvalidInput("employees", "偏好表中没有员工"))
		return
	}

	gen := GenerateRequest{
		Employees:      roster.Strings(),
		Month:          calendar.Explicit(ref.Year, ref.Month),
		Preferences:    entries,
		TimeoutSeconds: req.TimeoutSeconds,
	}
	start := time.Now()
	sched, err := h.schedule.run(r.Context(), gen.ToRequest())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.schedule.analyze(sched, time.Since(start)))
}

// sheetRoster 偏好表中出现过的员工，按首次出现顺序
func sheetRoster(marks []repository.PreferenceMark) model.Roster {
	var roster model.Roster
	for _, m := range marks {
		if !roster.Contains(m.Employee) {
			roster = append(roster, m.Employee)
		}
	}
	return roster
}

// onlyListed 丢弃名单外员工的偏好
func onlyListed(entries []model.PreferenceEntry, roster model.Roster) []model.PreferenceEntry {
	out := entries[:0]
	for _, e := range entries {
		if roster.Contains(e.Employee) {
			out = append(out, e)
		}
	}
	return out
}

func monthParam(r *http.Request) (model.MonthRef, error) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		return model.MonthRef{}, errors.InvalidInput("year", "需要 2000 到 2100 之间的年份")
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil || month < 1 || month > 12 {
		return model.MonthRef{}, errors.InvalidInput("month", "需要 1 到 12 之间的月份")
	}
	return model.MonthRef{Year: year, Month: time.Month(month)}, nil
}
