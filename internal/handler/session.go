package handler

import (
	"net/http"

	"github.com/kinmu/kinmu/internal/middleware"
	"github.com/kinmu/kinmu/internal/session"
	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/export"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/model"
)

// SessionHandler 对话帧处理器
type SessionHandler struct {
	store    *session.Store
	schedule *ScheduleHandler
}

// NewSessionHandler 创建对话帧处理器
func NewSessionHandler(store *session.Store, schedule *ScheduleHandler) *SessionHandler {
	return &SessionHandler{store: store, schedule: schedule}
}

// StartRequest 创建会话请求
type StartRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// Start 创建会话；已认证时使用令牌中的用户
// POST /api/v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}
	userID := middleware.UserIDFrom(r.Context())
	if userID == "" {
		userID = req.UserID
	}

	f, err := h.store.Start(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, f)
}

// Get 读取会话
// GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.Get(r.Context(), r.PathValue("id"))
	h.respondFrame(w, r, f, err)
}

// Delete 删除会话
// DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMonth 设置目标月份
// PUT /api/v1/sessions/{id}/month
func (h *SessionHandler) SetMonth(w http.ResponseWriter, r *http.Request) {
	var month calendar.MonthSelector
	if err := decodeJSON(r, &month); err != nil {
		respondError(w, r, err)
		return
	}
	f, err := h.store.SetMonth(r.Context(), r.PathValue("id"), month)
	h.respondFrame(w, r, f, err)
}

// HopeRequest 休息偏好；员工名为空时由会话命名为 Noname_N
type HopeRequest struct {
	Employee         string `json:"employee,omitempty"`
	Dates            []int  `json:"dates,omitempty" validate:"dive,min=1,max=31"`
	DatesInverted    bool   `json:"dates_inverted,omitempty"`
	Weekdays         []int  `json:"weekdays,omitempty" validate:"dive,min=0,max=6"`
	WeekdaysInverted bool   `json:"weekdays_inverted,omitempty"`
}

// AddHope 追加休息偏好
// POST /api/v1/sessions/{id}/hopes
func (h *SessionHandler) AddHope(w http.ResponseWriter, r *http.Request) {
	var req HopeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	f, err := h.store.AddPreference(r.Context(), r.PathValue("id"), model.PreferenceEntry{
		Employee:         model.Employee(req.Employee),
		Dates:            req.Dates,
		DatesInverted:    req.DatesInverted,
		Weekdays:         req.Weekdays,
		WeekdaysInverted: req.WeekdaysInverted,
	})
	h.respondFrame(w, r, f, err)
}

// RemoveWorker 删除员工及其偏好
// DELETE /api/v1/sessions/{id}/workers/{worker}
func (h *SessionHandler) RemoveWorker(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.Correct(r.Context(), r.PathValue("id"), model.Employee(r.PathValue("worker")))
	h.respondFrame(w, r, f, err)
}

// Reset 清空会话内容
// POST /api/v1/sessions/{id}/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.Reset(r.Context(), r.PathValue("id"))
	h.respondFrame(w, r, f, err)
}

// Schedule 用会话内容排班，成功后清空会话；?format= 时直接返回导出文件
// POST /api/v1/sessions/{id}/schedule
func (h *SessionHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var format export.Format
	if q := r.URL.Query().Get("format"); q != "" {
		var err error
		if format, err = export.ParseFormat(q); err != nil {
			respondError(w, r, err)
			return
		}
	}

	f, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := f.Request()
	if err != nil {
		respondError(w, r, err)
		return
	}
	sched, err := h.schedule.run(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.store.Reset(r.Context(), id); err != nil {
		logger.WithContext(r.Context()).Warn().Err(err).Str("session_id", id).Msg("排班后清空会话失败")
	}

	if format != "" {
		writeExport(w, r, sched, format)
		return
	}
	respondJSON(w, http.StatusOK, h.schedule.analyze(sched, sched.SolveTime))
}

func (h *SessionHandler) respondFrame(w http.ResponseWriter, r *http.Request, f *session.Frame, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}
