package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kinmu/kinmu/internal/constraints"
	"github.com/kinmu/kinmu/internal/metrics"
	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/export"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/model"
	"github.com/kinmu/kinmu/pkg/scheduler"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
	"github.com/kinmu/kinmu/pkg/stats"
	"github.com/kinmu/kinmu/pkg/validator"
)

// Scheduler 排班引擎
type Scheduler interface {
	Schedule(ctx context.Context, req scheduler.Request) (*model.Schedule, error)
	Config() scheduler.Config
}

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	engine   Scheduler
	metrics  *metrics.Metrics
	fairness *stats.FairnessAnalyzer
	coverage *stats.CoverageAnalyzer

	maxTimeout time.Duration
}

// NewScheduleHandler 创建排班处理器；m 可为 nil
func NewScheduleHandler(engine Scheduler, m *metrics.Metrics) *ScheduleHandler {
	return &ScheduleHandler{
		engine:   engine,
		metrics:  m,
		fairness: stats.NewFairnessAnalyzer(),
		coverage: stats.NewCoverageAnalyzer(),
	}
}

// WithMaxTimeout 限制单次排班的最长时间，应小于 HTTP 写超时；0 表示不限
func (h *ScheduleHandler) WithMaxTimeout(d time.Duration) *ScheduleHandler {
	h.maxTimeout = d
	return h
}

// run 调用引擎；请求的求解时间超过上限时拒绝，并用上限约束整个调用
func (h *ScheduleHandler) run(ctx context.Context, req scheduler.Request) (*model.Schedule, error) {
	if h.maxTimeout > 0 {
		if req.Timeout > h.maxTimeout {
			return nil, errors.InvalidInput("timeout_seconds", fmt.Sprintf("不能超过 %s", h.maxTimeout))
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.maxTimeout)
		defer cancel()
	}
	return h.engine.Schedule(ctx, req)
}

// GenerateRequest 排班生成请求
type GenerateRequest struct {
	Employees      []string                `json:"employees" validate:"required,min=1,dive,required"`
	Month          calendar.MonthSelector  `json:"month"`
	Pins           []model.Pin             `json:"pins,omitempty" validate:"dive"`
	Preferences    []model.PreferenceEntry `json:"preferences,omitempty" validate:"dive"`
	TimeoutSeconds int                     `json:"timeout_seconds,omitempty" validate:"min=0,max=600"`
	Rules          *constraint.Params      `json:"rules,omitempty"`
}

// ToRequest 转换为引擎请求
func (g *GenerateRequest) ToRequest() scheduler.Request {
	return scheduler.Request{
		Employees:   model.RosterOf(g.Employees...),
		Month:       g.Month,
		Pins:        g.Pins,
		Preferences: g.Preferences,
		Timeout:     time.Duration(g.TimeoutSeconds) * time.Second,
		Rules:       g.Rules,
	}
}

// GenerateResponse 排班生成响应
type GenerateResponse struct {
	Schedule *model.Schedule        `json:"schedule"`
	Fairness *stats.FairnessMetrics `json:"fairness"`
	Coverage *stats.CoverageMetrics `json:"coverage"`
	Duration string                 `json:"duration"`
}

// Generate 生成排班
// POST /api/v1/schedule/generate
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	start := time.Now()
	sched, err := h.run(r.Context(), req.ToRequest())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.analyze(sched, time.Since(start)))
}

func (h *ScheduleHandler) analyze(sched *model.Schedule, d time.Duration) *GenerateResponse {
	fair := h.fairness.Analyze(sched)
	cov := h.coverage.Analyze(sched)
	h.metrics.SetQuality(fair.WorkdayGini, cov.OverallCoverage)
	return &GenerateResponse{
		Schedule: sched,
		Fairness: fair,
		Coverage: cov,
		Duration: d.String(),
	}
}

// ValidateRequest 排班表校验请求
type ValidateRequest struct {
	Schedule *model.Schedule    `json:"schedule" validate:"required"`
	Pins     []model.Pin        `json:"pins,omitempty"`
	Rules    *constraint.Params `json:"rules,omitempty"`
}

// ValidateResponse 校验结果
type ValidateResponse struct {
	Valid     bool                 `json:"valid"`
	Conflicts []validator.Conflict `json:"conflicts"`
}

// Validate 校验提交的排班表；存在错误级冲突时返回 409
// POST /api/v1/schedule/validate
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	status, resp := h.validate(r, req.Schedule, req.Pins, req.Rules)
	respondJSON(w, status, resp)
}

// detector 按请求规则或引擎默认参数创建冲突检测器
func (h *ScheduleHandler) detector(rules *constraint.Params) *validator.ConflictDetector {
	cfg := validator.DefaultDetectorConfig()
	cfg.Params = h.engine.Config().Params
	if rules != nil {
		cfg.Params = *rules
	}
	return validator.NewConflictDetector(cfg)
}

func (h *ScheduleHandler) validate(r *http.Request, sched *model.Schedule, pins []model.Pin, rules *constraint.Params) (int, ValidateResponse) {
	conflicts, err := h.detector(rules).Validate(sched, pins)
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}

	status := http.StatusOK
	if err != nil {
		status = errors.GetHTTPStatus(err)
		logger.WithContext(r.Context()).Info().Int("conflicts", len(conflicts)).Msg("排班表存在冲突")
	}
	return status, ValidateResponse{Valid: err == nil, Conflicts: conflicts}
}

// ImportResponse 导入工作簿的结果
type ImportResponse struct {
	ValidateResponse
	Schedule *model.Schedule `json:"schedule"`
}

// ValidateXLSX 读取上传的工作簿并校验；month 形如 2026-11
// POST /api/v1/schedule/validate/xlsx?month=2026-11
func (h *ScheduleHandler) ValidateXLSX(w http.ResponseWriter, r *http.Request) {
	ref, err := time.Parse("2006-01", r.URL.Query().Get("month"))
	if err != nil {
		respondError(w, r, errors.InvalidInput("month", "需要 YYYY-MM 格式的月份"))
		return
	}

	book, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, r, errors.Wrap(err, errors.CodeInvalidInput, "读取上传文件失败"))
		return
	}
	data, err := export.ReadXLSX(book)
	if err != nil {
		respondError(w, r, errors.Wrap(err, errors.CodeInvalidInput, "无法解析 xlsx"))
		return
	}
	sched, err := export.ParseTable(data, calendar.Of(ref.Year(), ref.Month()), export.DefaultMarks())
	if err != nil {
		respondError(w, r, err)
		return
	}
	sched.Required = h.engine.Config().Params.Headcount

	status, resp := h.validate(r, sched, nil, nil)
	respondJSON(w, status, ImportResponse{ValidateResponse: resp, Schedule: sched})
}

// CheckChangeRequest 单元格修改预检请求
type CheckChangeRequest struct {
	Schedule *model.Schedule    `json:"schedule" validate:"required"`
	Pins     []model.Pin        `json:"pins,omitempty"`
	Rules    *constraint.Params `json:"rules,omitempty"`
	Employee model.Employee     `json:"employee" validate:"required"`
	Day      model.Day          `json:"day" validate:"min=1"`
	State    model.CellState    `json:"state" validate:"oneof=working off"`
}

// CheckChange 预检把某员工某天改为上班或休息后，与该员工或该日相关的冲突
// POST /api/v1/schedule/check
func (h *ScheduleHandler) CheckChange(w http.ResponseWriter, r *http.Request) {
	var req CheckChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	conflicts := h.detector(req.Rules).DetectForChange(req.Schedule, req.Pins, req.Employee, req.Day, req.State)
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{Valid: !validator.HasErrors(conflicts), Conflicts: conflicts})
}

// CompareRequest 两个排班方案的比较请求
type CompareRequest struct {
	Baseline  *model.Schedule `json:"baseline" validate:"required"`
	Candidate *model.Schedule `json:"candidate" validate:"required"`
}

// Compare 比较两个方案的公平性，差值为 candidate 减 baseline
// POST /api/v1/schedule/compare
func (h *ScheduleHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.fairness.CompareSchedules(req.Baseline, req.Candidate))
}

// Rules 返回约束目录与当前默认参数
// GET /api/v1/schedule/rules
func (h *ScheduleHandler) Rules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, constraints.Library(h.engine.Config().Params))
}

// ExportRequest 导出请求；提供 schedule 时直接导出，否则先按 request 生成
type ExportRequest struct {
	Schedule *model.Schedule `json:"schedule,omitempty"`
	Request  *GenerateRequest `json:"request,omitempty"`
}

// Export 导出排班表
// POST /api/v1/schedule/export?format=csv|pdf|xlsx|text
func (h *ScheduleHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	sched := req.Schedule
	switch {
	case sched != nil:
	case req.Request != nil:
		if err := validateStruct(req.Request); err != nil {
			respondError(w, r, err)
			return
		}
		sched, err = h.run(r.Context(), req.Request.ToRequest())
		if err != nil {
			respondError(w, r, err)
			return
		}
	default:
		respondError(w, r, errors.InvalidInput("schedule", "需要 schedule 或 request"))
		return
	}

	writeExport(w, r, sched, format)
}

func writeExport(w http.ResponseWriter, r *http.Request, sched *model.Schedule, format export.Format) {
	body, err := export.Export(sched, format)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="shift-%s.%s"`, sched.Month, format.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
