// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/logger"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 5 << 20
)

var validate = validator.New()

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应，状态码由错误码决定
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("code", string(appErr.Code)).Msg("请求处理失败")
	}
	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	respondJSON(w, appErr.HTTPStatus, body)
}

// decodeJSON 解析请求体并按 validate 标签校验
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "请求体格式错误").WithDetails(err.Error())
	}
	return validateStruct(v)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.CodeInvalidInput, "请求参数无效")
	}
	ve := &errors.ValidationErrors{}
	for _, fe := range verrs {
		ve.Add(jsonPath(fe.Namespace()), fmt.Sprintf("不满足 %s %s", fe.Tag(), fe.Param()))
	}
	return ve.ToAppError()
}

// jsonPath 去掉顶层结构体名
func jsonPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// SystemHandler 系统端点
type SystemHandler struct {
	Version   string
	BuildTime string
	GitCommit string
	Checks    map[string]func(r *http.Request) error
}

// Health 健康检查；任一依赖失败返回 503
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(r); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"service":      "kinmu",
		"dependencies": deps,
	})
}

// VersionInfo 版本信息
func (h *SystemHandler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":    h.Version,
		"build_time": h.BuildTime,
		"git_commit": h.GitCommit,
	})
}
