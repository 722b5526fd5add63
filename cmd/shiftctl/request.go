package main

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
	"github.com/kinmu/kinmu/pkg/scheduler"
	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

// requestFile 请求文件结构，timeout 写成 "45s" 这样的字符串
type requestFile struct {
	Employees   []string                `yaml:"employees" toml:"employees"`
	Month       *calendar.MonthSelector `yaml:"month" toml:"month"`
	Pins        []model.Pin             `yaml:"pins" toml:"pins"`
	Preferences []model.PreferenceEntry `yaml:"preferences" toml:"preferences"`
	Timeout     string                  `yaml:"timeout" toml:"timeout"`
	Rules       *constraint.Params      `yaml:"rules" toml:"rules"`
}

// loadRequest 按扩展名解析 YAML 或 TOML 请求文件
func loadRequest(path string) (scheduler.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return scheduler.Request{}, errors.Wrap(err, errors.CodeInvalidInput, "读取请求文件失败").WithField("file", path)
	}
	return parseRequest(filepath.Ext(path), raw)
}

func parseRequest(ext string, raw []byte) (scheduler.Request, error) {
	var rf requestFile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&rf); err != nil && !stderrors.Is(err, io.EOF) {
			return scheduler.Request{}, errors.Wrap(err, errors.CodeInvalidInput, "YAML 解析失败")
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields()
		if err := dec.Decode(&rf); err != nil {
			return scheduler.Request{}, errors.Wrap(err, errors.CodeInvalidInput, "TOML 解析失败")
		}
	default:
		return scheduler.Request{}, errors.InvalidInput("file", fmt.Sprintf("不支持的请求文件类型 %q，仅支持 .yaml/.yml/.toml", ext))
	}
	return rf.request()
}

func (rf requestFile) request() (scheduler.Request, error) {
	req := scheduler.Request{
		Employees:   model.RosterOf(rf.Employees...),
		Month:       calendar.NextMonth(),
		Pins:        rf.Pins,
		Preferences: rf.Preferences,
		Rules:       rf.Rules,
	}
	if rf.Month != nil {
		req.Month = *rf.Month
	}
	if rf.Timeout != "" {
		d, err := time.ParseDuration(rf.Timeout)
		if err != nil || d < 0 {
			return scheduler.Request{}, errors.InvalidInput("timeout", fmt.Sprintf("无法解析时长 %q", rf.Timeout))
		}
		req.Timeout = d
	}
	return req, nil
}
