package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

const novemberYAML = `
employees: [A, B, C]
month:
  kind: explicit
  year: 2026
  month: 11
pins:
  - employee: A
    day: 5
    state: "off"
preferences:
  - employee: C
    weekdays: [6]
timeout: 20s
rules:
  headcount: 1
  window: 3
  lower_factor: 1.5
  upper_factor: 2
`

const novemberTOML = `
employees = ["A", "B", "C"]
timeout = "20s"

[month]
kind = "explicit"
year = 2026
month = 11

[[pins]]
employee = "A"
day = 5
state = "off"

[[preferences]]
employee = "C"
weekdays = [6]

[rules]
headcount = 1
window = 3
lower_factor = 1.5
upper_factor = 2.0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseRequestFormats(t *testing.T) {
	for _, tc := range []struct {
		ext string
		raw string
	}{
		{".yaml", novemberYAML},
		{".toml", novemberTOML},
	} {
		t.Run(tc.ext, func(t *testing.T) {
			req, err := parseRequest(tc.ext, []byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, model.RosterOf("A", "B", "C"), req.Employees)
			assert.Equal(t, calendar.Explicit(2026, time.November), req.Month)
			assert.Equal(t, []model.Pin{{Employee: "A", Day: 5, State: model.PinOff}}, req.Pins)
			require.Len(t, req.Preferences, 1)
			assert.Equal(t, []int{6}, req.Preferences[0].Weekdays)
			assert.Equal(t, 20*time.Second, req.Timeout)
			require.NotNil(t, req.Rules)
			assert.Equal(t, 1.5, req.Rules.LowerFactor)
		})
	}
}

func TestParseRequestDefaults(t *testing.T) {
	req, err := parseRequest(".yml", []byte("employees: [A, B]\n"))
	require.NoError(t, err)
	assert.Equal(t, calendar.NextMonth(), req.Month, "未指定月份时默认下月")
	assert.Zero(t, req.Timeout)
	assert.Nil(t, req.Rules)
}

func TestParseRequestErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		ext string
		raw string
	}{
		"不支持的扩展名": {".json", `{}`},
		"未知字段":    {".yaml", "employees: [A]\nshifts: 3\n"},
		"TOML 未知字段": {".toml", "employees = [\"A\"]\nshifts = 3\n"},
		"YAML 语法错误": {".yaml", "employees: [A\n"},
		"非法时长":    {".yaml", "employees: [A]\ntimeout: soon\n"},
		"负时长":     {".toml", "employees = [\"A\"]\ntimeout = \"-1s\"\n"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseRequest(tc.ext, []byte(tc.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeInvalidInput))
		})
	}
}

func TestRunPrintsTable(t *testing.T) {
	env := filepath.Join(t.TempDir(), "missing.env")
	path := writeFile(t, "request.yaml", novemberYAML)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-env", env, path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "合計出勤回数")
	assert.Contains(t, stdout.String(), "2026-11")
}

func TestRunWritesExport(t *testing.T) {
	env := filepath.Join(t.TempDir(), "missing.env")
	path := writeFile(t, "request.toml", novemberTOML)
	out := filepath.Join(t.TempDir(), "shift.csv")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-env", env, "-format", "csv", "-out", out, path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "合計出勤回数")
	assert.Empty(t, stdout.String())
}

func TestRunExitCodes(t *testing.T) {
	env := filepath.Join(t.TempDir(), "missing.env")
	good := writeFile(t, "request.yaml", novemberYAML)
	infeasible := writeFile(t, "single.yaml", `
employees: [A]
month: {kind: explicit, year: 2026, month: 11}
pins:
  - {employee: A, day: 5, state: "off"}
`)

	for name, tc := range map[string]struct {
		args []string
		code int
	}{
		"缺少请求文件":   {[]string{"-env", env}, 2},
		"未知参数":     {[]string{"-bogus", good}, 2},
		"未知格式":     {[]string{"-env", env, "-format", "docx", good}, 2},
		"pdf 需要输出文件": {[]string{"-env", env, "-format", "pdf", good}, 2},
		"文件不存在":    {[]string{"-env", env, filepath.Join(t.TempDir(), "none.yaml")}, 2},
		"无可行解":     {[]string{"-env", env, infeasible}, 3},
	} {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tc.code, run(context.Background(), tc.args, &stdout, &stderr), stderr.String())
		})
	}
}
