// Package export 把排班表导出为文本、CSV、PDF 或 XLSX
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// Format 导出格式
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat 解析导出格式，空字符串视为 text
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", errors.InvalidInput("format", fmt.Sprintf("不支持的导出格式: %q", s))
	}
}

// ContentType 返回 HTTP Content-Type
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension 返回文件扩展名
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// TotalLabel 合计行标签
const TotalLabel = "合計出勤回数"

// Marks 单元格的显示内容
type Marks struct {
	Working    string
	Off        string
	Unresolved string
}

// DefaultMarks 上班 1、休息 0、未确定留空
func DefaultMarks() Marks {
	return Marks{Working: "1", Off: "0", Unresolved: ""}
}

func (m Marks) of(c model.CellState) string {
	switch c {
	case model.CellWorking:
		return m.Working
	case model.CellOff:
		return m.Off
	default:
		return m.Unresolved
	}
}

// TableOptions 表格生成选项
type TableOptions struct {
	Marks      Marks
	Weekdays   *[7]string // 为空时使用排班表自带的星期标签
	DayLabel   string
	WeekLabel  string
	TotalLabel string
}

// DefaultTableOptions 默认表格选项
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Marks:      DefaultMarks(),
		DayLabel:   "日付",
		WeekLabel:  "曜日",
		TotalLabel: TotalLabel,
	}
}

// Dataset 表格数据：首两列为日期与星期，其后每位员工一列，最后一行为合计
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Table 把排班表转换为表格数据
func Table(s *model.Schedule, opts TableOptions) (Dataset, error) {
	if s == nil || len(s.Employees) == 0 {
		return Dataset{}, errors.InvalidInput("schedule", "排班表为空")
	}

	headers := make([]string, 0, len(s.Employees)+2)
	headers = append(headers, opts.DayLabel, opts.WeekLabel)
	headers = append(headers, s.Employees.Strings()...)

	rows := make([][]string, 0, len(s.Rows)+1)
	for _, row := range s.Rows {
		if len(row.Cells) != len(s.Employees) {
			return Dataset{}, errors.Newf(errors.CodeInvalidInput, "第 %d 天的单元格数量与名单不符", row.Day)
		}
		label := row.WeekdayLabel
		if opts.Weekdays != nil && row.Weekday >= 0 && row.Weekday < 7 {
			label = opts.Weekdays[row.Weekday]
		}
		record := make([]string, 0, len(headers))
		record = append(record, strconv.Itoa(row.Day), label)
		for _, c := range row.Cells {
			record = append(record, opts.Marks.of(c))
		}
		rows = append(rows, record)
	}

	totals := make([]string, 0, len(headers))
	totals = append(totals, opts.TotalLabel, "")
	for col := range s.Employees {
		totals = append(totals, strconv.Itoa(totalAt(s, col)))
	}
	rows = append(rows, totals)

	return Dataset{
		Title:   fmt.Sprintf("%s シフト表", s.Month),
		Headers: headers,
		Rows:    rows,
	}, nil
}

// totalAt 优先使用排班表自带的合计，缺失时按单元格计数
func totalAt(s *model.Schedule, col int) int {
	if col < len(s.Totals) {
		return s.Totals[col]
	}
	n := 0
	for _, row := range s.Rows {
		if row.Cells[col] == model.CellWorking {
			n++
		}
	}
	return n
}

// Export 按格式导出排班表
func Export(s *model.Schedule, f Format) ([]byte, error) {
	opts := DefaultTableOptions()
	if f == FormatPDF {
		opts = PDFTableOptions()
	}
	data, err := Table(s, opts)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatText:
		return []byte(NewTextRenderer().Render(data)), nil
	case FormatCSV:
		return NewCSVExporter().Render(data)
	case FormatPDF:
		return NewPDFExporter().Render(data, data.Title)
	case FormatXLSX:
		return NewXLSXExporter().Render(data)
	default:
		return nil, errors.InvalidInput("format", fmt.Sprintf("不支持的导出格式: %q", f))
	}
}
