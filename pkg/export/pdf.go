package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/kinmu/kinmu/pkg/calendar"
)

// PDFTableOptions 内置字体只覆盖 cp1252，星期与合计使用英文标签
func PDFTableOptions() TableOptions {
	en := calendar.WeekdayNamesEN
	return TableOptions{
		Marks:      Marks{Working: "1", Off: "0", Unresolved: "?"},
		Weekdays:   &en,
		DayLabel:   "Day",
		WeekLabel:  "Weekday",
		TotalLabel: "Total",
	}
}

// PDFExporter 输出表格 PDF
type PDFExporter struct {
	orientation string
}

// NewPDFExporter 创建 PDF 导出器（A4 横向）
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{orientation: "L"}
}

// Render 生成带标题的表格 PDF
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf 至少需要一列表头")
	}
	pdf := gofpdf.New(e.orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	width, _ := pdf.GetPageSize()
	usable := width - 20

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	colWidth := usable / float64(len(data.Headers))
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(226, 232, 240)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for i, row := range data.Rows {
		if i == len(data.Rows)-1 {
			pdf.SetFont("Arial", "B", 8)
		}
		for _, value := range row {
			pdf.CellFormat(colWidth, 5.5, tr(value), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("生成 pdf: %w", err)
	}
	return buf.Bytes(), nil
}
