package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter 输出 Excel 工作簿
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter 创建 XLSX 导出器
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{sheet: "シフト表"}
}

// Render 生成工作簿；数字单元格写为数值
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx 至少需要一列表头")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		return nil, fmt.Errorf("设置工作表名称: %w", err)
	}

	for i, h := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(e.sheet, cell, h); err != nil {
			return nil, fmt.Errorf("写入表头: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("创建样式: %w", err)
	}
	_ = f.SetRowStyle(e.sheet, 1, 1, headerStyle)

	for r, row := range data.Rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var v interface{} = value
			if n, err := strconv.Atoi(value); err == nil {
				v = n
			}
			if err := f.SetCellValue(e.sheet, cell, v); err != nil {
				return nil, fmt.Errorf("写入单元格 %s: %w", cell, err)
			}
		}
	}

	if len(data.Rows) > 0 {
		totalRow := len(data.Rows) + 1
		totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			_ = f.SetRowStyle(e.sheet, totalRow, totalRow, totalStyle)
		}
	}
	_ = f.SetPanes(e.sheet, &excelize.Panes{Freeze: true, XSplit: 2, YSplit: 1, TopLeftCell: "C2", ActivePane: "bottomRight"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("生成 xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadXLSX 读取 Render 生成的工作簿，返回表头与数据行
func ReadXLSX(b []byte) (Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return Dataset{}, fmt.Errorf("打开 xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("xlsx 没有工作表")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("读取工作表: %w", err)
	}
	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("工作表为空")
	}
	return Dataset{Headers: rows[0], Rows: rows[1:]}, nil
}
