package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter 输出 CSV
type CSVExporter struct {
	bom bool
}

// NewCSVExporter 创建 CSV 导出器；默认写入 UTF-8 BOM 以便 Excel 识别
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{bom: true}
}

// WithoutBOM 不写入 BOM
func (e *CSVExporter) WithoutBOM() *CSVExporter {
	return &CSVExporter{bom: false}
}

// Render 生成 CSV 字节
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv 至少需要一列表头")
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.WriteString("\ufeff")
	}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("写入 csv 表头: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("写入 csv 行: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("刷新 csv: %w", err)
	}
	return buf.Bytes(), nil
}
