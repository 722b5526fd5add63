package export

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TextRenderer 终端表格渲染器
type TextRenderer struct {
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	totalStyle  lipgloss.Style
	border      lipgloss.Border
}

// NewTextRenderer 创建终端表格渲染器
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{
		headerStyle: lipgloss.NewStyle().Bold(true).Padding(0, 1).Align(lipgloss.Center),
		cellStyle:   lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Center),
		totalStyle:  lipgloss.NewStyle().Bold(true).Padding(0, 1).Align(lipgloss.Center).Foreground(lipgloss.Color("10")),
		border:      lipgloss.NormalBorder(),
	}
}

// Render 渲染表格，最后一行为合计
func (r *TextRenderer) Render(data Dataset) string {
	last := len(data.Rows) - 1
	t := table.New().
		Border(r.border).
		Headers(data.Headers...).
		Rows(data.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.headerStyle
			case row == last:
				return r.totalStyle
			default:
				return r.cellStyle
			}
		})

	out := t.String()
	if data.Title != "" {
		out = r.headerStyle.Render(data.Title) + "\n" + out
	}
	return out
}
