// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/minimax-status/internal/models"
	"github.com/j-veylop/minimax-status/internal/ui/styles"
)

// NoHistoryText is shown when no snapshots have been recorded yet.
const NoHistoryText = "暂无历史记录"

const historyTimeLayout = "01-02 15:04"

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render(NoHistoryText)
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Caption(caption),
	)
}

// RenderUsageChart plots the used percentage of each snapshot in order.
func RenderUsageChart(records []models.SnapshotRecord, width, height int) string {
	data := make([]float64, len(records))
	for i, rec := range records {
		data[i] = float64(rec.Percentage)
	}
	return RenderLineChart(data, width, height, "已用百分比 (%)")
}

// RenderHistoryTable lists snapshots in local time, one row per record.
func RenderHistoryTable(records []models.SnapshotRecord) string {
	if len(records) == 0 {
		return styles.HelpStyle.Render(NoHistoryText)
	}

	headers := []string{"时间", "模型", "已用", "总量", "剩余", "进度"}
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.Timestamp.Local().Format(historyTimeLayout),
			rec.ModelName,
			humanize.Comma(rec.Used),
			humanize.Comma(rec.Total),
			humanize.Comma(rec.Remaining),
			fmt.Sprintf("%d%%", rec.Percentage),
		}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(headers, widths, styles.TableHeaderStyle))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(renderRow(row, widths, styles.TableCellStyle))
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	rendered := make([]string, len(cells))
	for i, cell := range cells {
		rendered[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
	}
	return style.Render(strings.Join(rendered, "  "))
}

// RenderHistorySummary describes the newest record relative to now.
func RenderHistorySummary(records []models.SnapshotRecord) string {
	if len(records) == 0 {
		return ""
	}
	latest := records[len(records)-1]
	return styles.HelpStyle.Render(fmt.Sprintf("共 %d 条记录，最近一次 %s", len(records), humanize.Time(latest.Timestamp)))
}
