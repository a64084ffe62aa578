package usage

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/j-veylop/minimax-status/internal/models"
)

const (
	barSegments = 10
	separator   = "----------------------------------------"
)

// ProgressBar renders a 10-segment block bar with floor(percentage/10) filled
// segments, clamped to the bar length.
func ProgressBar(percentage int) string {
	filled := min(max(percentage/10, 0), barSegments)
	return strings.Repeat("█", filled) + strings.Repeat("░", barSegments-filled)
}

// DurationText renders the time left until reset, omitting the hour part
// when it is zero.
func DurationText(hours, minutes int) string {
	if hours > 0 {
		return fmt.Sprintf("%d小时%d分钟", hours, minutes)
	}
	return fmt.Sprintf("%d分钟", minutes)
}

// Format renders the fixed multi-line status report.
func Format(s *models.UsageSnapshot) string {
	var sb strings.Builder
	sb.WriteString("MiniMax Coding Plan 用量状态\n")
	sb.WriteString(separator + "\n")
	fmt.Fprintf(&sb, "模型: %s\n", s.ModelName)
	fmt.Fprintf(&sb, "已用: %s / %s\n", humanize.Comma(s.Used), humanize.Comma(s.Total))
	fmt.Fprintf(&sb, "进度: [%s] %d%%\n", ProgressBar(s.Percentage), s.Percentage)
	fmt.Fprintf(&sb, "剩余: %s 次\n", humanize.Comma(s.Remaining))
	fmt.Fprintf(&sb, "重置: %s (约%s)\n", s.ResetTime, DurationText(s.Hours, s.Minutes))
	sb.WriteString(separator)
	return sb.String()
}
