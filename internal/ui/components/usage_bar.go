package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/minimax-status/internal/ui/styles"
)

const minBarWidth = 10

// UsageBar renders the used share of the quota as an animated gradient bar.
type UsageBar struct {
	progress progress.Model
	percent  int
}

// NewUsageBar creates a usage bar of the given width. The gradient runs from
// green (little used) to red (exhausted).
func NewUsageBar(width int) UsageBar {
	p := progress.New(
		progress.WithScaledGradient("#51cf66", "#ff6b6b"),
		progress.WithWidth(max(width, minBarWidth)),
		progress.WithoutPercentage(),
	)
	return UsageBar{progress: p}
}

// Update advances the bar animation.
func (u UsageBar) Update(msg tea.Msg) (UsageBar, tea.Cmd) {
	model, cmd := u.progress.Update(msg)
	u.progress = model.(progress.Model)
	return u, cmd
}

// SetPercent animates the bar towards percent, clamped to 0..100.
func (u *UsageBar) SetPercent(percent int) tea.Cmd {
	u.percent = min(max(percent, 0), 100)
	return u.progress.SetPercent(float64(u.percent) / 100)
}

// Percent returns the target percentage.
func (u UsageBar) Percent() int {
	return u.percent
}

// SetWidth sets the bar width.
func (u *UsageBar) SetWidth(width int) {
	u.progress.Width = max(width, minBarWidth)
}

// Width returns the bar width.
func (u UsageBar) Width() int {
	return u.progress.Width
}

// View renders the bar followed by the colored percentage.
func (u UsageBar) View() string {
	pct := styles.GetUsageStyle(u.percent).Render(fmt.Sprintf("%3d%%", u.percent))
	return u.progress.View() + " " + pct
}
