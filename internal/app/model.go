// Package app implements the live usage view.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/models"
	"github.com/j-veylop/minimax-status/internal/services"
	"github.com/j-veylop/minimax-status/internal/services/projection"
	"github.com/j-veylop/minimax-status/internal/services/usage"
	"github.com/j-veylop/minimax-status/internal/tools"
	"github.com/j-veylop/minimax-status/internal/ui/components"
	"github.com/j-veylop/minimax-status/internal/ui/styles"
)

const (
	title        = "MiniMax Coding Plan 用量状态"
	loadingLabel = "正在获取用量..."
	timeLayout   = "15:04:05"
	cardChrome   = 8
)

// Source produces usage snapshots.
type Source interface {
	Refresh(ctx context.Context) (*models.UsageSnapshot, error)
}

// Projector forecasts exhaustion of the current quota window.
type Projector interface {
	Project(ctx context.Context) (*models.UsageProjection, error)
}

// KeyMap defines the keybindings for the live view.
type KeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "刷新")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "退出")),
	}
}

// Model is the Bubble Tea model for the live view.
type Model struct {
	source   Source
	events   <-chan services.ServiceEvent
	interval time.Duration
	keys     KeyMap

	spinner components.LoadingSpinner
	bar     components.UsageBar

	snapshot    *models.UsageSnapshot
	projection  *models.UsageProjection
	err         error
	loading     bool
	lastUpdated time.Time

	width  int
	height int
}

// NewModel creates the live view. events may be nil when no watcher runs.
func NewModel(src Source, events <-chan services.ServiceEvent, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Model{
		source:   src,
		events:   events,
		interval: interval,
		keys:     DefaultKeyMap(),
		spinner:  components.NewSpinner(loadingLabel),
		bar:      components.NewUsageBar(30),
		loading:  true,
	}
}

// Init starts the first refresh, the ticker and the event subscription.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		refreshCmd(m.source),
		m.spinner.Tick(),
		tickCmd(m.interval),
		waitForServiceEventCmd(m.events),
	)
}

// Update handles incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.SetWidth(min(msg.Width-cardChrome-6, 50))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.startRefresh()
		}
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.startRefresh(), tickCmd(m.interval))

	case UsageLoadedMsg:
		m.loading = false
		m.lastUpdated = msg.At
		m.err = msg.Err
		if msg.Err != nil {
			if errors.Is(msg.Err, tools.ErrNotConfigured) {
				m.snapshot = nil
				m.projection = nil
			}
			return m, nil
		}
		m.snapshot = msg.Snapshot
		m.projection = msg.Projection
		return m, m.bar.SetPercent(msg.Snapshot.Percentage)

	case ServiceEventMsg:
		var cmd tea.Cmd
		switch ev := msg.Event.(type) {
		case services.CredentialsChangedEvent:
			cmd = m.startRefresh()
		case services.ErrorEvent:
			logger.Warn("service error", "service", ev.Service, "error", ev.Error)
		}
		return m, tea.Batch(cmd, waitForServiceEventCmd(m.events))

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}

	return m, nil
}

// startRefresh begins a refresh unless one is already in flight.
func (m *Model) startRefresh() tea.Cmd {
	if m.loading {
		return nil
	}
	m.loading = true
	return tea.Batch(refreshCmd(m.source), m.spinner.Tick())
}

// View renders the live view.
func (m *Model) View() string {
	var body string
	switch {
	case m.snapshot == nil && m.err == nil:
		body = m.spinner.View()
	case m.snapshot == nil:
		body = styles.ErrorTextStyle.Render(tools.ErrorText(m.err))
	default:
		body = m.renderSnapshot()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render(title),
		body,
		"",
		m.renderFooter(),
	)
	view := styles.CardStyle.Render(content)

	if m.width <= 0 {
		return view
	}
	return truncateLines(view, m.width)
}

func (m *Model) renderSnapshot() string {
	s := m.snapshot
	field := func(label, value string) string {
		return styles.LabelStyle.Render(label+": ") + styles.ValueStyle.Render(value)
	}

	lines := []string{
		field("模型", s.ModelName),
		field("已用", fmt.Sprintf("%s / %s", humanize.Comma(s.Used), humanize.Comma(s.Total))),
		styles.LabelStyle.Render("进度: ") + m.bar.View(),
		field("剩余", humanize.Comma(s.Remaining)+" 次"),
		field("重置", fmt.Sprintf("%s (约%s)", s.ResetTime, usage.DurationText(s.Hours, s.Minutes))),
	}

	if m.projection != nil {
		lines = append(lines, field("预测", projection.Summary(m.projection, usage.Shanghai)))
	}

	if m.err != nil {
		lines = append(lines, "", styles.ErrorTextStyle.Render(tools.ErrorText(m.err)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	help := []string{
		styles.HelpKeyStyle.Render(m.keys.Refresh.Help().Key) + " " + styles.HelpDescStyle.Render(m.keys.Refresh.Help().Desc),
		styles.HelpKeyStyle.Render(m.keys.Quit.Help().Key) + " " + styles.HelpDescStyle.Render(m.keys.Quit.Help().Desc),
	}

	status := ""
	switch {
	case m.loading && m.snapshot != nil:
		status = m.spinner.View()
	case !m.lastUpdated.IsZero():
		status = "更新于 " + m.lastUpdated.Format(timeLayout)
	}
	if status != "" {
		help = append(help, styles.HelpStyle.Render(status))
	}

	return strings.Join(help, styles.HelpStyle.Render(" · "))
}

// truncateLines cuts every line of s to width cells without breaking escape
// sequences.
func truncateLines(s string, width int) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if ansi.StringWidth(line) > width {
			lines[i] = ansi.Truncate(line, width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

// Run starts the live view and blocks until the user quits.
func Run(ctx context.Context, mgr *services.Manager, interval time.Duration) error {
	if err := mgr.Start(ctx); err != nil {
		logger.Warn("credential watcher unavailable", "error", err)
	}
	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	p := tea.NewProgram(NewModel(mgr, ch, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("live view failed: %w", err)
	}
	return nil
}
