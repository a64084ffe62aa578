package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/services"
)

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = time.Minute

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// refreshCmd returns a command that fetches a fresh snapshot and, when the
// source can, a projection for it.
func refreshCmd(src Source) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		snap, err := src.Refresh(ctx)
		msg := UsageLoadedMsg{Snapshot: snap, Err: err, At: time.Now()}
		if err != nil {
			return msg
		}

		if p, ok := src.(Projector); ok {
			proj, err := p.Project(ctx)
			if err != nil {
				logger.Warn("failed to project usage", "error", err)
			}
			msg.Projection = proj
		}
		return msg
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}
