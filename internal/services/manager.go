// Package services wires the credential store, the usage client and the
// history database together and routes their events to the live view.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/minimax-status/internal/config"
	"github.com/j-veylop/minimax-status/internal/db"
	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/models"
	"github.com/j-veylop/minimax-status/internal/services/credentials"
	"github.com/j-veylop/minimax-status/internal/services/projection"
	"github.com/j-veylop/minimax-status/internal/services/usage"
	"github.com/j-veylop/minimax-status/internal/tools"
)

// resetDropPercent is how far used must fall, as a share of total, before a
// drop counts as a quota reset.
const resetDropPercent = 20.0

type (
	// CredentialsChangedEvent is emitted when the credential file changes on disk.
	CredentialsChangedEvent struct{}

	// ErrorEvent is emitted when a background service fails.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (CredentialsChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()              {}

// NotifyFunc delivers a desktop notification.
type NotifyFunc func(title, message string) error

func beeepNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Manager owns the services behind every command.
type Manager struct {
	mu          sync.RWMutex
	store       *credentials.Store
	tools       *tools.Tools
	database    *db.DB
	historyErr  error
	projection  *projection.Service
	notify      NotifyFunc
	threshold   int
	subscribers []chan ServiceEvent
	previous    *models.UsageSnapshot
	cancel      context.CancelFunc
}

// ManagerOption configures Manager.
type ManagerOption func(*Manager)

// WithNotifier replaces the desktop notifier.
func WithNotifier(fn NotifyFunc) ManagerOption {
	return func(m *Manager) {
		m.notify = fn
	}
}

// NewManager creates the services described by cfg. The history database is
// only opened when history is enabled; when it cannot be opened the manager
// runs without history and HistoryErr reports why.
func NewManager(cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		store:     credentials.New(cfg.CredentialsPath),
		notify:    beeepNotify,
		threshold: cfg.NotifyThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}

	client := usage.NewClient(
		usage.WithBaseURL(cfg.APIURL),
		usage.WithTimeout(cfg.Timeout),
	)

	var toolOpts []tools.Option
	if cfg.HistoryEnabled {
		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			m.historyErr = fmt.Errorf("failed to initialize database: %w", err)
			logger.Warn("history unavailable, continuing without it", "path", cfg.DatabasePath, "error", err)
		} else {
			m.database = database
			m.projection = projection.New(database)
			toolOpts = append(toolOpts, tools.WithRecorder(database))
		}
	}

	m.tools = tools.New(m.store, client, toolOpts...)

	return m, nil
}

// Tools returns the exposed operations.
func (m *Manager) Tools() *tools.Tools {
	return m.tools
}

// Store returns the credential store.
func (m *Manager) Store() *credentials.Store {
	return m.store
}

// Database returns the history database, or nil when history is disabled.
func (m *Manager) Database() *db.DB {
	return m.database
}

// HistoryErr returns the error that kept the history database from opening,
// or nil.
func (m *Manager) HistoryErr() error {
	return m.historyErr
}

// Project forecasts exhaustion of the current window from recorded history.
// It returns nil when history is disabled.
func (m *Manager) Project(ctx context.Context) (*models.UsageProjection, error) {
	if m.projection == nil {
		return nil, nil
	}
	return m.projection.Current(ctx)
}

// Start watches the credential file and broadcasts a CredentialsChangedEvent
// on every change until Close is called.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	err := m.store.Watch(ctx, func() {
		logger.Info("credentials changed", "path", m.store.Path())
		m.mu.Lock()
		m.previous = nil
		m.mu.Unlock()
		m.broadcast(CredentialsChangedEvent{})
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch credentials: %w", err)
	}

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	return nil
}

// Refresh fetches a fresh snapshot, records it and raises any alerts it
// triggers.
func (m *Manager) Refresh(ctx context.Context) (*models.UsageSnapshot, error) {
	snap, err := m.tools.Snapshot(ctx)
	if err != nil {
		if !errors.Is(err, tools.ErrNotConfigured) {
			logger.Warn("usage refresh failed", "error", err)
		}
		return nil, err
	}

	if m.database != nil {
		if err := m.database.InsertSnapshot(ctx, snap); err != nil {
			logger.Warn("failed to record snapshot", "error", err)
		}
	}

	m.checkNotifications(snap)
	return snap, nil
}

func (m *Manager) checkNotifications(snap *models.UsageSnapshot) {
	m.mu.Lock()
	prev := m.previous
	m.previous = snap
	m.mu.Unlock()

	if prev == nil || prev.GroupID != snap.GroupID {
		return
	}

	// Only notify if we crossed the threshold upwards
	if m.threshold > 0 && snap.Percentage >= m.threshold && prev.Percentage < m.threshold {
		title := "MiniMax 用量提醒"
		body := fmt.Sprintf("已使用 %d%%，剩余 %s 次", snap.Percentage, humanize.Comma(snap.Remaining))
		m.send(title, body)
	}

	if snap.Total > 0 && prev.Used > snap.Used {
		drop := float64(prev.Used-snap.Used) / float64(snap.Total) * 100
		if drop > resetDropPercent {
			m.send("MiniMax 用量已重置", fmt.Sprintf("当前剩余 %s 次", humanize.Comma(snap.Remaining)))
		}
	}
}

func (m *Manager) send(title, body string) {
	if err := m.notify(title, body); err != nil {
		logger.Warn("failed to send notification", "title", title, "error", err)
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 10)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel. It yields
// nil once the channel is closed.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return event
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close stops the watcher, releases subscribers and closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
