package app

import (
	"time"

	"github.com/j-veylop/minimax-status/internal/models"
	"github.com/j-veylop/minimax-status/internal/services"
)

// TickMsg is sent periodically to trigger a usage refresh.
type TickMsg struct {
	Time time.Time
}

// UsageLoadedMsg carries the result of one refresh.
type UsageLoadedMsg struct {
	Snapshot   *models.UsageSnapshot
	Projection *models.UsageProjection
	Err        error
	At         time.Time
}

// ServiceEventMsg wraps an event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}
