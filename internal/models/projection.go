package models

import "time"

// ProjectionStatus indicates whether quota will last until the next reset.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// UsageProjection estimates when the current window's quota is exhausted.
type UsageProjection struct {
	DepleteAt         time.Time
	ResetTime         time.Time
	Status            ProjectionStatus
	Confidence        string
	RatePerHour       float64 // percentage points used per hour
	HoursLeft         float64
	DataPoints        int
	WillDepleteBefore bool
}
