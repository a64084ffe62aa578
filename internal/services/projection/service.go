// Package projection estimates quota exhaustion from recorded snapshots.
package projection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/j-veylop/minimax-status/internal/models"
)

const (
	lowConfThreshold = 6
	medConfThreshold = 24

	// historyWindow bounds how many snapshots are read per projection.
	historyWindow = 500

	depleteLayout = "01-02 15:04"
)

// SnapshotSource lists recorded snapshots in chronological order.
type SnapshotSource interface {
	GetSnapshots(ctx context.Context, limit int) ([]models.SnapshotRecord, error)
}

// Service projects usage from the snapshot history.
type Service struct {
	source SnapshotSource
	now    func() time.Time
}

// New creates a projection service.
func New(source SnapshotSource) *Service {
	return &Service{source: source, now: time.Now}
}

// Current projects the window of the most recent snapshot.
func (s *Service) Current(ctx context.Context) (*models.UsageProjection, error) {
	records, err := s.source.GetSnapshots(ctx, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return Calculate(records, s.now()), nil
}

// Calculate projects the window of the last record. Only records from the
// same group and reset window take part.
func Calculate(records []models.SnapshotRecord, now time.Time) *models.UsageProjection {
	proj := &models.UsageProjection{
		Status:     models.ProjectionUnknown,
		Confidence: "low",
		HoursLeft:  math.Inf(1),
	}
	if len(records) == 0 {
		return proj
	}

	window := currentWindow(records)
	first, last := window[0], window[len(window)-1]

	proj.DataPoints = len(window)
	proj.ResetTime = last.EndTime

	switch {
	case proj.DataPoints < lowConfThreshold:
		proj.Confidence = "low"
	case proj.DataPoints < medConfThreshold:
		proj.Confidence = "medium"
	default:
		proj.Confidence = "high"
	}

	span := last.Timestamp.Sub(first.Timestamp).Hours()
	if len(window) < 2 || span <= 0 {
		return proj
	}

	proj.RatePerHour = float64(last.Percentage-first.Percentage) / span
	if proj.RatePerHour > 0 {
		proj.HoursLeft = float64(100-last.Percentage) / proj.RatePerHour
		proj.DepleteAt = last.Timestamp.Add(time.Duration(proj.HoursLeft * float64(time.Hour)))
	} else {
		proj.RatePerHour = 0
	}

	if proj.ResetTime.IsZero() || !proj.ResetTime.After(now) {
		return proj
	}

	proj.WillDepleteBefore = proj.RatePerHour > 0 && proj.DepleteAt.Before(proj.ResetTime)
	switch {
	case !proj.WillDepleteBefore:
		proj.Status = models.ProjectionSafe
	case proj.DepleteAt.Sub(now) < time.Hour:
		proj.Status = models.ProjectionCritical
	default:
		proj.Status = models.ProjectionWarning
	}

	return proj
}

// currentWindow returns the trailing run of records sharing the last
// record's group and reset time.
func currentWindow(records []models.SnapshotRecord) []models.SnapshotRecord {
	last := records[len(records)-1]
	start := len(records) - 1
	for start > 0 {
		prev := records[start-1]
		if prev.GroupID != last.GroupID || !prev.EndTime.Equal(last.EndTime) {
			break
		}
		start--
	}
	return records[start:]
}

// Summary renders a one-line description of the projection.
func Summary(p *models.UsageProjection, loc *time.Location) string {
	switch {
	case p == nil || p.DataPoints < 2:
		return "数据不足，暂无法预测用尽时间"
	case p.RatePerHour <= 0:
		return "当前周期暂无新增消耗"
	}

	rate := fmt.Sprintf("按当前速度（每小时 %.1f%%）", p.RatePerHour)
	depleteAt := p.DepleteAt.In(loc).Format(depleteLayout)

	switch p.Status {
	case models.ProjectionSafe:
		return rate + "可坚持到重置"
	case models.ProjectionWarning, models.ProjectionCritical:
		return fmt.Sprintf("%s预计 %s 用尽，早于重置时间", rate, depleteAt)
	default:
		return fmt.Sprintf("%s预计 %s 用尽", rate, depleteAt)
	}
}
