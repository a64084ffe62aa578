package usage

import (
	"math"
	"time"
	_ "time/tzdata" // Asia/Shanghai must resolve on hosts without zoneinfo

	"github.com/j-veylop/minimax-status/internal/models"
)

const (
	// ResetTimeLayout renders reset timestamps as YYYY-MM-DD HH:mm.
	ResetTimeLayout = "2006-01-02 15:04"

	msPerHour   = int64(time.Hour / time.Millisecond)
	msPerMinute = int64(time.Minute / time.Millisecond)
)

// Shanghai is the zone reset times are rendered in.
var Shanghai = loadShanghai()

func loadShanghai() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Parse derives a snapshot from the first model entry of the payload.
func Parse(payload *models.RemainsResponse) (*models.UsageSnapshot, error) {
	if payload == nil || len(payload.ModelRemains) == 0 {
		return nil, ErrNoData
	}

	m := payload.ModelRemains[0]
	remaining := m.CurrentIntervalUsageCount
	total := m.CurrentIntervalTotalCount
	used := total - remaining

	remainsMs := max(m.RemainsTime, 0)

	snap := &models.UsageSnapshot{
		ModelName:  m.ModelName,
		Used:       used,
		Total:      total,
		Remaining:  remaining,
		Percentage: Percentage(used, total),
		RemainsMs:  remainsMs,
		Hours:      int(remainsMs / msPerHour),
		Minutes:    int(remainsMs % msPerHour / msPerMinute),
		ResetTime:  "未知",
	}

	if m.EndTime > 0 {
		snap.EndTime = time.UnixMilli(m.EndTime).In(Shanghai)
		snap.ResetTime = snap.EndTime.Format(ResetTimeLayout)
	}

	return snap, nil
}

// Percentage returns used/total as a whole percent, rounded to nearest.
// A non-positive total yields 0.
func Percentage(used, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(total) * 100))
}
