package models

import "time"

// UsageSnapshot is the display model derived from the first entry of a
// remains response. It is computed fresh on every request.
type UsageSnapshot struct {
	FetchedAt  time.Time `json:"fetchedAt"`
	EndTime    time.Time `json:"endTime"`
	ModelName  string    `json:"modelName"`
	ResetTime  string    `json:"resetTime"`
	GroupID    string    `json:"groupId,omitempty"`
	Used       int64     `json:"used"`
	Total      int64     `json:"total"`
	Remaining  int64     `json:"remaining"`
	RemainsMs  int64     `json:"remainsMs"`
	Percentage int       `json:"percentage"`
	Hours      int       `json:"hours"`
	Minutes    int       `json:"minutes"`
}

// SnapshotRecord is a persisted snapshot row (DB model).
type SnapshotRecord struct {
	Timestamp  time.Time
	EndTime    time.Time
	GroupID    string
	ModelName  string
	ID         int64
	Used       int64
	Total      int64
	Remaining  int64
	RemainsMs  int64
	Percentage int
}
