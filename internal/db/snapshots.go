package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/minimax-status/internal/models"
)

// timestampLayout matches SQLite's datetime() output so range filters work
// on the stored text.
const timestampLayout = "2006-01-02 15:04:05"

// InsertSnapshot records a fetched usage snapshot.
func (db *DB) InsertSnapshot(ctx context.Context, snap *models.UsageSnapshot) error {
	query := `
		INSERT INTO usage_snapshots (
			timestamp, group_id, model_name, used, total, remaining,
			percentage, remains_ms, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	timestamp := snap.FetchedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var endTime int64
	if !snap.EndTime.IsZero() {
		endTime = snap.EndTime.UnixMilli()
	}

	_, err := db.ExecContext(ctx, query,
		timestamp.UTC().Format(timestampLayout),
		snap.GroupID,
		snap.ModelName,
		snap.Used,
		snap.Total,
		snap.Remaining,
		snap.Percentage,
		snap.RemainsMs,
		endTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the most recent snapshot, or nil if none exist.
func (db *DB) GetLatestSnapshot(ctx context.Context) (*models.SnapshotRecord, error) {
	query := `
		SELECT id, timestamp, group_id, model_name, used, total, remaining,
			   percentage, remains_ms, end_time
		FROM usage_snapshots
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	rec, err := scanSnapshot(db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetSnapshots returns up to limit of the most recent snapshots in
// chronological order.
func (db *DB) GetSnapshots(ctx context.Context, limit int) ([]models.SnapshotRecord, error) {
	query := `
		SELECT id, timestamp, group_id, model_name, used, total, remaining,
			   percentage, remains_ms, end_time
		FROM (
			SELECT * FROM usage_snapshots
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// PruneSnapshots deletes snapshots older than the given age and returns how
// many rows were removed.
func (db *DB) PruneSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(timestampLayout)
	result, err := db.ExecContext(ctx, "DELETE FROM usage_snapshots WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*models.SnapshotRecord, error) {
	var (
		rec       models.SnapshotRecord
		timestamp string
		endTime   int64
	)

	err := row.Scan(
		&rec.ID,
		&timestamp,
		&rec.GroupID,
		&rec.ModelName,
		&rec.Used,
		&rec.Total,
		&rec.Remaining,
		&rec.Percentage,
		&rec.RemainsMs,
		&endTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	rec.Timestamp, err = time.ParseInLocation(timestampLayout, timestamp, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot timestamp %q: %w", timestamp, err)
	}
	if endTime > 0 {
		rec.EndTime = time.UnixMilli(endTime)
	}
	return &rec, nil
}
