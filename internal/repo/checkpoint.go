package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

// GetCheckpoint reads the singleton checkpoint row.
func GetCheckpoint(ctx context.Context, db *gorm.DB) (*domain.SyncCheckpoint, error) {
	var cp domain.SyncCheckpoint
	if err := db.WithContext(ctx).First(&cp, domain.CheckpointID).Error; err != nil {
		return nil, err
	}
	return &cp, nil
}

// AcquireSyncLock moves the checkpoint to in_progress in a single
// compare-and-set statement. It succeeds when no pass is running, or when
// the running pass started before staleBefore and is treated as abandoned.
// It reports whether this caller now owns the pass.
func AcquireSyncLock(ctx context.Context, db *gorm.DB, now, staleBefore domain.Timestamp) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sync_checkpoint
		    SET status = ?, started_at = ?, updated_at = ?
		  WHERE id = ?
		    AND (status <> ? OR started_at IS NULL OR started_at < ?)`,
		domain.SyncStatusInProgress, now, now,
		domain.CheckpointID,
		domain.SyncStatusInProgress, staleBefore,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SyncOutcome describes the end of a successful pass.
type SyncOutcome struct {
	LastSyncTimestamp domain.Timestamp
	RecordCount       int
	Duration          time.Duration
	FinishedAt        domain.Timestamp
}

// MarkSyncSucceeded records a successful pass and advances the timestamp.
func MarkSyncSucceeded(ctx context.Context, db *gorm.DB, o SyncOutcome) error {
	return db.WithContext(ctx).
		Model(&domain.SyncCheckpoint{}).
		Where("id = ?", domain.CheckpointID).
		Updates(map[string]any{
			"last_sync_timestamp": o.LastSyncTimestamp,
			"status":              domain.SyncStatusSuccess,
			"record_count":        o.RecordCount,
			"duration_ms":         o.Duration.Milliseconds(),
			"last_error":          "",
			"last_success_at":     o.FinishedAt,
			"updated_at":          o.FinishedAt,
		}).Error
}

// MarkSyncFailed records a failed pass. The last sync timestamp is left
// untouched so the next pass retries the same window.
func MarkSyncFailed(ctx context.Context, db *gorm.DB, errText string, d time.Duration, at domain.Timestamp) error {
	return db.WithContext(ctx).
		Model(&domain.SyncCheckpoint{}).
		Where("id = ?", domain.CheckpointID).
		Updates(map[string]any{
			"status":       domain.SyncStatusFailed,
			"record_count": 0,
			"duration_ms":  d.Milliseconds(),
			"last_error":   errText,
			"updated_at":   at,
		}).Error
}
