package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

// CreateSyncRun inserts the history row of a pass that acquired the lock.
func CreateSyncRun(ctx context.Context, db *gorm.DB, run *domain.SyncRun) error {
	return db.WithContext(ctx).Create(run).Error
}

// FinishSyncRun stores the final status and counters of run.
func FinishSyncRun(ctx context.Context, db *gorm.DB, run *domain.SyncRun) error {
	res := db.WithContext(ctx).
		Model(&domain.SyncRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"finished_at": run.FinishedAt,
			"status":      run.Status,
			"fetched":     run.Fetched,
			"written":     run.Written,
			"skipped":     run.Skipped,
			"error":       run.Error,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSyncRuns returns the most recent runs, newest first.
func ListSyncRuns(ctx context.Context, db *gorm.DB, limit int) ([]domain.SyncRun, error) {
	var out []domain.SyncRun
	if limit <= 0 {
		limit = 20
	}
	err := db.WithContext(ctx).
		Order("started_at DESC").
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PruneSyncRuns keeps only the newest keep runs.
func PruneSyncRuns(ctx context.Context, db *gorm.DB, keep int) error {
	if keep <= 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM sync_runs
		  WHERE id NOT IN (SELECT id FROM sync_runs ORDER BY started_at DESC, id LIMIT ?)`,
		keep,
	).Error
}
