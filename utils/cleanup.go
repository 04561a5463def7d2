package utils

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/socialbbs/models"
)

// sweepBatch caps how many orphans one sweep pass handles.
const sweepBatch = 100

// FileRemover deletes a stored upload by generated name.
type FileRemover interface {
	Delete(ctx context.Context, name string) error
}

// UploadRegistry tracks stored uploads so that files never attached to a post or profile can be
// swept later.
type UploadRegistry struct {
	db *gorm.DB
}

// NewUploadRegistry creates a registry on db.
func NewUploadRegistry(db *gorm.DB) *UploadRegistry {
	return &UploadRegistry{db: db}
}

// Record inserts an unclaimed row for a freshly stored file.
func (r *UploadRegistry) Record(ctx context.Context, f *models.UploadedFile) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// Claim attaches files to their owner so the sweeper leaves them alone.
func (r *UploadRegistry) Claim(ctx context.Context, names []string, ownerType string, ownerID uint) error {
	if len(names) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.UploadedFile{}).
		Where("name IN ?", names).
		Updates(map[string]interface{}{"owner_type": ownerType, "owner_id": ownerID}).Error
}

// Forget removes rows for files that were deleted by their owner.
func (r *UploadRegistry) Forget(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("name IN ?", names).Delete(&models.UploadedFile{}).Error
}

// SweepOrphans deletes unclaimed uploads older than ttl, from the store first and then from the
// registry. It returns how many rows were removed.
func (r *UploadRegistry) SweepOrphans(ctx context.Context, store FileRemover, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	var items []models.UploadedFile
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND created_at <= ?", 0, cutoff).
		Order("id").
		Limit(sweepBatch).
		Find(&items).Error
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, it := range items {
		if err := store.Delete(ctx, it.Name); err != nil {
			// keep the row so the next pass retries
			Logger.Sugar().Warnf("sweep delete file failed name=%s err=%v", it.Name, err)
			continue
		}
		if err := r.db.WithContext(ctx).Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			Logger.Sugar().Warnf("sweep delete row failed id=%d err=%v", it.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartUploadCleaner sweeps orphaned uploads every interval until ctx is done.
func StartUploadCleaner(ctx context.Context, reg *UploadRegistry, store FileRemover, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := reg.SweepOrphans(ctx, store, ttl)
			if err != nil && !errors.Is(err, context.Canceled) {
				Sugar.Warnf("upload cleaner query failed: %v", err)
				continue
			}
			if n > 0 {
				Sugar.Infof("upload cleaner removed %d orphaned files", n)
			}
		}
	}()
}
