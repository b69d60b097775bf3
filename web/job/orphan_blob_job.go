// Package job holds the background jobs scheduled by the web server.
package job

import (
	"time"

	"gorm.io/gorm"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
)

// DefaultOrphanAge is how old an unreferenced blob must be before the sweep
// removes it. Uploads store their bytes before the row exists.
const DefaultOrphanAge = time.Hour

// sweepBatch bounds the locator list of one lookup query.
const sweepBatch = 500

// BlobSweeper is the part of a blob store the sweep needs.
type BlobSweeper interface {
	Walk(fn func(locator string, modTime time.Time) error) error
	Delete(locator string) error
}

// OrphanBlobJob removes stored files that no attachment row references, such
// as the blobs of tasks deleted through a database cascade.
type OrphanBlobJob struct {
	db     *gorm.DB
	blobs  BlobSweeper
	now    func() time.Time
	minAge time.Duration
}

// NewOrphanBlobJob creates a new orphan blob sweep job.
func NewOrphanBlobJob(db *gorm.DB, blobs BlobSweeper, now func() time.Time) *OrphanBlobJob {
	if now == nil {
		now = time.Now
	}
	return &OrphanBlobJob{db: db, blobs: blobs, now: now, minAge: DefaultOrphanAge}
}

// Run is called by cron.
func (j *OrphanBlobJob) Run() {
	logger.Debug("Orphan blob sweep started")
	removed, err := j.Sweep()
	if err != nil {
		logger.Warning("Orphan blob sweep failed:", err)
		return
	}
	if removed > 0 {
		logger.Infof("Orphan blob sweep removed %d file(s)", removed)
	}
}

// Sweep deletes unreferenced blobs older than the minimum age and returns how
// many were removed. It never touches database rows.
func (j *OrphanBlobJob) Sweep() (int, error) {
	cutoff := j.now().Add(-j.minAge)
	var candidates []string
	err := j.blobs.Walk(func(locator string, modTime time.Time) error {
		if modTime.Before(cutoff) {
			candidates = append(candidates, locator)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for start := 0; start < len(candidates); start += sweepBatch {
		batch := candidates[start:min(start+sweepBatch, len(candidates))]
		var referenced []string
		if err := j.db.Model(&model.Attachment{}).Where("locator IN ?", batch).
			Pluck("locator", &referenced).Error; err != nil {
			return removed, err
		}
		known := make(map[string]struct{}, len(referenced))
		for _, loc := range referenced {
			known[loc] = struct{}{}
		}
		for _, loc := range batch {
			if _, ok := known[loc]; ok {
				continue
			}
			if err := j.blobs.Delete(loc); err != nil {
				logger.Warningf("cannot remove orphan blob %s: %v", loc, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
