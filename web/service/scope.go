package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

// taskScoped is shared by every manager of a task or one of its child
// collections.
type taskScoped struct {
	db       *gorm.DB
	now      Clock
	guard    TaskGuard
	activity *ActivityService
}

func newTaskScoped(db *gorm.DB, now Clock) taskScoped {
	if now == nil {
		now = SystemClock
	}
	return taskScoped{db: db, now: now, activity: NewActivityService(db, now)}
}

// mutation changes a loaded task or its children and returns the activity
// entries describing the change.
type mutation func(tx *gorm.DB, task *model.Task) ([]Entry, error)

// mutate loads the task under the requested access, applies fn and appends
// its entries, all in one transaction. Either everything commits or nothing
// does.
func (s taskScoped) mutate(ctx context.Context, actor Actor, taskId int, want Access, fn mutation) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.guard.Load(tx, actor, taskId, want)
		if err != nil {
			return err
		}
		entries, err := fn(tx, task)
		if err != nil {
			return err
		}
		return s.activity.Append(tx, actor, taskId, entries...)
	})
	return common.Internal(err)
}

// view loads the task for reading.
func (s taskScoped) view(ctx context.Context, actor Actor, taskId int) (*model.Task, error) {
	return s.guard.Load(s.db.WithContext(ctx), actor, taskId, AccessView)
}
