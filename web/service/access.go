package service

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

// Access is the instance-level right requested on a task.
type Access int

const (
	// AccessView covers reading the task and mutating its checklist,
	// comments, labels and attachments.
	AccessView Access = iota
	// AccessEdit covers updating or deleting the task and managing members.
	AccessEdit
)

func (a Access) String() string {
	if a == AccessEdit {
		return "edit"
	}
	return "view"
}

// TaskGuard decides whether an actor may touch a given task.
type TaskGuard struct{}

// Load fetches the task and checks access. A missing task and a task the
// actor has no relationship with both fail with ErrNotFound; an actor who can
// see the task but lacks the requested right gets ErrForbidden.
func (TaskGuard) Load(tx *gorm.DB, actor Actor, taskId int, want Access) (*model.Task, error) {
	var task model.Task
	err := tx.First(&task, taskId).Error
	if database.IsNotFound(err) {
		return nil, common.NotFound("task", taskId)
	} else if err != nil {
		return nil, common.Internal(err)
	}
	if actor.IsAdmin() {
		return &task, nil
	}
	if task.IsOwner(actor.UserId) {
		return &task, nil
	}
	member, err := isMember(tx, taskId, actor.UserId)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, common.NotFound("task", taskId)
	}
	if want == AccessEdit {
		return nil, fmt.Errorf("%w: task %d requires %s access", common.ErrForbidden, taskId, want)
	}
	return &task, nil
}

// Visible restricts a task query to the rows the actor may list.
func (TaskGuard) Visible(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsAdmin() {
			return db
		}
		return db.Where("(tasks.creator_id = ? OR tasks.assignee_id = ? OR tasks.id IN (SELECT task_id FROM task_members WHERE user_id = ?))",
			actor.UserId, actor.UserId, actor.UserId)
	}
}

// CheckAuthor allows deleting a comment or attachment to administrators and
// to its author.
func (TaskGuard) CheckAuthor(actor Actor, authorId int, what string) error {
	if actor.IsAdmin() || actor.UserId == authorId {
		return nil
	}
	return fmt.Errorf("%w: only the author may delete this %s", common.ErrForbidden, what)
}

func isMember(tx *gorm.DB, taskId, userId int) (bool, error) {
	var count int64
	err := tx.Model(&model.TaskMember{}).
		Where("task_id = ? AND user_id = ?", taskId, userId).
		Count(&count).Error
	if err != nil {
		return false, common.Internal(err)
	}
	return count > 0, nil
}
