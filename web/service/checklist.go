package service

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

type ChecklistService struct {
	taskScoped
}

func NewChecklistService(db *gorm.DB, now Clock) *ChecklistService {
	return &ChecklistService{taskScoped: newTaskScoped(db, now)}
}

// UpdateChecklistInput carries the fields to change on an item.
type UpdateChecklistInput struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
	Position  *int    `json:"position"`
}

func checkItemTitle(s string) (string, error) {
	title := strings.TrimSpace(s)
	if title == "" {
		return "", common.Invalid("checklist item title is required")
	}
	if len(title) > 255 {
		return "", common.Invalid("checklist item title is too long")
	}
	return title, nil
}

func (s *ChecklistService) List(ctx context.Context, actor Actor, taskId int) ([]model.ChecklistItem, error) {
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, err
	}
	items := make([]model.ChecklistItem, 0)
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskId).
		Order("position ASC, id ASC").Find(&items).Error; err != nil {
		return nil, common.Internal(err)
	}
	return items, nil
}

// Add appends an item after the current last position.
func (s *ChecklistService) Add(ctx context.Context, actor Actor, taskId int, title string) (*model.ChecklistItem, error) {
	title, err := checkItemTitle(title)
	if err != nil {
		return nil, err
	}
	item := &model.ChecklistItem{TaskId: taskId, Title: title}
	err = s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		var last int
		if err := tx.Model(&model.ChecklistItem{}).Where("task_id = ?", taskId).
			Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return nil, err
		}
		item.Position = last + 1
		item.CreatedAt = s.now()
		if err := tx.Create(item).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionChecklistAdded, "checklist", nil, strPtr(title),
			"Added checklist item: '%s'", title)}, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update renames, toggles or repositions an item. Each changed aspect is
// recorded with its own action kind; an update that changes nothing is a
// Conflict.
func (s *ChecklistService) Update(ctx context.Context, actor Actor, taskId, itemId int, in UpdateChecklistInput) (*model.ChecklistItem, error) {
	var title string
	if in.Title != nil {
		t, err := checkItemTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		title = t
	}
	if in.Position != nil && *in.Position < 0 {
		return nil, common.Invalid("position must not be negative")
	}

	var item *model.ChecklistItem
	err := s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		it, err := loadChecklistItem(tx, taskId, itemId)
		if err != nil {
			return nil, err
		}
		updates := map[string]any{}
		var entries []Entry
		if in.Title != nil && title != it.Title {
			updates["title"] = title
			entries = append(entries, change(model.ActionChecklistRenamed, "title", strPtr(it.Title), strPtr(title),
				"Renamed checklist item '%s' to '%s'", it.Title, title))
			it.Title = title
		}
		if in.Completed != nil && *in.Completed != it.Completed {
			updates["completed"] = *in.Completed
			kind, verb := model.ActionChecklistCompleted, "Completed"
			if !*in.Completed {
				kind, verb = model.ActionChecklistUncompleted, "Reopened"
			}
			entries = append(entries, change(kind, "completed", valueOf(it.Completed), valueOf(*in.Completed),
				"%s checklist item: '%s'", verb, it.Title))
			it.Completed = *in.Completed
		}
		if in.Position != nil && *in.Position != it.Position {
			updates["position"] = *in.Position
			entries = append(entries, change(model.ActionChecklistReordered, "position",
				strPtr(strconv.Itoa(it.Position)), strPtr(strconv.Itoa(*in.Position)),
				"Moved checklist item '%s' to position %d", it.Title, *in.Position))
			it.Position = *in.Position
		}
		if len(updates) == 0 {
			return nil, common.Conflict("checklist item %d already matches the request", itemId)
		}
		if err := tx.Model(&model.ChecklistItem{}).Where("id = ?", it.Id).Updates(updates).Error; err != nil {
			return nil, err
		}
		item = it
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ChecklistService) Remove(ctx context.Context, actor Actor, taskId, itemId int) error {
	return s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		it, err := loadChecklistItem(tx, taskId, itemId)
		if err != nil {
			return nil, err
		}
		if err := tx.Delete(&model.ChecklistItem{}, it.Id).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionChecklistRemoved, "checklist", strPtr(it.Title), nil,
			"Removed checklist item: '%s'", it.Title)}, nil
	})
}

func loadChecklistItem(tx *gorm.DB, taskId, itemId int) (*model.ChecklistItem, error) {
	var it model.ChecklistItem
	err := tx.Where("id = ? AND task_id = ?", itemId, taskId).First(&it).Error
	if database.IsNotFound(err) {
		return nil, common.NotFound("checklist item", itemId)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}
