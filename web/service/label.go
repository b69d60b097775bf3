package service

import (
	"context"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

var colorPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)

// normalizeColor accepts six hex digits with an optional leading '#' and
// returns the canonical lowercase "#rrggbb" form.
func normalizeColor(s string) (string, error) {
	m := colorPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", common.Invalid("color %q is not a 6-digit hex RGB value", s)
	}
	return "#" + strings.ToLower(m[1]), nil
}

func checkLabelName(s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", common.Invalid("label name is required")
	}
	if len(name) > 64 {
		return "", common.Invalid("label name is too long")
	}
	return name, nil
}

// LabelService manages the global label registry and the labels attached to
// tasks.
type LabelService struct {
	taskScoped
}

func NewLabelService(db *gorm.DB, now Clock) *LabelService {
	return &LabelService{taskScoped: newTaskScoped(db, now)}
}

// TaskLabelView is a label as attached to a task. Id is the join row id,
// which is the key for detaching.
type TaskLabelView struct {
	Id      int    `json:"id"`
	LabelId int    `json:"labelId"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

func listTaskLabels(db *gorm.DB, taskId int) ([]TaskLabelView, error) {
	views := make([]TaskLabelView, 0)
	err := db.Table("task_labels").
		Select("task_labels.id, task_labels.label_id, labels.name, labels.color").
		Joins("JOIN labels ON labels.id = task_labels.label_id").
		Where("task_labels.task_id = ?", taskId).
		Order("labels.name ASC").
		Scan(&views).Error
	if err != nil {
		return nil, common.Internal(err)
	}
	return views, nil
}

func (s *LabelService) ListLabels(ctx context.Context) ([]model.Label, error) {
	var labels []model.Label
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&labels).Error; err != nil {
		return nil, common.Internal(err)
	}
	return labels, nil
}

func (s *LabelService) CreateLabel(ctx context.Context, name, color string) (*model.Label, error) {
	name, err := checkLabelName(name)
	if err != nil {
		return nil, err
	}
	if color, err = normalizeColor(color); err != nil {
		return nil, err
	}
	label := &model.Label{Name: name, Color: color, CreatedAt: s.now()}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.uniqueName(tx, name, 0); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(label).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, common.Invalid("label %q already exists", name)
		}
		return nil, common.Internal(err)
	}
	return label, nil
}

func (s *LabelService) UpdateLabel(ctx context.Context, id int, name, color string) (*model.Label, error) {
	name, err := checkLabelName(name)
	if err != nil {
		return nil, err
	}
	if color, err = normalizeColor(color); err != nil {
		return nil, err
	}
	var label model.Label
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadLabel(tx, id, &label); err != nil {
			return err
		}
		if err := s.uniqueName(tx, name, id); err != nil {
			return err
		}
		label.Name, label.Color = name, color
		return tx.Model(&model.Label{}).Where("id = ?", id).
			Updates(map[string]any{"name": name, "color": color}).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, common.Invalid("label %q already exists", name)
		}
		return nil, common.Internal(err)
	}
	return &label, nil
}

// DeleteLabel removes a label from the registry and from every task it is
// attached to, recording the removal on each of those tasks.
func (s *LabelService) DeleteLabel(ctx context.Context, actor Actor, id int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var label model.Label
		if err := loadLabel(tx, id, &label); err != nil {
			return err
		}
		var links []model.TaskLabel
		if err := tx.Where("label_id = ?", id).Find(&links).Error; err != nil {
			return err
		}
		for _, l := range links {
			if err := s.activity.Append(tx, actor, l.TaskId, change(model.ActionLabelRemoved, "label", strPtr(label.Name), nil,
				"Removed label '%s'", label.Name)); err != nil {
				return err
			}
		}
		if err := tx.Where("label_id = ?", id).Delete(&model.TaskLabel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Label{}, id).Error
	})
	return common.Internal(err)
}

func (s *LabelService) uniqueName(tx *gorm.DB, name string, exceptId int) error {
	var count int64
	if err := tx.Model(&model.Label{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptId).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return common.Invalid("label %q already exists", name)
	}
	return nil
}

func loadLabel(tx *gorm.DB, id int, label *model.Label) error {
	err := tx.First(label, id).Error
	if database.IsNotFound(err) {
		return common.NotFound("label", id)
	}
	return err
}

func (s *LabelService) ListForTask(ctx context.Context, actor Actor, taskId int) ([]TaskLabelView, error) {
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, err
	}
	return listTaskLabels(s.db.WithContext(ctx), taskId)
}

// Attach links a label to a task. Attaching a label the task already carries
// is a Conflict and leaves the existing link untouched.
func (s *LabelService) Attach(ctx context.Context, actor Actor, taskId, labelId int) (*TaskLabelView, error) {
	var view *TaskLabelView
	err := s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		var label model.Label
		if err := loadLabel(tx, labelId, &label); err != nil {
			return nil, err
		}
		var count int64
		if err := tx.Model(&model.TaskLabel{}).Where("task_id = ? AND label_id = ?", taskId, labelId).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, common.Conflict("label '%s' is already attached to task %d", label.Name, taskId)
		}
		link := model.TaskLabel{TaskId: taskId, LabelId: labelId, CreatedAt: s.now()}
		if err := tx.Create(&link).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return nil, common.Conflict("label '%s' is already attached to task %d", label.Name, taskId)
			}
			return nil, err
		}
		view = &TaskLabelView{Id: link.Id, LabelId: label.Id, Name: label.Name, Color: label.Color}
		return []Entry{change(model.ActionLabelAdded, "label", nil, strPtr(label.Name),
			"Added label '%s'", label.Name)}, nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Detach removes a label link identified by its join row id.
func (s *LabelService) Detach(ctx context.Context, actor Actor, taskId, linkId int) error {
	return s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		var link model.TaskLabel
		err := tx.Where("id = ? AND task_id = ?", linkId, taskId).First(&link).Error
		if database.IsNotFound(err) {
			return nil, common.NotFound("task label", linkId)
		} else if err != nil {
			return nil, err
		}
		var label model.Label
		if err := loadLabel(tx, link.LabelId, &label); err != nil {
			return nil, err
		}
		if err := tx.Delete(&model.TaskLabel{}, link.Id).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionLabelRemoved, "label", strPtr(label.Name), nil,
			"Removed label '%s'", label.Name)}, nil
	})
}
