package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

// MemberService manages the member roles of a task. Members are managed with
// edit access; holding a member role grants view access.
type MemberService struct {
	taskScoped
}

func NewMemberService(db *gorm.DB, now Clock) *MemberService {
	return &MemberService{taskScoped: newTaskScoped(db, now)}
}

type MemberView struct {
	model.TaskMember
	UserName string `json:"userName"`
}

func listMembers(db *gorm.DB, taskId int) ([]MemberView, error) {
	var rows []model.TaskMember
	if err := db.Where("task_id = ?", taskId).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, common.Internal(err)
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserId)
	}
	names, err := userNames(db, ids)
	if err != nil {
		return nil, err
	}
	views := make([]MemberView, 0, len(rows))
	for _, r := range rows {
		views = append(views, MemberView{TaskMember: r, UserName: names[r.UserId]})
	}
	return views, nil
}

func (s *MemberService) List(ctx context.Context, actor Actor, taskId int) ([]MemberView, error) {
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, err
	}
	return listMembers(s.db.WithContext(ctx), taskId)
}

// Add gives userId a role on the task. A user already holding a role is
// rejected with Conflict; use ChangeRole instead.
func (s *MemberService) Add(ctx context.Context, actor Actor, taskId, userId int, role string) (*model.TaskMember, error) {
	r, err := model.ParseMemberRole(role)
	if err != nil {
		return nil, err
	}
	var member *model.TaskMember
	err = s.mutate(ctx, actor, taskId, AccessEdit, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		name, err := memberName(tx, userId)
		if err != nil {
			return nil, err
		}
		exists, err := isMember(tx, taskId, userId)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, common.Conflict("'%s' is already a member of task %d", name, taskId)
		}
		member = &model.TaskMember{TaskId: taskId, UserId: userId, Role: r, CreatedAt: s.now()}
		if err := tx.Create(member).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return nil, common.Conflict("'%s' is already a member of task %d", name, taskId)
			}
			return nil, err
		}
		return []Entry{change(model.ActionMemberAdded, "member", nil, strPtr(string(r)),
			"Added member '%s' as %s", name, r)}, nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// ChangeRole updates the role of an existing member in place. Requesting the
// current role is a Conflict.
func (s *MemberService) ChangeRole(ctx context.Context, actor Actor, taskId, memberId int, role string) (*model.TaskMember, error) {
	r, err := model.ParseMemberRole(role)
	if err != nil {
		return nil, err
	}
	var member *model.TaskMember
	err = s.mutate(ctx, actor, taskId, AccessEdit, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		m, err := loadMember(tx, taskId, memberId)
		if err != nil {
			return nil, err
		}
		name, err := memberName(tx, m.UserId)
		if err != nil {
			return nil, err
		}
		if m.Role == r {
			return nil, common.Conflict("'%s' already has role %s", name, r)
		}
		if err := tx.Model(&model.TaskMember{}).Where("id = ?", m.Id).UpdateColumn("role", r).Error; err != nil {
			return nil, err
		}
		before := m.Role
		m.Role = r
		member = m
		return []Entry{change(model.ActionMemberRoleChanged, "role", strPtr(string(before)), strPtr(string(r)),
			"Changed role of '%s' from %s to %s", name, before, r)}, nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *MemberService) Remove(ctx context.Context, actor Actor, taskId, memberId int) error {
	return s.mutate(ctx, actor, taskId, AccessEdit, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		m, err := loadMember(tx, taskId, memberId)
		if err != nil {
			return nil, err
		}
		name, err := memberName(tx, m.UserId)
		if err != nil {
			return nil, err
		}
		if err := tx.Delete(&model.TaskMember{}, m.Id).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionMemberRemoved, "member", strPtr(string(m.Role)), nil,
			"Removed member '%s' (%s)", name, m.Role)}, nil
	})
}

func loadMember(tx *gorm.DB, taskId, memberId int) (*model.TaskMember, error) {
	var m model.TaskMember
	err := tx.Where("id = ? AND task_id = ?", memberId, taskId).First(&m).Error
	if database.IsNotFound(err) {
		return nil, common.NotFound("member", memberId)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func memberName(tx *gorm.DB, userId int) (string, error) {
	var u model.User
	err := tx.Select("id", "username", "display_name").First(&u, userId).Error
	if database.IsNotFound(err) {
		return "", common.Invalid("user %d does not exist", userId)
	}
	if err != nil {
		return "", err
	}
	return u.Name(), nil
}
