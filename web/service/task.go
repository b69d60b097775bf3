package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
)

const minTitleLength = 3

// TaskService owns the task record and its status state machine.
type TaskService struct {
	taskScoped
	blobs BlobStore
}

func NewTaskService(db *gorm.DB, blobs BlobStore, now Clock) *TaskService {
	return &TaskService{taskScoped: newTaskScoped(db, now), blobs: blobs}
}

type CreateTaskInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssigneeId  *int    `json:"assigneeId"`
	SiteId      *int    `json:"siteId"`
	CompanyId   *int    `json:"companyId"`
	Deadline    *string `json:"deadline"`
}

// UpdateTaskInput carries only the fields to change. A zero id clears the
// assignee, site or company; an empty deadline clears the deadline.
type UpdateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	AssigneeId  *int    `json:"assigneeId"`
	SiteId      *int    `json:"siteId"`
	CompanyId   *int    `json:"companyId"`
	Deadline    *string `json:"deadline"`
}

type TaskFilter struct {
	Page
	Status     string `form:"status" json:"status"`
	Priority   string `form:"priority" json:"priority"`
	AssigneeId int    `form:"assigneeId" json:"assigneeId"`
	Search     string `form:"search" json:"search"`
}

// TaskDetail is a task with its members, labels and checklist progress.
type TaskDetail struct {
	model.Task
	Members        []MemberView    `json:"members"`
	Labels         []TaskLabelView `json:"labels"`
	ChecklistTotal int             `json:"checklistTotal"`
	ChecklistDone  int             `json:"checklistDone"`
}

func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < minTitleLength {
		return "", common.Invalid("title must be at least %d characters", minTitleLength)
	}
	return title, nil
}

// parseDeadline accepts YYYY-MM-DD; an empty string means no deadline.
func parseDeadline(s string) (*string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return nil, common.Invalid("deadline %q is not a YYYY-MM-DD date", s)
	}
	return strPtr(d.Format(model.DateLayout)), nil
}

// optionalId turns the wire convention "0 clears" into a nullable id.
func optionalId(id *int) (*int, error) {
	if id == nil || *id == 0 {
		return nil, nil
	}
	if *id < 0 {
		return nil, common.Invalid("invalid id %d", *id)
	}
	v := *id
	return &v, nil
}

// completion returns the completion timestamp status implies.
func completion(status model.TaskStatus, now time.Time) *time.Time {
	if status != model.StatusDone {
		return nil
	}
	return &now
}

func (s *TaskService) Create(ctx context.Context, actor Actor, in CreateTaskInput) (*model.Task, error) {
	title, err := checkTitle(in.Title)
	if err != nil {
		return nil, err
	}
	status := model.StatusNew
	if in.Status != "" {
		if status, err = model.ParseTaskStatus(in.Status); err != nil {
			return nil, err
		}
	}
	priority := model.PriorityMedium
	if in.Priority != "" {
		if priority, err = model.ParseTaskPriority(in.Priority); err != nil {
			return nil, err
		}
	}
	var deadline *string
	if in.Deadline != nil {
		if deadline, err = parseDeadline(*in.Deadline); err != nil {
			return nil, err
		}
	}
	assignee, err := optionalId(in.AssigneeId)
	if err != nil {
		return nil, err
	}
	site, err := optionalId(in.SiteId)
	if err != nil {
		return nil, err
	}
	company, err := optionalId(in.CompanyId)
	if err != nil {
		return nil, err
	}

	now := s.now()
	task := &model.Task{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		Priority:    priority,
		AssigneeId:  assignee,
		SiteId:      site,
		CompanyId:   company,
		Deadline:    deadline,
		CompletedAt: completion(status, now),
		CreatorId:   actor.UserId,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if assignee != nil {
			if err := requireUser(tx, *assignee); err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}
		return s.activity.Append(tx, actor, task.Id,
			change(model.ActionCreated, "", nil, strPtr(title), "Created task '%s'", title),
			change(model.ActionStatusChanged, "status", nil, strPtr(string(status)),
				"Set status of '%s' to '%s'", title, status))
	})
	if err != nil {
		return nil, common.Internal(err)
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, actor Actor, id int) (*TaskDetail, error) {
	task, err := s.view(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	detail := &TaskDetail{Task: *task}
	if detail.Members, err = listMembers(db, id); err != nil {
		return nil, err
	}
	if detail.Labels, err = listTaskLabels(db, id); err != nil {
		return nil, err
	}
	var progress struct {
		Total int
		Done  int
	}
	err = db.Model(&model.ChecklistItem{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) AS done").
		Where("task_id = ?", id).Scan(&progress).Error
	if err != nil {
		return nil, common.Internal(err)
	}
	detail.ChecklistTotal, detail.ChecklistDone = progress.Total, progress.Done
	return detail, nil
}

const taskOrder = "CASE tasks.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, " +
	"CASE WHEN tasks.deadline IS NULL THEN 1 ELSE 0 END, tasks.deadline ASC, tasks.created_at DESC, tasks.id DESC"

// List returns the tasks the actor may see ordered by priority rank, then
// tasks with a deadline before those without, then deadline, then newest
// first.
func (s *TaskService) List(ctx context.Context, actor Actor, filter TaskFilter) ([]model.Task, int64, error) {
	page := filter.Page.Normalize()
	q := s.db.WithContext(ctx).Model(&model.Task{}).Scopes(s.guard.Visible(actor))
	if filter.Status != "" {
		st, err := model.ParseTaskStatus(filter.Status)
		if err != nil {
			return nil, 0, err
		}
		q = q.Where("tasks.status = ?", st)
	}
	if filter.Priority != "" {
		p, err := model.ParseTaskPriority(filter.Priority)
		if err != nil {
			return nil, 0, err
		}
		q = q.Where("tasks.priority = ?", p)
	}
	if filter.AssigneeId > 0 {
		q = q.Where("tasks.assignee_id = ?", filter.AssigneeId)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where("LOWER(tasks.title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, common.Internal(err)
	}
	tasks := make([]model.Task, 0, page.PageSize)
	if err := q.Order(taskOrder).Limit(page.PageSize).Offset(page.offset()).Find(&tasks).Error; err != nil {
		return nil, 0, common.Internal(err)
	}
	return tasks, total, nil
}

// Update applies the given field changes. Status changes maintain
// CompletedAt; changing the assignee is reserved to administrators. An input
// that changes nothing leaves the task and its trail untouched.
func (s *TaskService) Update(ctx context.Context, actor Actor, id int, in UpdateTaskInput) (*model.Task, error) {
	var (
		title, deadline    *string
		status             *model.TaskStatus
		priority           *model.TaskPriority
		assignee, site, co *int
		err                error
	)
	if in.Title != nil {
		t, err := checkTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		title = &t
	}
	if in.Status != nil {
		st, err := model.ParseTaskStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		status = &st
	}
	if in.Priority != nil {
		p, err := model.ParseTaskPriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		priority = &p
	}
	if in.Deadline != nil {
		if deadline, err = parseDeadline(*in.Deadline); err != nil {
			return nil, err
		}
	}
	if assignee, err = optionalId(in.AssigneeId); err != nil {
		return nil, err
	}
	if site, err = optionalId(in.SiteId); err != nil {
		return nil, err
	}
	if co, err = optionalId(in.CompanyId); err != nil {
		return nil, err
	}

	var result model.Task
	err = s.mutate(ctx, actor, id, AccessEdit, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		now := s.now()
		updates := map[string]any{}
		var entries []Entry

		if title != nil && *title != task.Title {
			updates["title"] = *title
			entries = append(entries, change(model.ActionTitleChanged, "title", strPtr(task.Title), title,
				"Renamed task from '%s' to '%s'", task.Title, *title))
			task.Title = *title
		}
		if in.Description != nil {
			desc := strings.TrimSpace(*in.Description)
			if desc != task.Description {
				updates["description"] = desc
				entries = append(entries, change(model.ActionDescriptionChanged, "description", strPtr(task.Description), strPtr(desc),
					"Updated description of '%s'", task.Title))
				task.Description = desc
			}
		}
		if status != nil && *status != task.Status {
			updates["status"] = *status
			entries = append(entries, change(model.ActionStatusChanged, "status", strPtr(string(task.Status)), strPtr(string(*status)),
				"Changed status of '%s' from '%s' to '%s'", task.Title, task.Status, *status))
			switch {
			case *status == model.StatusDone:
				updates["completed_at"] = now
				task.CompletedAt = &now
			case task.Status == model.StatusDone:
				updates["completed_at"] = nil
				task.CompletedAt = nil
			}
			task.Status = *status
		}
		if priority != nil && *priority != task.Priority {
			updates["priority"] = *priority
			entries = append(entries, change(model.ActionPriorityChanged, "priority", strPtr(string(task.Priority)), strPtr(string(*priority)),
				"Changed priority of '%s' from '%s' to '%s'", task.Title, task.Priority, *priority))
			task.Priority = *priority
		}
		if in.Deadline != nil && !sameString(deadline, task.Deadline) {
			updates["deadline"] = deadline
			entries = append(entries, change(model.ActionDeadlineChanged, "deadline", task.Deadline, deadline,
				"Changed deadline of '%s' from %s to %s", task.Title, orNone(task.Deadline), orNone(deadline)))
			task.Deadline = deadline
		}
		if in.AssigneeId != nil && !sameId(assignee, task.AssigneeId) {
			if !actor.IsAdmin() {
				return nil, fmt.Errorf("%w: only administrators can reassign a task", common.ErrForbidden)
			}
			if assignee != nil {
				if err := requireUser(tx, *assignee); err != nil {
					return nil, err
				}
			}
			names, err := userNames(tx, idList(task.AssigneeId, assignee))
			if err != nil {
				return nil, err
			}
			updates["assignee_id"] = assignee
			entries = append(entries, change(model.ActionAssigneeChanged, "assignee", idString(task.AssigneeId), idString(assignee),
				"Changed assignee of '%s' from %s to %s", task.Title, userLabel(names, task.AssigneeId), userLabel(names, assignee)))
			task.AssigneeId = assignee
		}
		if in.SiteId != nil && !sameId(site, task.SiteId) {
			updates["site_id"] = site
			entries = append(entries, change(model.ActionSiteChanged, "site", idString(task.SiteId), idString(site),
				"Changed site of '%s' from %s to %s", task.Title, orNone(idString(task.SiteId)), orNone(idString(site))))
			task.SiteId = site
		}
		if in.CompanyId != nil && !sameId(co, task.CompanyId) {
			updates["company_id"] = co
			entries = append(entries, change(model.ActionCompanyChanged, "company", idString(task.CompanyId), idString(co),
				"Changed company of '%s' from %s to %s", task.Title, orNone(idString(task.CompanyId)), orNone(idString(co))))
			task.CompanyId = co
		}

		if len(updates) > 0 {
			updates["updated_at"] = now
			task.UpdatedAt = now
			if err := tx.Model(&model.Task{}).Where("id = ?", task.Id).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		result = *task
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes the task and its children in one transaction, then removes
// the attachment blobs. Blob failures are logged and left for the orphan
// sweep.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id int) error {
	var locators []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.guard.Load(tx, actor, id, AccessEdit)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Attachment{}).Where("task_id = ?", id).Pluck("locator", &locators).Error; err != nil {
			return err
		}
		for _, child := range []any{
			&model.TaskMember{},
			&model.ChecklistItem{},
			&model.Comment{},
			&model.Attachment{},
			&model.TaskLabel{},
			&model.Activity{},
		} {
			if err := tx.Where("task_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&model.Task{}, id).Error; err != nil {
			return err
		}
		logger.Infof("task %d '%s' deleted by user %d", task.Id, task.Title, actor.UserId)
		return nil
	})
	if err != nil {
		return common.Internal(err)
	}
	s.removeBlobs(locators)
	return nil
}

func (s *TaskService) removeBlobs(locators []string) {
	if s.blobs == nil {
		return
	}
	for _, loc := range locators {
		if err := s.blobs.Delete(loc); err != nil {
			logger.Warningf("cannot remove blob %s: %v", loc, err)
		}
	}
}

func requireUser(tx *gorm.DB, userId int) error {
	var count int64
	if err := tx.Model(&model.User{}).Where("id = ?", userId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return common.Invalid("user %d does not exist", userId)
	}
	return nil
}

func idList(ids ...*int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

func userLabel(names map[int]string, id *int) string {
	if id == nil {
		return "none"
	}
	if n, ok := names[*id]; ok {
		return "'" + n + "'"
	}
	return fmt.Sprintf("user #%d", *id)
}

func orNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}
