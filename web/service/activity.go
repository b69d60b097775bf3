package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
)

// ActivityService appends to and reads the per-task audit trail.
type ActivityService struct {
	db    *gorm.DB
	now   Clock
	guard TaskGuard
}

func NewActivityService(db *gorm.DB, now Clock) *ActivityService {
	if now == nil {
		now = SystemClock
	}
	return &ActivityService{db: db, now: now}
}

// Entry is one activity record before it is stored.
type Entry struct {
	Action      model.ActionKind
	Description string
	Field       string
	Old         *string
	New         *string
}

// entryf builds an Entry with a formatted description.
func entryf(kind model.ActionKind, format string, a ...any) Entry {
	return Entry{Action: kind, Description: fmt.Sprintf(format, a...)}
}

// change builds an Entry recording a field going from before to after.
func change(kind model.ActionKind, field string, before, after *string, format string, a ...any) Entry {
	e := entryf(kind, format, a...)
	e.Field = field
	e.Old = before
	e.New = after
	return e
}

// Append writes entries for one mutation. It must run on the transaction that
// performs the mutation.
func (s *ActivityService) Append(tx *gorm.DB, actor Actor, taskId int, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]model.Activity, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, model.Activity{
			TaskId:      taskId,
			ActorId:     actor.UserId,
			Action:      e.Action,
			Description: e.Description,
			Field:       e.Field,
			OldValue:    e.Old,
			NewValue:    e.New,
			CreatedAt:   now,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		logger.Warningf("activity append failed: task=%d actor=%d: %v", taskId, actor.UserId, err)
		return err
	}
	return nil
}

// ActivityView is an activity entry enriched for display.
type ActivityView struct {
	model.Activity
	ActorName string               `json:"actorName"`
	Elapsed   string               `json:"elapsed"`
	Icon      string               `json:"icon"`
	Color     string               `json:"color"`
	Category  model.ActionCategory `json:"category"`
}

type ActivityFilter struct {
	Page
	Action string `form:"action" json:"action"`
}

// List returns the trail of a task newest first. Entries with a kind outside
// the enumeration are rendered with the generic presentation.
func (s *ActivityService) List(ctx context.Context, actor Actor, taskId int, filter ActivityFilter) ([]ActivityView, int64, error) {
	var kind model.ActionKind
	if filter.Action != "" {
		k, ok := model.ParseActionKind(filter.Action)
		if !ok {
			return nil, 0, common.Invalid("unknown action kind %q", filter.Action)
		}
		kind = k
	}
	page := filter.Page.Normalize()

	db := s.db.WithContext(ctx)
	if _, err := s.guard.Load(db, actor, taskId, AccessView); err != nil {
		return nil, 0, err
	}

	q := db.Model(&model.Activity{}).Where("task_id = ?", taskId)
	if kind != "" {
		q = q.Where("action = ?", kind)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, common.Internal(err)
	}
	var rows []model.Activity
	if err := q.Order("created_at DESC, id DESC").Limit(page.PageSize).Offset(page.offset()).Find(&rows).Error; err != nil {
		return nil, 0, common.Internal(err)
	}

	names, err := userNames(db, actorIds(rows))
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	views := make([]ActivityView, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.view(row, names, now))
	}
	return views, total, nil
}

func (s *ActivityService) view(row model.Activity, names map[int]string, now time.Time) ActivityView {
	kind, _ := model.ParseActionKind(string(row.Action))
	p := kind.Presentation()
	name := names[row.ActorId]
	if name == "" {
		name = fmt.Sprintf("user #%d", row.ActorId)
	}
	return ActivityView{
		Activity:  row,
		ActorName: name,
		Elapsed:   elapsed(row.CreatedAt, now),
		Icon:      p.Icon,
		Color:     p.Color,
		Category:  p.Category,
	}
}

func elapsed(at, now time.Time) string {
	if now.Sub(at) < time.Second {
		return "just now"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func actorIds(rows []model.Activity) []int {
	seen := make(map[int]bool, len(rows))
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		if !seen[r.ActorId] {
			seen[r.ActorId] = true
			ids = append(ids, r.ActorId)
		}
	}
	return ids
}

func userNames(db *gorm.DB, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []model.User
	if err := db.Select("id", "username", "display_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, common.Internal(err)
	}
	for i := range users {
		names[users[i].Id] = users[i].Name()
	}
	return names, nil
}

// valueOf renders a before/after value for storage. Strings are kept as is,
// anything else is stored as JSON.
func valueOf(v any) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &x
	case *string:
		return x
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warningf("cannot encode activity value %v: %v", v, err)
		return nil
	}
	return strPtr(string(b))
}
