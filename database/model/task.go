package model

import (
	"strings"
	"time"

	"github.com/siteops/portal/util/common"
)

type TaskStatus string

const (
	StatusNew        TaskStatus = "new"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// ParseTaskStatus accepts only the enumerated values.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(strings.TrimSpace(s)); st {
	case StatusNew, StatusInProgress, StatusDone, StatusCancelled:
		return st, nil
	}
	return "", common.Invalid("unknown task status %q", s)
}

type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// ParseTaskPriority accepts only the enumerated values.
func ParseTaskPriority(s string) (TaskPriority, error) {
	switch p := TaskPriority(strings.TrimSpace(s)); p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	}
	return "", common.Invalid("unknown task priority %q", s)
}

// Rank orders priorities for listing, urgent first.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// MemberRole is the role a user holds on a task besides the legacy assignee.
type MemberRole string

const (
	MemberResponsible MemberRole = "responsible"
	MemberReviewer    MemberRole = "reviewer"
	MemberObserver    MemberRole = "observer"
)

func ParseMemberRole(s string) (MemberRole, error) {
	switch r := MemberRole(strings.TrimSpace(s)); r {
	case MemberResponsible, MemberReviewer, MemberObserver:
		return r, nil
	}
	return "", common.Invalid("unknown member role %q", s)
}

// DateLayout is the storage and wire format of task deadlines.
const DateLayout = "2006-01-02"

// Task is the central kanban entity. CompletedAt is set if and only if Status
// is done; services maintain it, clients never supply it.
type Task struct {
	Id          int          `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string       `json:"title" gorm:"size:255;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Status      TaskStatus   `json:"status" gorm:"size:20;index;not null"`
	Priority    TaskPriority `json:"priority" gorm:"size:10;index;not null"`
	AssigneeId  *int         `json:"assigneeId" gorm:"index"`
	SiteId      *int         `json:"siteId" gorm:"index"`
	CompanyId   *int         `json:"companyId" gorm:"index"`
	Deadline    *string      `json:"deadline" gorm:"size:10;index"`
	CompletedAt *time.Time   `json:"completedAt"`
	CreatorId   int          `json:"creatorId" gorm:"index;not null"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	Members     []TaskMember    `json:"-" gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
	Checklist   []ChecklistItem `json:"-" gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
	Comments    []Comment       `json:"-" gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
	Attachments []Attachment    `json:"-" gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
	Labels      []TaskLabel     `json:"-" gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
	Activities  []Activity      `json:"-" gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
}

// IsOwner reports whether userId is the task's creator or legacy assignee.
func (t *Task) IsOwner(userId int) bool {
	return t.CreatorId == userId || (t.AssigneeId != nil && *t.AssigneeId == userId)
}

type TaskMember struct {
	Id        int        `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId    int        `json:"taskId" gorm:"uniqueIndex:idx_task_member;not null"`
	UserId    int        `json:"userId" gorm:"uniqueIndex:idx_task_member;index;not null"`
	Role      MemberRole `json:"role" gorm:"size:16;not null"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ChecklistItem struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId    int       `json:"taskId" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Completed bool      `json:"completed" gorm:"not null"`
	Position  int       `json:"position" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId    int       `json:"taskId" gorm:"index;not null"`
	AuthorId  int       `json:"authorId" gorm:"index;not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment is the metadata row of a stored file. Bytes live in the blob
// store under Locator.
type Attachment struct {
	Id         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId     int       `json:"taskId" gorm:"index;not null"`
	FileName   string    `json:"fileName" gorm:"size:255;not null"`
	Locator    string    `json:"-" gorm:"size:255;uniqueIndex;not null"`
	Size       int64     `json:"size" gorm:"not null"`
	MimeType   string    `json:"mimeType" gorm:"size:127;not null"`
	UploaderId int       `json:"uploaderId" gorm:"index;not null"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Label is global; tasks reference it through TaskLabel join rows.
type Label struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:64;uniqueIndex;not null"`
	Color     string    `json:"color" gorm:"size:7;not null"`
	CreatedAt time.Time `json:"createdAt"`

	Tasks []TaskLabel `json:"-" gorm:"foreignKey:LabelId;constraint:OnDelete:CASCADE"`
}

type TaskLabel struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId    int       `json:"taskId" gorm:"uniqueIndex:idx_task_label;not null"`
	LabelId   int       `json:"labelId" gorm:"uniqueIndex:idx_task_label;index;not null"`
	CreatedAt time.Time `json:"createdAt"`
}
