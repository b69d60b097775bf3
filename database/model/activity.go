package model

import "time"

// ActionKind identifies what an Activity entry records. The set is closed;
// anything not listed here is treated as ActionUnknown when read back.
type ActionKind string

const (
	ActionUnknown ActionKind = "unknown"

	ActionCreated            ActionKind = "created"
	ActionStatusChanged      ActionKind = "status_changed"
	ActionPriorityChanged    ActionKind = "priority_changed"
	ActionTitleChanged       ActionKind = "title_changed"
	ActionDescriptionChanged ActionKind = "description_changed"
	ActionDeadlineChanged    ActionKind = "deadline_changed"
	ActionAssigneeChanged    ActionKind = "assignee_changed"
	ActionSiteChanged        ActionKind = "site_changed"
	ActionCompanyChanged     ActionKind = "company_changed"

	ActionChecklistAdded       ActionKind = "checklist_added"
	ActionChecklistRenamed     ActionKind = "checklist_renamed"
	ActionChecklistCompleted   ActionKind = "checklist_completed"
	ActionChecklistUncompleted ActionKind = "checklist_uncompleted"
	ActionChecklistReordered   ActionKind = "checklist_reordered"
	ActionChecklistRemoved     ActionKind = "checklist_removed"

	ActionCommentAdded   ActionKind = "comment_added"
	ActionCommentDeleted ActionKind = "comment_deleted"

	ActionLabelAdded   ActionKind = "label_added"
	ActionLabelRemoved ActionKind = "label_removed"

	ActionMemberAdded       ActionKind = "member_added"
	ActionMemberRoleChanged ActionKind = "member_role_changed"
	ActionMemberRemoved     ActionKind = "member_removed"

	ActionAttachmentAdded   ActionKind = "attachment_added"
	ActionAttachmentRemoved ActionKind = "attachment_removed"
)

// ActionCategory groups action kinds for filtering and rendering.
type ActionCategory string

const (
	CategoryTask       ActionCategory = "task"
	CategoryChecklist  ActionCategory = "checklist"
	CategoryComment    ActionCategory = "comment"
	CategoryLabel      ActionCategory = "label"
	CategoryMember     ActionCategory = "member"
	CategoryAttachment ActionCategory = "attachment"
	CategoryOther      ActionCategory = "other"
)

// Presentation is how an action kind is rendered in the activity trail.
type Presentation struct {
	Icon     string         `json:"icon"`
	Color    string         `json:"color"`
	Category ActionCategory `json:"category"`
}

var defaultPresentation = Presentation{Icon: "bi-clock-history", Color: "#6c757d", Category: CategoryOther}

var presentations = map[ActionKind]Presentation{
	ActionCreated:            {"bi-plus-circle", "#198754", CategoryTask},
	ActionStatusChanged:      {"bi-arrow-repeat", "#0d6efd", CategoryTask},
	ActionPriorityChanged:    {"bi-flag", "#fd7e14", CategoryTask},
	ActionTitleChanged:       {"bi-pencil", "#6c757d", CategoryTask},
	ActionDescriptionChanged: {"bi-text-paragraph", "#6c757d", CategoryTask},
	ActionDeadlineChanged:    {"bi-calendar-event", "#6f42c1", CategoryTask},
	ActionAssigneeChanged:    {"bi-person-check", "#0dcaf0", CategoryTask},
	ActionSiteChanged:        {"bi-geo-alt", "#20c997", CategoryTask},
	ActionCompanyChanged:     {"bi-building", "#20c997", CategoryTask},

	ActionChecklistAdded:       {"bi-list-check", "#198754", CategoryChecklist},
	ActionChecklistRenamed:     {"bi-pencil-square", "#6c757d", CategoryChecklist},
	ActionChecklistCompleted:   {"bi-check-square", "#198754", CategoryChecklist},
	ActionChecklistUncompleted: {"bi-square", "#ffc107", CategoryChecklist},
	ActionChecklistReordered:   {"bi-arrow-down-up", "#6c757d", CategoryChecklist},
	ActionChecklistRemoved:     {"bi-x-square", "#dc3545", CategoryChecklist},

	ActionCommentAdded:   {"bi-chat-left-text", "#0d6efd", CategoryComment},
	ActionCommentDeleted: {"bi-chat-left-dots", "#dc3545", CategoryComment},

	ActionLabelAdded:   {"bi-tag", "#6610f2", CategoryLabel},
	ActionLabelRemoved: {"bi-tag", "#dc3545", CategoryLabel},

	ActionMemberAdded:       {"bi-person-plus", "#198754", CategoryMember},
	ActionMemberRoleChanged: {"bi-person-gear", "#0d6efd", CategoryMember},
	ActionMemberRemoved:     {"bi-person-dash", "#dc3545", CategoryMember},

	ActionAttachmentAdded:   {"bi-paperclip", "#198754", CategoryAttachment},
	ActionAttachmentRemoved: {"bi-file-earmark-x", "#dc3545", CategoryAttachment},
}

// ParseActionKind maps a stored string to a known kind. Unrecognized values
// yield ActionUnknown and false.
func ParseActionKind(s string) (ActionKind, bool) {
	k := ActionKind(s)
	if _, ok := presentations[k]; ok {
		return k, true
	}
	return ActionUnknown, false
}

// Presentation returns the icon, color and category of k. It is total: any
// value outside the enumeration gets the generic presentation.
func (k ActionKind) Presentation() Presentation {
	if p, ok := presentations[k]; ok {
		return p
	}
	return defaultPresentation
}

// Activity is one append-only audit record of a mutation on a task or one of
// its sub-entities.
type Activity struct {
	Id          int        `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId      int        `json:"taskId" gorm:"index:idx_activity_task_created;not null"`
	ActorId     int        `json:"actorId" gorm:"index;not null"`
	Action      ActionKind `json:"action" gorm:"size:40;index;not null"`
	Description string     `json:"description" gorm:"type:text;not null"`
	Field       string     `json:"field,omitempty" gorm:"size:40"`
	OldValue    *string    `json:"oldValue,omitempty"`
	NewValue    *string    `json:"newValue,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index:idx_activity_task_created"`
}
