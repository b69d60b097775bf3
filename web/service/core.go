package service

import (
	"time"

	"gorm.io/gorm"
)

// Options configures NewCore.
type Options struct {
	Secret        []byte
	TokenTTL      time.Duration
	MaxUploadSize int64
	Blobs         BlobStore
	Clock         Clock
}

// Core bundles every service of the portal over one database handle.
type Core struct {
	Tokens      *TokenService
	Auth        *AuthService
	Users       *UserAdminService
	Permissions *PermissionService
	Settings    *SettingService
	Tasks       *TaskService
	Checklist   *ChecklistService
	Comments    *CommentService
	Labels      *LabelService
	Members     *MemberService
	Attachments *AttachmentService
	Activity    *ActivityService
}

func NewCore(db *gorm.DB, opts Options) *Core {
	now := opts.Clock
	if now == nil {
		now = SystemClock
	}
	tokens := NewTokenService(db, opts.Secret, opts.TokenTTL, now)
	return &Core{
		Tokens:      tokens,
		Auth:        NewAuthService(db, tokens, now),
		Users:       NewUserAdminService(db),
		Permissions: NewPermissionService(db),
		Settings:    NewSettingService(db),
		Tasks:       NewTaskService(db, opts.Blobs, now),
		Checklist:   NewChecklistService(db, now),
		Comments:    NewCommentService(db, now),
		Labels:      NewLabelService(db, now),
		Members:     NewMemberService(db, now),
		Attachments: NewAttachmentService(db, opts.Blobs, opts.MaxUploadSize, now),
		Activity:    NewActivityService(db, now),
	}
}
