package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

const (
	maxCommentLength = 10000
	commentExcerpt   = 60
)

type CommentService struct {
	taskScoped
}

func NewCommentService(db *gorm.DB, now Clock) *CommentService {
	return &CommentService{taskScoped: newTaskScoped(db, now)}
}

type CommentView struct {
	model.Comment
	AuthorName string `json:"authorName"`
}

// excerpt shortens a comment body for activity descriptions.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= commentExcerpt {
		return s
	}
	return string([]rune(s)[:commentExcerpt]) + "..."
}

// List returns the comments of a task newest first.
func (s *CommentService) List(ctx context.Context, actor Actor, taskId int, page Page) ([]CommentView, int64, error) {
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, 0, err
	}
	page = page.Normalize()
	db := s.db.WithContext(ctx)
	q := db.Model(&model.Comment{}).Where("task_id = ?", taskId)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, common.Internal(err)
	}
	var rows []model.Comment
	if err := q.Order("created_at DESC, id DESC").Limit(page.PageSize).Offset(page.offset()).Find(&rows).Error; err != nil {
		return nil, 0, common.Internal(err)
	}
	ids := make([]int, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.AuthorId)
	}
	names, err := userNames(db, ids)
	if err != nil {
		return nil, 0, err
	}
	views := make([]CommentView, 0, len(rows))
	for _, c := range rows {
		views = append(views, CommentView{Comment: c, AuthorName: names[c.AuthorId]})
	}
	return views, total, nil
}

func (s *CommentService) Add(ctx context.Context, actor Actor, taskId int, body string) (*model.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, common.Invalid("comment body is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, common.Invalid("comment is longer than %d characters", maxCommentLength)
	}
	comment := &model.Comment{TaskId: taskId, AuthorId: actor.UserId, Body: body}
	err := s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		comment.CreatedAt = s.now()
		if err := tx.Create(comment).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionCommentAdded, "comment", nil, strPtr(body),
			"Added comment: '%s'", excerpt(body))}, nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete removes a comment. Only administrators and the author may do so.
func (s *CommentService) Delete(ctx context.Context, actor Actor, taskId, commentId int) error {
	return s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		var c model.Comment
		err := tx.Where("id = ? AND task_id = ?", commentId, taskId).First(&c).Error
		if database.IsNotFound(err) {
			return nil, common.NotFound("comment", commentId)
		} else if err != nil {
			return nil, err
		}
		if err := s.guard.CheckAuthor(actor, c.AuthorId, "comment"); err != nil {
			return nil, err
		}
		if err := tx.Delete(&model.Comment{}, c.Id).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionCommentDeleted, "comment", strPtr(c.Body), nil,
			"Deleted comment: '%s'", excerpt(c.Body))}, nil
	})
}
