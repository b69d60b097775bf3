package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/service"
)

// CommentController handles task comments.
type CommentController struct {
	BaseController
	comments *service.CommentService
}

type commentForm struct {
	Body string `json:"body"`
}

func NewCommentController(g *gin.RouterGroup, comments *service.CommentService, gates taskGates) *CommentController {
	a := &CommentController{comments: comments}
	a.initRouter(g, gates)
	return a
}

func (a *CommentController) initRouter(g *gin.RouterGroup, gates taskGates) {
	g.GET("/:id/comments", gates.view, a.list)
	g.POST("/:id/comments", gates.edit, a.add)
	g.DELETE("/:id/comments/:commentId", gates.edit, a.delete)
}

func (a *CommentController) list(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var page service.Page
	if err := bindQuery(c, &page); err != nil {
		jsonMsg(c, "", err)
		return
	}
	comments, total, err := a.comments.List(c.Request.Context(), actor, taskId, page)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonObj(c, pageObj(comments, total, page), nil)
}

func (a *CommentController) add(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form commentForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	comment, err := a.comments.Add(c.Request.Context(), actor, taskId, form.Body)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "comment.added"), comment, nil)
}

func (a *CommentController) delete(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	commentId, err := idParam(c, "commentId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.comments.Delete(c.Request.Context(), actor, taskId, commentId)
	jsonMsg(c, I18nWeb(c, "comment.deleted"), err)
}
