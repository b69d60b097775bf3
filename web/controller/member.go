package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/service"
)

// MemberController handles the members of a task.
type MemberController struct {
	BaseController
	members *service.MemberService
}

type memberForm struct {
	UserId int    `json:"userId"`
	Role   string `json:"role"`
}

func NewMemberController(g *gin.RouterGroup, members *service.MemberService, gates taskGates) *MemberController {
	a := &MemberController{members: members}
	a.initRouter(g, gates)
	return a
}

func (a *MemberController) initRouter(g *gin.RouterGroup, gates taskGates) {
	g.GET("/:id/members", gates.view, a.list)
	g.POST("/:id/members", gates.edit, a.add)
	g.PATCH("/:id/members/:memberId", gates.edit, a.changeRole)
	g.DELETE("/:id/members/:memberId", gates.edit, a.remove)
}

func (a *MemberController) list(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	members, err := a.members.List(c.Request.Context(), actor, taskId)
	jsonObj(c, members, err)
}

func (a *MemberController) add(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form memberForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	member, err := a.members.Add(c.Request.Context(), actor, taskId, form.UserId, form.Role)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "member.added"), member, nil)
}

func (a *MemberController) changeRole(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	memberId, err := idParam(c, "memberId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form memberForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	member, err := a.members.ChangeRole(c.Request.Context(), actor, taskId, memberId, form.Role)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "member.updated"), member, nil)
}

func (a *MemberController) remove(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	memberId, err := idParam(c, "memberId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.members.Remove(c.Request.Context(), actor, taskId, memberId)
	jsonMsg(c, I18nWeb(c, "member.removed"), err)
}
