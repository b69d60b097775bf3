package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/service"
)

// ChecklistController handles the checklist of a task.
type ChecklistController struct {
	BaseController
	checklist *service.ChecklistService
}

type checklistForm struct {
	Title string `json:"title"`
}

func NewChecklistController(g *gin.RouterGroup, checklist *service.ChecklistService, gates taskGates) *ChecklistController {
	a := &ChecklistController{checklist: checklist}
	a.initRouter(g, gates)
	return a
}

func (a *ChecklistController) initRouter(g *gin.RouterGroup, gates taskGates) {
	g.GET("/:id/checklist", gates.view, a.list)
	g.POST("/:id/checklist", gates.edit, a.add)
	g.PATCH("/:id/checklist/:itemId", gates.edit, a.update)
	g.DELETE("/:id/checklist/:itemId", gates.edit, a.remove)
}

func (a *ChecklistController) list(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	items, err := a.checklist.List(c.Request.Context(), actor, taskId)
	jsonObj(c, items, err)
}

func (a *ChecklistController) add(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form checklistForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	item, err := a.checklist.Add(c.Request.Context(), actor, taskId, form.Title)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "checklist.added"), item, nil)
}

func (a *ChecklistController) update(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	itemId, err := idParam(c, "itemId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var in service.UpdateChecklistInput
	if err := bindJSON(c, &in); err != nil {
		jsonMsg(c, "", err)
		return
	}
	item, err := a.checklist.Update(c.Request.Context(), actor, taskId, itemId, in)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "checklist.updated"), item, nil)
}

func (a *ChecklistController) remove(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	itemId, err := idParam(c, "itemId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.checklist.Remove(c.Request.Context(), actor, taskId, itemId)
	jsonMsg(c, I18nWeb(c, "checklist.removed"), err)
}
