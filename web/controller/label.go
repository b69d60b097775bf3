package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/service"
)

// LabelController handles the global label registry and task labels.
type LabelController struct {
	BaseController
	labels *service.LabelService
}

type labelForm struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type attachLabelForm struct {
	LabelId int `json:"labelId"`
}

// NewLabelController registers the registry under api and the task label
// routes under tasks.
func NewLabelController(api, tasks *gin.RouterGroup, labels *service.LabelService, gates taskGates) *LabelController {
	a := &LabelController{labels: labels}
	a.initRouter(api.Group("/labels"), tasks, gates)
	return a
}

func (a *LabelController) initRouter(registry, tasks *gin.RouterGroup, gates taskGates) {
	registry.GET("", gates.view, a.list)
	registry.POST("", gates.edit, a.create)
	registry.PATCH("/:id", gates.edit, a.update)
	registry.DELETE("/:id", gates.edit, a.delete)

	tasks.GET("/:id/labels", gates.view, a.listForTask)
	tasks.POST("/:id/labels", gates.edit, a.attach)
	tasks.DELETE("/:id/labels/:linkId", gates.edit, a.detach)
}

func (a *LabelController) list(c *gin.Context) {
	labels, err := a.labels.ListLabels(c.Request.Context())
	jsonObj(c, labels, err)
}

func (a *LabelController) create(c *gin.Context) {
	var form labelForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	label, err := a.labels.CreateLabel(c.Request.Context(), form.Name, form.Color)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "label.created"), label, nil)
}

func (a *LabelController) update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form labelForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	label, err := a.labels.UpdateLabel(c.Request.Context(), id, form.Name, form.Color)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "label.updated"), label, nil)
}

func (a *LabelController) delete(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.labels.DeleteLabel(c.Request.Context(), actor, id)
	jsonMsg(c, I18nWeb(c, "label.deleted"), err)
}

func (a *LabelController) listForTask(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	labels, err := a.labels.ListForTask(c.Request.Context(), actor, taskId)
	jsonObj(c, labels, err)
}

func (a *LabelController) attach(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form attachLabelForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	link, err := a.labels.Attach(c.Request.Context(), actor, taskId, form.LabelId)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "label.attached"), link, nil)
}

func (a *LabelController) detach(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	linkId, err := idParam(c, "linkId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.labels.Detach(c.Request.Context(), actor, taskId, linkId)
	jsonMsg(c, I18nWeb(c, "label.detached"), err)
}
