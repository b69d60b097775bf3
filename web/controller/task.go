package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/service"
)

// TaskController handles the task collection and single tasks.
type TaskController struct {
	BaseController
	tasks *service.TaskService
}

// NewTaskController creates a new TaskController and sets up its routes.
func NewTaskController(g *gin.RouterGroup, tasks *service.TaskService, gates taskGates) *TaskController {
	a := &TaskController{tasks: tasks}
	a.initRouter(g, gates)
	return a
}

func (a *TaskController) initRouter(g *gin.RouterGroup, gates taskGates) {
	g.GET("", gates.view, a.list)
	g.POST("", gates.create, a.create)
	g.GET("/:id", gates.view, a.get)
	g.PATCH("/:id", gates.edit, a.update)
	g.DELETE("/:id", gates.delete, a.delete)
}

func (a *TaskController) list(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	var filter service.TaskFilter
	if err := bindQuery(c, &filter); err != nil {
		jsonMsg(c, "", err)
		return
	}
	tasks, total, err := a.tasks.List(c.Request.Context(), actor, filter)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonObj(c, pageObj(tasks, total, filter.Page), nil)
}

func (a *TaskController) create(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	var in service.CreateTaskInput
	if err := bindJSON(c, &in); err != nil {
		jsonMsg(c, "", err)
		return
	}
	task, err := a.tasks.Create(c.Request.Context(), actor, in)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "task.created"), task, nil)
}

func (a *TaskController) get(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	detail, err := a.tasks.Get(c.Request.Context(), actor, id)
	jsonObj(c, detail, err)
}

func (a *TaskController) update(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var in service.UpdateTaskInput
	if err := bindJSON(c, &in); err != nil {
		jsonMsg(c, "", err)
		return
	}
	task, err := a.tasks.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "task.updated"), task, nil)
}

func (a *TaskController) delete(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.tasks.Delete(c.Request.Context(), actor, id)
	jsonMsg(c, I18nWeb(c, "task.deleted"), err)
}
