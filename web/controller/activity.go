package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/service"
)

// ActivityController exposes the activity trail of a task.
type ActivityController struct {
	BaseController
	activity *service.ActivityService
}

func NewActivityController(g *gin.RouterGroup, activity *service.ActivityService, gates taskGates) *ActivityController {
	a := &ActivityController{activity: activity}
	g.GET("/:id/activity", gates.view, a.list)
	return a
}

func (a *ActivityController) list(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var filter service.ActivityFilter
	if err := bindQuery(c, &filter); err != nil {
		jsonMsg(c, "", err)
		return
	}
	entries, total, err := a.activity.List(c.Request.Context(), actor, taskId, filter)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonObj(c, pageObj(entries, total, filter.Page), nil)
}
