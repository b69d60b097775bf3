package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/web/middleware"
	"github.com/siteops/portal/web/service"
)

const maxLogLines = 500

// UserAdminController handles user accounts, the module list and the
// permission matrix. Every route is reserved for administrators.
type UserAdminController struct {
	BaseController
	users       *service.UserAdminService
	permissions *service.PermissionService
}

type roleForm struct {
	Role string `json:"role"`
}

type activeForm struct {
	Active bool `json:"active"`
}

type resetForm struct {
	Password string `json:"password"`
}

func NewUserAdminController(g *gin.RouterGroup, users *service.UserAdminService, permissions *service.PermissionService) *UserAdminController {
	a := &UserAdminController{users: users, permissions: permissions}
	a.initRouter(g)
	return a
}

func (a *UserAdminController) initRouter(g *gin.RouterGroup) {
	view := middleware.RequirePermission(a.permissions, service.ModuleUsers, service.CapView)
	create := middleware.RequirePermission(a.permissions, service.ModuleUsers, service.CapCreate)
	edit := middleware.RequirePermission(a.permissions, service.ModuleUsers, service.CapEdit)

	g.GET("/users", view, a.list)
	g.POST("/users", create, a.create)
	g.GET("/users/:id", view, a.get)
	g.PATCH("/users/:id/role", edit, a.updateRole)
	g.PATCH("/users/:id/active", edit, a.setActive)
	g.POST("/users/:id/password", edit, a.resetPassword)
	g.GET("/users/:id/permissions", view, a.matrix)
	g.PUT("/users/:id/permissions/:module", edit, a.setPermission)
	g.GET("/modules", view, a.modules)
	g.GET("/logs", view, a.logs)
}

func (a *UserAdminController) list(c *gin.Context) {
	users, err := a.users.ListUsers(c.Request.Context())
	jsonObj(c, users, err)
}

func (a *UserAdminController) create(c *gin.Context) {
	var in service.CreateUserInput
	if err := bindJSON(c, &in); err != nil {
		jsonMsg(c, "", err)
		return
	}
	u, err := a.users.CreateUser(c.Request.Context(), in)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "admin.userCreated", "Username=="+u.Username), u, nil)
}

func (a *UserAdminController) get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	u, err := a.users.GetUser(c.Request.Context(), id)
	jsonObj(c, u, err)
}

func (a *UserAdminController) updateRole(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form roleForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	u, err := a.users.UpdateUserRole(c.Request.Context(), actor, id, model.Role(form.Role))
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "admin.userUpdated"), u, nil)
}

func (a *UserAdminController) setActive(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form activeForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	u, err := a.users.SetActive(c.Request.Context(), actor, id, form.Active)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "admin.userUpdated"), u, nil)
}

func (a *UserAdminController) resetPassword(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var form resetForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.users.ResetPassword(c.Request.Context(), id, form.Password)
	jsonMsg(c, I18nWeb(c, "admin.passwordReset"), err)
}

func (a *UserAdminController) matrix(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	matrix, err := a.permissions.UserMatrix(c.Request.Context(), id)
	jsonObj(c, matrix, err)
}

func (a *UserAdminController) setPermission(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	var caps service.Capabilities
	if err := bindJSON(c, &caps); err != nil {
		jsonMsg(c, "", err)
		return
	}
	ctx := c.Request.Context()
	if err := a.permissions.SetPermission(ctx, id, c.Param("module"), caps); err != nil {
		jsonMsg(c, "", err)
		return
	}
	matrix, err := a.permissions.UserMatrix(ctx, id)
	jsonMsgObj(c, I18nWeb(c, "admin.permissionSaved"), matrix, err)
}

func (a *UserAdminController) modules(c *gin.Context) {
	modules, err := a.permissions.Modules(c.Request.Context())
	jsonObj(c, modules, err)
}

// logs returns the most recent buffered log lines, newest first.
func (a *UserAdminController) logs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "100"))
	if err != nil || count <= 0 {
		count = 100
	}
	if count > maxLogLines {
		count = maxLogLines
	}
	jsonObj(c, logger.GetLogs(count, c.DefaultQuery("level", "info")), nil)
}
