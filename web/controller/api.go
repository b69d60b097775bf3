package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/web/middleware"
	"github.com/siteops/portal/web/service"
)

// APIController mounts every controller of the versioned API.
type APIController struct {
	BaseController
	authController       *AuthController
	taskController       *TaskController
	checklistController  *ChecklistController
	commentController    *CommentController
	labelController      *LabelController
	memberController     *MemberController
	attachmentController *AttachmentController
	activityController   *ActivityController
	adminController      *UserAdminController
}

// taskGates are the module checks of the tasks module, one per capability.
type taskGates struct {
	view, create, edit, delete gin.HandlerFunc
}

func newTaskGates(perms *service.PermissionService) taskGates {
	return taskGates{
		view:   middleware.RequirePermission(perms, service.ModuleTasks, service.CapView),
		create: middleware.RequirePermission(perms, service.ModuleTasks, service.CapCreate),
		edit:   middleware.RequirePermission(perms, service.ModuleTasks, service.CapEdit),
		delete: middleware.RequirePermission(perms, service.ModuleTasks, service.CapDelete),
	}
}

// NewAPIController registers the API under g. loginGuard runs in front of
// the login route only.
func NewAPIController(g *gin.RouterGroup, core *service.Core, loginGuard gin.HandlerFunc) *APIController {
	a := &APIController{}
	a.initRouter(g, core, loginGuard)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, core *service.Core, loginGuard gin.HandlerFunc) {
	a.authController = NewAuthController(g, core, loginGuard)

	account := g.Group("")
	account.Use(middleware.Authenticate(core.Tokens))
	a.authController.initAccountRouter(account)

	authed := account.Group("")
	authed.Use(middleware.PasswordChanged())
	gates := newTaskGates(core.Permissions)

	a.authController.initAuthedRouter(authed)

	tasks := authed.Group("/tasks")
	a.taskController = NewTaskController(tasks, core.Tasks, gates)
	a.checklistController = NewChecklistController(tasks, core.Checklist, gates)
	a.commentController = NewCommentController(tasks, core.Comments, gates)
	a.memberController = NewMemberController(tasks, core.Members, gates)
	a.attachmentController = NewAttachmentController(tasks, core.Attachments, gates)
	a.activityController = NewActivityController(tasks, core.Activity, gates)
	a.labelController = NewLabelController(authed, tasks, core.Labels, gates)

	admin := authed.Group("/admin")
	a.adminController = NewUserAdminController(admin, core.Users, core.Permissions)
}
