package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/middleware"
	"github.com/siteops/portal/web/service"
)

// AuthController handles sign-in, token refresh and the actor's own account.
type AuthController struct {
	BaseController
	auth        *service.AuthService
	tokens      *service.TokenService
	users       *service.UserAdminService
	permissions *service.PermissionService
}

type loginForm struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode"`
}

type passwordForm struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type codeForm struct {
	Code string `json:"code"`
}

// NewAuthController registers the unauthenticated routes under g.
func NewAuthController(g *gin.RouterGroup, core *service.Core, loginGuard gin.HandlerFunc) *AuthController {
	a := &AuthController{
		auth:        core.Auth,
		tokens:      core.Tokens,
		users:       core.Users,
		permissions: core.Permissions,
	}
	a.initRouter(g, loginGuard)
	return a
}

func (a *AuthController) initRouter(g *gin.RouterGroup, loginGuard gin.HandlerFunc) {
	if loginGuard != nil {
		g.POST("/auth/login", loginGuard, a.login)
	} else {
		g.POST("/auth/login", a.login)
	}
	g.POST("/auth/refresh", a.refresh)
}

// initAccountRouter registers the routes open to an actor that still has to
// change the initial password.
func (a *AuthController) initAccountRouter(g *gin.RouterGroup) {
	g.POST("/auth/password", a.changePassword)
	g.POST("/auth/logout-all", a.logoutAll)
	g.GET("/me", a.me)
}

func (a *AuthController) initAuthedRouter(g *gin.RouterGroup) {
	g.POST("/auth/2fa/enable", a.enableTwoFactor)
	g.POST("/auth/2fa/disable", a.disableTwoFactor)
	g.GET("/me/permissions", a.myPermissions)
}

func (a *AuthController) login(c *gin.Context) {
	var form loginForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	res, err := a.auth.Login(c.Request.Context(), form.Username, form.Password, form.TwoFactorCode)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "auth.loggedIn"), res, nil)
}

func (a *AuthController) refresh(c *gin.Context) {
	raw := middleware.BearerToken(c)
	if raw == "" {
		jsonMsg(c, "", common.ErrTokenInvalid)
		return
	}
	token, expires, err := a.tokens.Refresh(c.Request.Context(), raw)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonObj(c, gin.H{"token": token, "expiresAt": expires}, nil)
}

func (a *AuthController) changePassword(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	var form passwordForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	res, err := a.auth.ChangePassword(c.Request.Context(), actor, form.OldPassword, form.NewPassword)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "auth.passwordChanged"), res, nil)
}

func (a *AuthController) logoutAll(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	err := a.auth.LogoutEverywhere(c.Request.Context(), actor)
	jsonMsg(c, I18nWeb(c, "auth.loggedOut"), err)
}

func (a *AuthController) enableTwoFactor(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	setup, err := a.auth.EnableTwoFactor(c.Request.Context(), actor)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "auth.twoFactorEnabled"), setup, nil)
}

func (a *AuthController) disableTwoFactor(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	var form codeForm
	if err := bindJSON(c, &form); err != nil {
		jsonMsg(c, "", err)
		return
	}
	err := a.auth.DisableTwoFactor(c.Request.Context(), actor, form.Code)
	jsonMsg(c, I18nWeb(c, "auth.twoFactorDisabled"), err)
}

func (a *AuthController) me(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	u, err := a.users.GetUser(c.Request.Context(), actor.UserId)
	jsonObj(c, u, err)
}

func (a *AuthController) myPermissions(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	matrix, err := a.permissions.For(actor).Resolve(c.Request.Context())
	jsonObj(c, matrix, err)
}
