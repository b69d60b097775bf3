// Package controller provides the HTTP handlers of the portal API. Every
// handler answers with the {success, msg, obj} envelope and maps the error
// kind of a failed operation to an HTTP status.
package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/locale"
	"github.com/siteops/portal/web/middleware"
	"github.com/siteops/portal/web/service"
)

// BaseController provides helpers shared by all controllers.
type BaseController struct{}

// actor returns the authenticated actor. Routes behind Authenticate always
// have one; a missing actor is reported as unauthenticated.
func (a *BaseController) actor(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		logger.Warning("no actor on authenticated route", c.FullPath())
		jsonMsg(c, "", common.ErrUnauthenticated)
	}
	return actor, ok
}

// I18nWeb retrieves an internationalized message for the language of the request.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	return locale.I18n(c, name, params...)
}
