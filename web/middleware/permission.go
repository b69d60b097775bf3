package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/service"
)

// RequirePermission gates a route on a module capability of the actor. The
// admin bypass is decided by the permission service, not here.
func RequirePermission(perms *service.PermissionService, module string, cap service.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "error.unauthenticated")
			return
		}
		err := perms.For(actor).Authorize(c.Request.Context(), module, cap)
		switch {
		case err == nil:
			c.Next()
		case common.KindOf(err) == common.ErrForbidden:
			abort(c, http.StatusForbidden, "error.forbidden")
		default:
			logger.Warning("permission check failed:", err)
			abort(c, http.StatusInternalServerError, "error.internal")
		}
	}
}
