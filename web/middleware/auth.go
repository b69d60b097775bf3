// Package middleware holds the gin handlers that run before controllers:
// token authentication, the password-change and module gates, the login rate
// limit and the access log.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/entity"
	"github.com/siteops/portal/web/locale"
	"github.com/siteops/portal/web/service"
)

const actorKey = "actor"

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate validates the bearer token and stores the actor in the context.
func Authenticate(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "error.unauthenticated")
			return
		}
		claims, err := tokens.Validate(c.Request.Context(), raw)
		if err != nil {
			if common.KindOf(err) == common.ErrUnauthenticated {
				abort(c, http.StatusUnauthorized, "error.unauthenticated")
			} else {
				abort(c, http.StatusInternalServerError, "error.internal")
			}
			return
		}
		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// PasswordChanged rejects actors that still have to replace their initial
// password.
func PasswordChanged() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "error.unauthenticated")
			return
		}
		if actor.MustChangePassword {
			abort(c, http.StatusForbidden, "error.passwordChangeRequired")
			return
		}
		c.Next()
	}
}

// GetActor returns the authenticated actor of the request.
func GetActor(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}

func abort(c *gin.Context, status int, key string) {
	c.AbortWithStatusJSON(status, entity.Msg{
		Success: false,
		Msg:     locale.I18n(c, key),
	})
}
