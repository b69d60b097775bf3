package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/logger"
)

// AccessLogMiddleware writes one line per API request into the portal log,
// naming the actor when the request was authenticated.
func AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		who := "anonymous"
		if actor, ok := GetActor(c); ok {
			who = actor.Name
		}
		status := c.Writer.Status()
		line := []any{c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Millisecond), who, c.ClientIP()}
		switch {
		case status >= 500:
			logger.Warning(line...)
		case status >= 400:
			logger.Info(line...)
		default:
			logger.Debug(line...)
		}
	}
}
