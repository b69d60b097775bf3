package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/entity"
	"github.com/siteops/portal/web/service"
)

// errorStatus maps the kind of err to an HTTP status and a message key.
func errorStatus(err error) (int, string) {
	switch common.KindOf(err) {
	case common.ErrUnauthenticated:
		return http.StatusUnauthorized, "error.unauthenticated"
	case common.ErrForbidden:
		return http.StatusForbidden, "error.forbidden"
	case common.ErrNotFound:
		return http.StatusNotFound, "error.notFound"
	case common.ErrInvalidArgument:
		return http.StatusBadRequest, "error.invalidArgument"
	case common.ErrConflict:
		return http.StatusConflict, "error.conflict"
	}
	return http.StatusInternalServerError, "error.internal"
}

// jsonMsg sends a JSON response with a message and error status.
func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

// jsonObj sends a JSON response with an object and error status.
func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj sends a JSON response with a message, object, and error status.
// Internal failures are logged and never echoed to the client.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, entity.Msg{Success: true, Msg: msg, Obj: obj})
		return
	}
	status, key := errorStatus(err)
	text := I18nWeb(c, key)
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Method, c.FullPath(), "failed:", err)
	} else {
		logger.Debug(c.Request.Method, c.FullPath(), "rejected:", err)
		text += " (" + err.Error() + ")"
	}
	c.JSON(status, entity.Msg{Success: false, Msg: text})
}

// pageObj wraps a listing into the page envelope.
func pageObj(items any, total int64, page service.Page) entity.PageResult {
	page = page.Normalize()
	return entity.PageResult{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, common.Invalid("%s must be a positive integer", name)
	}
	return id, nil
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return common.Invalid("malformed request body: %v", err)
	}
	return nil
}

// bindQuery decodes query parameters into dst.
func bindQuery(c *gin.Context, dst any) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return common.Invalid("malformed query: %v", err)
	}
	return nil
}
