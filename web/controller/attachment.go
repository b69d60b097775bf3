package controller

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/service"
)

// sniffLen is how much of an upload is read to detect an undeclared type.
const sniffLen = 3072

// multipartOverhead is the room left for boundaries and part headers on top
// of the file size limit.
const multipartOverhead = 64 << 10

// AttachmentController handles file uploads and downloads of a task.
type AttachmentController struct {
	BaseController
	attachments *service.AttachmentService
}

func NewAttachmentController(g *gin.RouterGroup, attachments *service.AttachmentService, gates taskGates) *AttachmentController {
	a := &AttachmentController{attachments: attachments}
	a.initRouter(g, gates)
	return a
}

func (a *AttachmentController) initRouter(g *gin.RouterGroup, gates taskGates) {
	g.GET("/:id/attachments", gates.view, a.list)
	g.POST("/:id/attachments", gates.edit, a.upload)
	g.GET("/:id/attachments/:attachmentId", gates.view, a.download)
	g.DELETE("/:id/attachments/:attachmentId", gates.edit, a.delete)
}

func (a *AttachmentController) list(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	items, err := a.attachments.List(c.Request.Context(), actor, taskId)
	jsonObj(c, items, err)
}

// upload expects a multipart form with the file in the "file" field. When the
// part declares no type it is detected from the first bytes.
func (a *AttachmentController) upload(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	limit := a.attachments.MaxSize() + multipartOverhead
	if c.Request.ContentLength > limit {
		jsonMsg(c, "", tooLarge(a.attachments.MaxSize()))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonMsg(c, "", tooLarge(a.attachments.MaxSize()))
			return
		}
		jsonMsg(c, "", common.Invalid("multipart field \"file\" is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		jsonMsg(c, "", common.Internal(err))
		return
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	var body io.Reader = f
	if mimeType == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			jsonMsg(c, "", common.Internal(err))
			return
		}
		head = head[:n]
		mimeType = mimetype.Detect(head).String()
		body = io.MultiReader(bytes.NewReader(head), f)
	}

	att, err := a.attachments.Upload(c.Request.Context(), actor, taskId, service.UploadInput{
		FileName: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Body:     body,
	})
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "attachment.uploaded"), att, nil)
}

func tooLarge(maxSize int64) error {
	return common.Invalid("upload is larger than %s", humanize.IBytes(uint64(maxSize)))
}

func (a *AttachmentController) download(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	attachmentId, err := idParam(c, "attachmentId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	att, r, err := a.attachments.Open(c.Request.Context(), actor, taskId, attachmentId)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warning("close attachment stream:", err)
		}
	}()
	c.DataFromReader(http.StatusOK, att.Size, att.MimeType, r, map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": att.FileName}),
		"X-Content-Type-Options": "nosniff",
	})
}

func (a *AttachmentController) delete(c *gin.Context) {
	actor, ok := a.actor(c)
	if !ok {
		return
	}
	taskId, err := idParam(c, "id")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	attachmentId, err := idParam(c, "attachmentId")
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	err = a.attachments.Delete(c.Request.Context(), actor, taskId, attachmentId)
	jsonMsg(c, I18nWeb(c, "attachment.deleted"), err)
}
