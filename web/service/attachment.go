package service

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
)

// BlobStore keeps attachment bytes. The core never looks inside them.
type BlobStore interface {
	// Put stores r and returns an opaque locator and the number of bytes
	// written.
	Put(ctx context.Context, r io.Reader, mimeType string) (string, int64, error)
	Open(locator string) (io.ReadCloser, error)
	Delete(locator string) error
}

var blockedMimeTypes = []string{
	"application/x-sh",
	"application/x-shellscript",
	"text/x-shellscript",
	"application/x-csh",
	"application/x-bat",
	"application/x-msdownload",
	"application/x-msdos-program",
	"application/x-dosexec",
	"application/vnd.microsoft.portable-executable",
	"application/x-executable",
	"application/x-elf",
	"application/x-mach-binary",
	"application/x-sharedlib",
	"application/java-archive",
	"application/javascript",
	"text/javascript",
	"application/x-php",
	"text/x-php",
	"application/x-python",
	"text/x-python",
	"application/x-perl",
	"text/x-perl",
	"application/x-ruby",
	"application/hta",
	"application/x-ms-installer",
	"application/x-msi",
	"application/vnd.ms-powershell",
}

var blockedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".com": true, ".scr": true, ".msi": true,
	".bat": true, ".cmd": true, ".ps1": true, ".vbs": true, ".hta": true,
	".sh": true, ".bash": true, ".js": true, ".jar": true, ".php": true,
	".py": true, ".pl": true, ".rb": true, ".app": true,
}

// executableMime reports whether a declared media type names a script or an
// executable, including subtypes mimetype knows to derive from one.
func executableMime(mediaType string) bool {
	for _, b := range blockedMimeTypes {
		if mediaType == b {
			return true
		}
	}
	for m := mimetype.Lookup(mediaType); m != nil; m = m.Parent() {
		for _, b := range blockedMimeTypes {
			if m.Is(b) {
				return true
			}
		}
	}
	return false
}

// AttachmentService records attachment metadata and hands the bytes to a
// BlobStore.
type AttachmentService struct {
	taskScoped
	blobs   BlobStore
	maxSize int64
}

func NewAttachmentService(db *gorm.DB, blobs BlobStore, maxSize int64, now Clock) *AttachmentService {
	return &AttachmentService{taskScoped: newTaskScoped(db, now), blobs: blobs, maxSize: maxSize}
}

// MaxSize is the largest accepted file in bytes.
func (s *AttachmentService) MaxSize() int64 {
	return s.maxSize
}

type UploadInput struct {
	FileName string
	MimeType string
	// Size is the declared size, or -1 when unknown.
	Size int64
	Body io.Reader
}

// checkUpload validates an upload before any byte is stored and returns the
// cleaned file name and media type.
func (s *AttachmentService) checkUpload(in UploadInput) (string, string, error) {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "", "", common.Invalid("file name is required")
	}
	if len(name) > 255 {
		return "", "", common.Invalid("file name is too long")
	}
	mediaType, _, err := mime.ParseMediaType(in.MimeType)
	if err != nil {
		return "", "", common.Invalid("invalid MIME type %q", in.MimeType)
	}
	mediaType = strings.ToLower(mediaType)
	if executableMime(mediaType) {
		return "", "", common.Invalid("files of type %s are not allowed", mediaType)
	}
	if blockedExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", "", common.Invalid("files with extension %s are not allowed", filepath.Ext(name))
	}
	if in.Size > s.maxSize {
		return "", "", common.Invalid("file is larger than %s", humanize.IBytes(uint64(s.maxSize)))
	}
	if in.Body == nil {
		return "", "", common.Invalid("file content is required")
	}
	return name, mediaType, nil
}

func (s *AttachmentService) List(ctx context.Context, actor Actor, taskId int) ([]model.Attachment, error) {
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, err
	}
	items := make([]model.Attachment, 0)
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskId).
		Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, common.Internal(err)
	}
	return items, nil
}

// Upload stores the bytes first, outside any transaction, then records the
// metadata row and its activity entry together. A blob whose row could not be
// committed is removed again.
func (s *AttachmentService) Upload(ctx context.Context, actor Actor, taskId int, in UploadInput) (*model.Attachment, error) {
	name, mediaType, err := s.checkUpload(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, err
	}

	locator, size, err := s.blobs.Put(ctx, io.LimitReader(in.Body, s.maxSize+1), mediaType)
	if err != nil {
		return nil, common.Internal(err)
	}
	if size > s.maxSize {
		s.discard(locator)
		return nil, common.Invalid("file is larger than %s", humanize.IBytes(uint64(s.maxSize)))
	}

	att := &model.Attachment{
		TaskId:     taskId,
		FileName:   name,
		Locator:    locator,
		Size:       size,
		MimeType:   mediaType,
		UploaderId: actor.UserId,
	}
	err = s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		att.CreatedAt = s.now()
		if err := tx.Create(att).Error; err != nil {
			return nil, err
		}
		return []Entry{change(model.ActionAttachmentAdded, "attachment", nil, strPtr(name),
			"Attached file '%s' (%s)", name, humanize.IBytes(uint64(size)))}, nil
	})
	if err != nil {
		s.discard(locator)
		return nil, err
	}
	return att, nil
}

// Open returns the metadata and byte stream of an attachment. The caller
// closes the stream.
func (s *AttachmentService) Open(ctx context.Context, actor Actor, taskId, attachmentId int) (*model.Attachment, io.ReadCloser, error) {
	if _, err := s.view(ctx, actor, taskId); err != nil {
		return nil, nil, err
	}
	att, err := loadAttachment(s.db.WithContext(ctx), taskId, attachmentId)
	if err != nil {
		return nil, nil, common.Internal(err)
	}
	r, err := s.blobs.Open(att.Locator)
	if err != nil {
		return nil, nil, common.Internal(err)
	}
	return att, r, nil
}

// Delete removes the row and records it, then removes the blob after commit.
// Only administrators and the uploader may delete.
func (s *AttachmentService) Delete(ctx context.Context, actor Actor, taskId, attachmentId int) error {
	var locator string
	err := s.mutate(ctx, actor, taskId, AccessView, func(tx *gorm.DB, task *model.Task) ([]Entry, error) {
		att, err := loadAttachment(tx, taskId, attachmentId)
		if err != nil {
			return nil, err
		}
		if err := s.guard.CheckAuthor(actor, att.UploaderId, "attachment"); err != nil {
			return nil, err
		}
		if err := tx.Delete(&model.Attachment{}, att.Id).Error; err != nil {
			return nil, err
		}
		locator = att.Locator
		return []Entry{change(model.ActionAttachmentRemoved, "attachment", strPtr(att.FileName), nil,
			"Removed file '%s'", att.FileName)}, nil
	})
	if err != nil {
		return err
	}
	s.discard(locator)
	return nil
}

func (s *AttachmentService) discard(locator string) {
	if err := s.blobs.Delete(locator); err != nil {
		logger.Warningf("cannot remove blob %s: %v", locator, err)
	}
}

func loadAttachment(tx *gorm.DB, taskId, attachmentId int) (*model.Attachment, error) {
	var att model.Attachment
	err := tx.Where("id = ? AND task_id = ?", attachmentId, taskId).First(&att).Error
	if database.IsNotFound(err) {
		return nil, common.NotFound("attachment", attachmentId)
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}
