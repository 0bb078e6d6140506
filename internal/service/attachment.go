package service

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// MaxAttachmentSize is the largest accepted attachment, in bytes.
const MaxAttachmentSize = 10 << 20

var allowedContentTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain":                   {},
	"application/zip":              {},
	"application/x-rar-compressed": {},
}

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".txt":  {},
	".zip":  {},
	".rar":  {},
}

// CheckAttachment enforces the size limit and the type allow-list. A content type outside
// the list, or none at all, falls back to the file extension.
func CheckAttachment(att *domain.Attachment) error {
	if att == nil {
		return nil
	}
	if strings.TrimSpace(att.FileName) == "" {
		return unsupportedAttachment("file name is required", att)
	}
	if att.Size() > MaxAttachmentSize {
		return unsupportedAttachment("file exceeds 10 MiB", att)
	}
	if _, ok := allowedContentTypes[normalizeContentType(att.ContentType)]; ok {
		return nil
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(att.FileName))]; ok {
		return nil
	}
	return unsupportedAttachment("file type not allowed", att)
}

func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return strings.ToLower(ct)
}

func unsupportedAttachment(reason string, att *domain.Attachment) error {
	return errorutil.NewInvalid(errorutil.CodeUnsupportedAttachment, reason, map[string]any{
		"file_name":    att.FileName,
		"content_type": att.ContentType,
		"size":         att.Size(),
	})
}
