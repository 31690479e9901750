package utils

import (
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// officeTypes covers extensions missing from minimal system mime tables
var officeTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".doc":  "application/msword",
	".xls":  "application/vnd.ms-excel",
	".ppt":  "application/vnd.ms-powerpoint",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".json": "application/json",
	".pdf":  "application/pdf",
}

// MimeTypeByName guesses a content type from the file extension.
// It returns "" when the extension is unknown.
func MimeTypeByName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := officeTypes[ext]; ok {
		return t
	}
	return baseType(mime.TypeByExtension(ext))
}

// baseType drops parameters such as "; charset=utf-8"
func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// DetectMimeType uses the extension when known and sniffs content otherwise
func DetectMimeType(name string, content io.Reader) string {
	if t := MimeTypeByName(name); t != "" {
		return t
	}
	if content != nil {
		if m, err := mimetype.DetectReader(content); err == nil {
			return baseType(m.String())
		}
	}
	return "application/octet-stream"
}
