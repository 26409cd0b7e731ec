// Package validator classifies uploads by size, declared MIME type and file name.
// Everything here is pure: no I/O, deterministic for a given input.
package validator

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"fileshare/internal/apperror"
)

// Category is an allow-listed class of content.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryCode     Category = "code"
	CategoryOther    Category = "other"
)

var mimeCategories = map[string]Category{
	"image/jpeg":    CategoryImage,
	"image/png":     CategoryImage,
	"image/gif":     CategoryImage,
	"image/webp":    CategoryImage,
	"image/svg+xml": CategoryImage,
	"image/bmp":     CategoryImage,
	"image/tiff":    CategoryImage,
	"image/heic":    CategoryImage,

	"video/mp4":        CategoryVideo,
	"video/webm":       CategoryVideo,
	"video/quicktime":  CategoryVideo,
	"video/x-msvideo":  CategoryVideo,
	"video/x-matroska": CategoryVideo,
	"video/mpeg":       CategoryVideo,

	"audio/mpeg": CategoryAudio,
	"audio/wav":  CategoryAudio,
	"audio/ogg":  CategoryAudio,
	"audio/flac": CategoryAudio,
	"audio/aac":  CategoryAudio,
	"audio/webm": CategoryAudio,
	"audio/mp4":  CategoryAudio,

	"application/pdf":    CategoryDocument,
	"application/msword": CategoryDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   CategoryDocument,
	"application/vnd.ms-excel":                                                  CategoryDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         CategoryDocument,
	"application/vnd.ms-powerpoint":                                             CategoryDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": CategoryDocument,
	"application/vnd.oasis.opendocument.text":                                   CategoryDocument,
	"application/rtf":                                                           CategoryDocument,
	"text/plain":                                                                CategoryDocument,
	"text/markdown":                                                             CategoryDocument,
	"text/csv":                                                                  CategoryDocument,

	"application/zip":              CategoryArchive,
	"application/x-tar":            CategoryArchive,
	"application/gzip":             CategoryArchive,
	"application/x-gzip":           CategoryArchive,
	"application/x-7z-compressed":  CategoryArchive,
	"application/x-rar-compressed": CategoryArchive,
	"application/vnd.rar":          CategoryArchive,
	"application/x-bzip2":          CategoryArchive,

	"text/html":              CategoryCode,
	"text/css":               CategoryCode,
	"text/javascript":        CategoryCode,
	"application/javascript": CategoryCode,
	"application/json":       CategoryCode,
	"application/xml":        CategoryCode,
	"text/xml":               CategoryCode,
	"text/x-python":          CategoryCode,
	"text/x-go":              CategoryCode,
	"application/x-sh":       CategoryCode,
	"application/x-yaml":     CategoryCode,
}

var extCategories = map[string]Category{
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage, ".gif": CategoryImage,
	".webp": CategoryImage, ".svg": CategoryImage, ".bmp": CategoryImage, ".tif": CategoryImage,
	".tiff": CategoryImage, ".heic": CategoryImage,

	".mp4": CategoryVideo, ".webm": CategoryVideo, ".mov": CategoryVideo, ".avi": CategoryVideo,
	".mkv": CategoryVideo, ".mpeg": CategoryVideo,

	".mp3": CategoryAudio, ".wav": CategoryAudio, ".ogg": CategoryAudio, ".flac": CategoryAudio,
	".aac": CategoryAudio, ".m4a": CategoryAudio,

	".pdf": CategoryDocument, ".doc": CategoryDocument, ".docx": CategoryDocument,
	".xls": CategoryDocument, ".xlsx": CategoryDocument, ".ppt": CategoryDocument,
	".pptx": CategoryDocument, ".odt": CategoryDocument, ".rtf": CategoryDocument,
	".txt": CategoryDocument, ".md": CategoryDocument, ".csv": CategoryDocument,

	".zip": CategoryArchive, ".tar": CategoryArchive, ".gz": CategoryArchive, ".tgz": CategoryArchive,
	".7z": CategoryArchive, ".rar": CategoryArchive, ".bz2": CategoryArchive,

	".html": CategoryCode, ".css": CategoryCode, ".js": CategoryCode, ".ts": CategoryCode,
	".json": CategoryCode, ".xml": CategoryCode, ".py": CategoryCode, ".go": CategoryCode,
	".java": CategoryCode, ".c": CategoryCode, ".cpp": CategoryCode, ".h": CategoryCode,
	".rs": CategoryCode, ".rb": CategoryCode, ".sh": CategoryCode, ".yaml": CategoryCode,
	".yml": CategoryCode, ".sql": CategoryCode,

	".bin": CategoryOther, ".iso": CategoryOther, ".dat": CategoryOther,
}

// Validator checks uploads against a maximum size and the category tables.
type Validator struct {
	maxSize int64
}

// New returns a Validator rejecting files larger than maxSize bytes.
func New(maxSize int64) *Validator {
	return &Validator{maxSize: maxSize}
}

// MaxSize returns the configured maximum file size.
func (v *Validator) MaxSize() int64 { return v.maxSize }

// Validate returns the category for the file or a validation error.
// Rules apply in order: empty, too large, MIME lookup, extension fallback.
func (v *Validator) Validate(size int64, mimeType, name string) (Category, error) {
	if size <= 0 {
		return "", apperror.New(apperror.KindValidation, apperror.ReasonEmptyFile, "file is empty")
	}
	if v.maxSize > 0 && size > v.maxSize {
		return "", apperror.New(apperror.KindValidation, apperror.ReasonTooLarge,
			"file exceeds the maximum size of %s", humanize.IBytes(uint64(v.maxSize)))
	}
	if c, ok := ClassifyMIME(mimeType); ok {
		return c, nil
	}
	if c, ok := ClassifyExtension(name); ok {
		return c, nil
	}
	return "", apperror.New(apperror.KindValidation, apperror.ReasonUnsupportedType,
		"file type %q is not supported", displayType(mimeType, name))
}

// ClassifyMIME looks up a declared MIME type, ignoring parameters and case.
func ClassifyMIME(mimeType string) (Category, bool) {
	if mimeType == "" {
		return "", false
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	c, ok := mimeCategories[mt]
	return c, ok
}

// ClassifyExtension looks up the lower-cased extension of name.
func ClassifyExtension(name string) (Category, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", false
	}
	c, ok := extCategories[ext]
	return c, ok
}

func displayType(mimeType, name string) string {
	if mimeType != "" {
		return mimeType
	}
	return filepath.Ext(name)
}
