package services

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	apperrors "github.com/hideshare/hideshare/internal/errors"
)

// DefaultMaxUploadBytes is the upload size ceiling when none is configured.
const DefaultMaxUploadBytes = 50 * 1024 * 1024 // 50 MiB

// SniffSize is how many leading bytes the validator needs for content
// sniffing; mimetype never reads more than this.
const SniffSize = 3072

// allowedExtensions is the upload extension allow-list.
var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true,
	".pdf": true, ".txt": true, ".zip": true,
	".c": true, ".cpp": true, ".h": true, ".java": true, ".py": true, ".js": true,
}

// allowedMimeTypes is the allow-list applied to both the declared
// Content-Type and the sniffed content type.
var allowedMimeTypes = map[string]bool{
	// Images
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,

	// Videos
	"video/mp4":        true,
	"video/mpeg":       true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/webm":       true,

	// Documents / text
	"application/pdf": true,
	"text/plain":      true,

	// Archives
	"application/zip":              true,
	"application/x-zip-compressed": true,

	// Source code (some browsers send these)
	"text/x-c":      true,
	"text/x-c++src": true,

	// Generic fallback
	"application/octet-stream": true,
}

// UploadValidator performs upload intake validation. It rejects candidates
// before any object or record is written; a rejected upload leaves no trace.
type UploadValidator struct {
	maxBytes int64
}

// NewUploadValidator creates a validator with the given size ceiling.
// A non-positive ceiling falls back to DefaultMaxUploadBytes.
func NewUploadValidator(maxBytes int64) *UploadValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadValidator{maxBytes: maxBytes}
}

// MaxBytes returns the configured size ceiling.
func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks a candidate upload: declared size against the ceiling,
// the filename extension and the declared MIME type against the
// allow-lists, and a content sniff of the leading bytes. declaredType may
// carry parameters ("text/plain; charset=utf-8") which are ignored.
func (v *UploadValidator) Validate(filename, declaredType string, size int64, head []byte) error {
	if size > v.maxBytes {
		return apperrors.ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return apperrors.ErrFileTypeNotAllowed
	}

	if declaredType != "" {
		base := strings.TrimSpace(strings.Split(declaredType, ";")[0])
		if !allowedMimeTypes[strings.ToLower(base)] {
			return apperrors.ErrFileTypeNotAllowed
		}
	}

	// Sniff the real content type; browsers lie and extensions are free.
	mt := mimetype.Detect(head)

	// application/octet-stream is the root of the detection hierarchy and
	// means "nothing recognizable" — acceptable, same as the generic
	// fallback on the declared-type list. It only counts when it is the
	// detection itself: every type descends from the root, so matching it
	// during the ancestor walk below would let any content through.
	if mt.Is("application/octet-stream") {
		return nil
	}

	// The detected type is allowed if it, or any non-root ancestor, is on
	// the allow-list: source files sniff as subtypes of text/plain.
	// Recognized types outside the list (executables, say, inside a .txt)
	// are rejected no matter what the extension claims.
	for ; mt != nil && mt.Parent() != nil; mt = mt.Parent() {
		for allowed := range allowedMimeTypes {
			// MIME.Is ignores charset parameters and resolves aliases,
			// e.g. image/jpg for image/jpeg.
			if mt.Is(allowed) {
				return nil
			}
		}
	}
	return apperrors.ErrFileTypeNotAllowed
}
