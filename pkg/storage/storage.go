// Package storage defines the artifact-upload capability and the Putter
// wrapper implementing the pipeline's upload policy: sanitised paths,
// extension-derived content types, and a create-then-overwrite fallback for
// keys that already exist.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrObjectExists indicates a create-only upload found an object already
// stored under the target key.
var ErrObjectExists = errors.New("storage: object already exists")

// UploadError reports a failed upload of one artifact. Sibling artifacts of
// the same run are not affected by a single UploadError.
type UploadError struct {
	// Path is the sanitised object path the upload targeted.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("storage: upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsAlreadyExists reports whether err is an already-exists upload conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrObjectExists)
}

// Uploader is the abstraction over any object-storage backend.
//
// When overwrite is false the upload must be conditional: it fails with an
// error wrapping [ErrObjectExists] if the key is already present.
// Implementations must be safe for concurrent use.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string, overwrite bool) (url string, err error)
}

// PathSanitizer normalises artifact paths before upload.
// [sanitize.Sanitizer] satisfies this interface.
type PathSanitizer interface {
	Sanitize(path string) string
}

// Putter applies the upload policy on top of a backend Uploader: every path
// is sanitised, the content type is derived from the file extension, and an
// upload that collides with an existing object falls back once to an
// overwriting upload. Any other failure surfaces as a *UploadError.
type Putter struct {
	uploader  Uploader
	sanitizer PathSanitizer
}

// NewPutter returns a Putter wrapping uploader. A nil sanitizer leaves
// paths unmodified.
func NewPutter(uploader Uploader, sanitizer PathSanitizer) *Putter {
	return &Putter{uploader: uploader, sanitizer: sanitizer}
}

// Put uploads one artifact and returns its storage URL.
func (p *Putter) Put(ctx context.Context, objectPath string, data []byte) (string, error) {
	if p.sanitizer != nil {
		objectPath = p.sanitizer.Sanitize(objectPath)
	}
	contentType := ContentType(objectPath)

	url, err := p.uploader.Upload(ctx, objectPath, data, contentType, false)
	if IsAlreadyExists(err) {
		url, err = p.uploader.Upload(ctx, objectPath, data, contentType, true)
	}
	if err != nil {
		return "", &UploadError{Path: objectPath, Err: err}
	}
	return url, nil
}

// contentTypes maps lower-case file extensions to MIME types for the
// artifact kinds the pipeline produces.
var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".json": "application/json",
	".srt":  "application/x-subrip",
	".vtt":  "text/vtt",
}

// ContentType returns the MIME type for the given object path based on its
// file extension, or "application/octet-stream" for unknown extensions.
func ContentType(objectPath string) string {
	ext := strings.ToLower(path.Ext(objectPath))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
