// Package mock provides a test double for the storage.Uploader interface.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/echoscribe/pkg/storage"
)

// UploadCall records a single invocation of Upload.
type UploadCall struct {
	// Ctx is the context passed to Upload.
	Ctx context.Context
	// Path is the object path passed to Upload.
	Path string
	// Data is a copy of the uploaded bytes.
	Data []byte
	// ContentType is the MIME type passed to Upload.
	ContentType string
	// Overwrite is the overwrite flag passed to Upload.
	Overwrite bool
}

// Uploader is a mock implementation of storage.Uploader.
type Uploader struct {
	mu sync.Mutex

	// UploadFunc, if non-nil, is invoked for each call and takes precedence
	// over Existing and Err.
	UploadFunc func(call UploadCall) (string, error)

	// Existing marks object paths that already exist: a non-overwriting
	// upload to one of them fails with storage.ErrObjectExists.
	Existing map[string]bool

	// Err, if non-nil, is returned from every call when UploadFunc is nil.
	Err error

	// Calls records every invocation in order.
	Calls []UploadCall
}

// Upload records the call and returns the scripted result. Successful
// uploads return "mock://<path>" and register the path in Existing.
func (u *Uploader) Upload(ctx context.Context, path string, data []byte, contentType string, overwrite bool) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	call := UploadCall{Ctx: ctx, Path: path, Data: cp, ContentType: contentType, Overwrite: overwrite}

	u.mu.Lock()
	u.Calls = append(u.Calls, call)
	fn := u.UploadFunc
	u.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	if u.Err != nil {
		return "", u.Err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if !overwrite && u.Existing[path] {
		return "", fmt.Errorf("mock: put %s: %w", path, storage.ErrObjectExists)
	}
	if u.Existing == nil {
		u.Existing = make(map[string]bool)
	}
	u.Existing[path] = true
	return "mock://" + path, nil
}

// CallCount returns the number of Upload invocations so far.
func (u *Uploader) CallCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.Calls)
}

var _ storage.Uploader = (*Uploader)(nil)
