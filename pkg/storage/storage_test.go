package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/echoscribe/internal/sanitize"
	"github.com/MrWong99/echoscribe/pkg/storage"
	storagemock "github.com/MrWong99/echoscribe/pkg/storage/mock"
)

// TestPut_SanitisesPathAndSetsContentType verifies the happy path.
func TestPut_SanitisesPathAndSetsContentType(t *testing.T) {
	up := &storagemock.Uploader{}
	p := storage.NewPutter(up, sanitize.New())

	url, err := p.Put(context.Background(), "bài giảng/Giám Đốc Đức.wav", []byte("pcm"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "mock://bai_giang/Giam_Doc_Duc.wav" {
		t.Errorf("url = %q, want sanitised mock URL", url)
	}
	if len(up.Calls) != 1 {
		t.Fatalf("CallCount() = %d, want 1", len(up.Calls))
	}
	call := up.Calls[0]
	if call.Path != "bai_giang/Giam_Doc_Duc.wav" {
		t.Errorf("uploaded path = %q, want sanitised form", call.Path)
	}
	if call.ContentType != "audio/wav" {
		t.Errorf("content type = %q, want audio/wav", call.ContentType)
	}
	if call.Overwrite {
		t.Error("first upload attempt was overwriting, want create-only")
	}
}

// TestPut_OverwriteFallback verifies the single overwrite retry on an
// already-existing key.
func TestPut_OverwriteFallback(t *testing.T) {
	up := &storagemock.Uploader{Existing: map[string]bool{"a.txt": true}}
	p := storage.NewPutter(up, nil)

	url, err := p.Put(context.Background(), "a.txt", []byte("transcript"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url == "" {
		t.Error("url empty after overwrite fallback")
	}
	if len(up.Calls) != 2 {
		t.Fatalf("CallCount() = %d, want 2 (create-only then overwrite)", len(up.Calls))
	}
	if up.Calls[0].Overwrite || !up.Calls[1].Overwrite {
		t.Errorf("overwrite flags = %v, %v; want false then true", up.Calls[0].Overwrite, up.Calls[1].Overwrite)
	}
}

// TestPut_OtherErrorsSurfaceAsUploadError verifies non-conflict failures are
// not retried and come back typed.
func TestPut_OtherErrorsSurfaceAsUploadError(t *testing.T) {
	boom := errors.New("access denied")
	up := &storagemock.Uploader{Err: boom}
	p := storage.NewPutter(up, nil)

	_, err := p.Put(context.Background(), "a.txt", []byte("x"))
	var ue *storage.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("Put() error = %v, want *UploadError", err)
	}
	if ue.Path != "a.txt" || !errors.Is(err, boom) {
		t.Errorf("UploadError = %+v, want path a.txt wrapping cause", ue)
	}
	if len(up.Calls) != 1 {
		t.Errorf("CallCount() = %d, want 1 (no retry for non-conflict errors)", len(up.Calls))
	}
}

// TestContentType covers the extension → MIME mapping.
func TestContentType(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"a.wav", "audio/wav"},
		{"dir/b.MP3", "audio/mpeg"},
		{"c.json", "application/json"},
		{"d.txt", "text/plain; charset=utf-8"},
		{"e.srt", "application/x-subrip"},
		{"f.unknown", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := storage.ContentType(tc.path); got != tc.want {
			t.Errorf("ContentType(%s) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
