// Package asr defines the batch Transcriber capability interface over any
// speech-to-text backend.
//
// Unlike a streaming STT session, the transcription scheduler works in
// ordered batches: it hands the backend N audio buffers (each at most the
// configured chunk duration) and expects N raw text strings back in the same
// order, or a whole-batch failure. The backend is a black box with
// non-deterministic latency; callers must treat TranscribeBatch as the only
// blocking suspension point of a pipeline run and pass a cancellable context.
//
// Implementations must be safe for concurrent use across independent runs,
// but a single run never issues two batches concurrently — the accelerator
// backing the model is modelled as an exclusively-held resource per run.
package asr

import (
	"context"
	"fmt"
)

// Buffer is one audio item of a batch: mono 16-bit little-endian PCM.
type Buffer struct {
	// PCM is the raw audio payload.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int
}

// BatchError reports that an entire batch failed. Per the capability
// contract there are no partial batch results: either N texts come back or
// the whole batch fails with this error. The scheduler recovers by retrying
// each batch member as a singleton.
type BatchError struct {
	// Size is the number of buffers in the failed batch.
	Size int

	// Err is the underlying backend error.
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("asr: batch of %d failed: %v", e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Transcriber is the capability interface over any batch ASR backend.
type Transcriber interface {
	// TranscribeBatch transcribes buffers and returns exactly
	// len(buffers) raw text strings where the i-th text corresponds to
	// buffers[i]. An empty string is a valid per-item result (no speech
	// recognised).
	//
	// On failure the whole batch fails with a *BatchError; no partial
	// results are returned.
	TranscribeBatch(ctx context.Context, buffers []Buffer) ([]string, error)
}
