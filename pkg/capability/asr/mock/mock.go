// Package mock provides a test double for the asr.Transcriber interface.
//
// Texts returned per batch can be driven either by a fixed mapping from
// buffer content, a scripted per-call function, or per-call errors to
// exercise the scheduler's singleton-retry policy.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/echoscribe/pkg/capability/asr"
)

// BatchCall records a single invocation of TranscribeBatch.
type BatchCall struct {
	// Ctx is the context passed to TranscribeBatch.
	Ctx context.Context
	// Sizes are the byte lengths of the buffers in the batch, in order.
	Sizes []int
}

// Transcriber is a mock implementation of asr.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// TranscribeFunc, if non-nil, is invoked for each call and takes
	// precedence over TextFor and Err.
	TranscribeFunc func(call int, buffers []asr.Buffer) ([]string, error)

	// TextFor maps a buffer's byte length to the text returned for it.
	// Buffers with no mapping produce an empty string.
	TextFor map[int]string

	// Err, if non-nil, is returned (wrapped in *asr.BatchError) from every
	// call when TranscribeFunc is nil.
	Err error

	// Calls records every invocation in order.
	Calls []BatchCall
}

// TranscribeBatch records the call and returns the scripted result.
func (t *Transcriber) TranscribeBatch(ctx context.Context, buffers []asr.Buffer) ([]string, error) {
	t.mu.Lock()
	sizes := make([]int, len(buffers))
	for i, b := range buffers {
		sizes[i] = len(b.PCM)
	}
	t.Calls = append(t.Calls, BatchCall{Ctx: ctx, Sizes: sizes})
	call := len(t.Calls) - 1
	fn := t.TranscribeFunc
	t.mu.Unlock()

	if fn != nil {
		return fn(call, buffers)
	}
	if t.Err != nil {
		return nil, &asr.BatchError{Size: len(buffers), Err: t.Err}
	}
	texts := make([]string, len(buffers))
	for i, b := range buffers {
		texts[i] = t.TextFor[len(b.PCM)]
	}
	return texts, nil
}

// CallCount returns the number of TranscribeBatch invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

var _ asr.Transcriber = (*Transcriber)(nil)
