// Package mock provides a test double for the speakerembed.Embedder interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	// Ctx is the context passed to Embed.
	Ctx context.Context
	// PCMLen is the byte length of the audio passed to Embed.
	PCMLen int
	// SampleRate is the sample rate passed to Embed.
	SampleRate int
}

// Embedder is a mock implementation of speakerembed.Embedder.
//
// When EmbedFunc is set it takes precedence, allowing per-call results (e.g.,
// different vectors for different audio regions). Otherwise EmbedResult and
// EmbedErr are returned for every call.
type Embedder struct {
	mu sync.Mutex

	// EmbedFunc, if non-nil, is invoked for each Embed call.
	EmbedFunc func(pcm []byte, sampleRate int) ([]float32, error)

	// EmbedResult is returned by Embed when EmbedFunc is nil.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed when
	// EmbedFunc is nil.
	EmbedErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// EmbedCalls records every call to Embed in order.
	EmbedCalls []EmbedCall
}

// Embed records the call and returns the configured result.
func (e *Embedder) Embed(ctx context.Context, pcm []byte, sampleRate int) ([]float32, error) {
	e.mu.Lock()
	e.EmbedCalls = append(e.EmbedCalls, EmbedCall{Ctx: ctx, PCMLen: len(pcm), SampleRate: sampleRate})
	fn := e.EmbedFunc
	e.mu.Unlock()
	if fn != nil {
		return fn(pcm, sampleRate)
	}
	if e.EmbedErr != nil {
		return nil, e.EmbedErr
	}
	return e.EmbedResult, nil
}

// Dimensions returns DimensionsValue.
func (e *Embedder) Dimensions() int { return e.DimensionsValue }

var _ speakerembed.Embedder = (*Embedder)(nil)
