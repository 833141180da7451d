// Package speakerembed defines the Embedder capability interface for
// speaker-voice embedding backends.
//
// An embedder maps a span of audio to a fixed-length float32 vector in a
// space where cosine similarity correlates with same-speaker likelihood.
// Embeddings drive speaker identification: each diarized range is embedded
// and matched against the enrolled reference vectors in the speaker registry.
//
// The model is an external black box; implementations signal a down model via
// [ErrModelUnavailable], which the segment builder degrades to an unknown
// speaker rather than treating as fatal.
//
// Implementations must be safe for concurrent use and are pure from the
// core's perspective: same audio in, same vector out, no side effects.
package speakerembed

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned when the embedding model cannot be reached
// or has not been loaded.
var ErrModelUnavailable = errors.New("speakerembed: model unavailable")

// Embedder is the capability interface over any speaker-embedding backend.
//
// All vectors returned by a single Embedder instance share the same
// dimensionality (returned by Dimensions). Callers must not compare vectors
// from different Embedder instances unless they have verified both use the
// same model and space.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed computes the voice embedding for the given mono PCM audio
	// (16-bit little-endian at sampleRate Hz). Returns a float32 slice of
	// length Dimensions(), or [ErrModelUnavailable] (possibly wrapped) when
	// the model cannot serve the request.
	Embed(ctx context.Context, pcm []byte, sampleRate int) ([]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// embedder. Constant for the lifetime of the instance.
	Dimensions() int
}
