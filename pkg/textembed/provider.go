// Package textembed defines the Provider interface for text-embedding
// backends.
//
// A text-embedding provider maps transcript line text to dense float32
// vectors. The vectors feed the semantic-search index: every persisted
// transcript line gets one embedding, and search queries are embedded with
// the same provider so cosine distance in the store is meaningful.
//
// Implementations must be safe for concurrent use.
package textembed

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Vectors from different Provider
// instances must not be mixed in one similarity computation unless both use
// the same model.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails
	// or ctx is cancelled. Text is passed to the backend verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts in a single
	// provider call. The returned slice has the same length as texts and the
	// i-th element corresponds to texts[i]. Partial results are not
	// returned — on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider. Constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier
	// (e.g., "text-embedding-3-small"). Useful for logging and for ensuring
	// index and query embeddings come from the same model.
	ModelID() string
}
