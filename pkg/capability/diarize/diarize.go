// Package diarize defines the Diarizer capability interface wrapping a
// speaker-diarization model.
//
// A diarizer partitions a recording into time ranges attributed to distinct
// (anonymous) speaker clusters. The model itself is an external black box with
// non-deterministic latency, so it is abstracted behind an interface with an
// explicit failure variant: implementations report a down or unreachable model
// via [ErrModelUnavailable], which the segmentation core treats as "zero
// diarization turns" rather than a fatal pipeline error.
//
// Implementations must be safe for concurrent use.
package diarize

import (
	"context"
	"errors"
	"time"
)

// ErrModelUnavailable is returned when the diarization model cannot be
// reached or has not been loaded. Callers degrade to unknown-speaker
// segmentation instead of aborting the run.
var ErrModelUnavailable = errors.New("diarize: model unavailable")

// Turn is one raw diarization result: a time range attributed to an opaque
// speaker cluster. Turns are ordered by Start as emitted by the model; they
// may overlap and may cover non-speech audio — the segment builder resolves
// both.
type Turn struct {
	// Start is the offset of the turn from the beginning of the recording.
	Start time.Duration

	// End is the exclusive end offset of the turn.
	End time.Duration

	// ClusterID is the model-assigned anonymous speaker cluster (e.g.,
	// "SPEAKER_01"). It carries no identity; identity is resolved later by
	// embedding similarity against enrolled reference speakers.
	ClusterID string
}

// Diarizer is the capability interface over any diarization backend.
//
// Implementations must be safe for concurrent use.
type Diarizer interface {
	// Diarize partitions the given mono PCM audio (16-bit little-endian at
	// sampleRate Hz) into speaker turns ordered by start time.
	//
	// Returns [ErrModelUnavailable] (possibly wrapped) when the model cannot
	// serve the request; any other error indicates malformed input.
	Diarize(ctx context.Context, pcm []byte, sampleRate int) ([]Turn, error)
}
