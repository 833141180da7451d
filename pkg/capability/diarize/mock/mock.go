// Package mock provides a test double for the diarize.Diarizer interface.
//
// Use Diarizer to return pre-canned turns without a live model and to verify
// what audio was submitted for diarization.
//
// Example:
//
//	d := &mock.Diarizer{
//	    DiarizeResult: []diarize.Turn{{Start: 0, End: 2 * time.Second, ClusterID: "SPEAKER_01"}},
//	}
//	turns, _ := d.Diarize(ctx, pcm, 16000)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
)

// DiarizeCall records a single invocation of Diarize.
type DiarizeCall struct {
	// Ctx is the context passed to Diarize.
	Ctx context.Context
	// PCMLen is the byte length of the audio passed to Diarize.
	PCMLen int
	// SampleRate is the sample rate passed to Diarize.
	SampleRate int
}

// Diarizer is a mock implementation of diarize.Diarizer.
type Diarizer struct {
	mu sync.Mutex

	// DiarizeResult is returned by Diarize. If nil, an empty slice is returned.
	DiarizeResult []diarize.Turn

	// DiarizeErr, if non-nil, is returned as the error from Diarize.
	DiarizeErr error

	// DiarizeCalls records every call to Diarize in order.
	DiarizeCalls []DiarizeCall
}

// Diarize records the call and returns DiarizeResult, DiarizeErr.
func (d *Diarizer) Diarize(ctx context.Context, pcm []byte, sampleRate int) ([]diarize.Turn, error) {
	d.mu.Lock()
	d.DiarizeCalls = append(d.DiarizeCalls, DiarizeCall{Ctx: ctx, PCMLen: len(pcm), SampleRate: sampleRate})
	d.mu.Unlock()
	if d.DiarizeErr != nil {
		return nil, d.DiarizeErr
	}
	if d.DiarizeResult == nil {
		return []diarize.Turn{}, nil
	}
	return d.DiarizeResult, nil
}

var _ diarize.Diarizer = (*Diarizer)(nil)
