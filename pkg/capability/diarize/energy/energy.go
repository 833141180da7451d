// Package energy provides a model-free reference diarizer for offline use.
//
// It detects speech by windowed RMS energy and attributes each contiguous
// speech range to a cluster derived from the range's mean energy level.
// Recordings where speakers sit at clearly different distances from the
// microphone (the typical classroom setup) cluster surprisingly well; for
// anything else a real diarization model should be configured instead.
package energy

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
)

const (
	defaultThreshold = 500.0
	defaultWindow    = 20 * time.Millisecond
	defaultMinGap    = 600 * time.Millisecond
	defaultLevelStep = 3000.0
)

// Diarizer implements diarize.Diarizer with windowed energy analysis.
// Read-only after construction and safe for concurrent use.
type Diarizer struct {
	threshold float64
	window    time.Duration
	minGap    time.Duration
	levelStep float64
}

// Option is a functional option for configuring a Diarizer.
type Option func(*Diarizer)

// WithThreshold sets the RMS level above which a window counts as speech.
func WithThreshold(rms float64) Option {
	return func(d *Diarizer) { d.threshold = rms }
}

// WithWindow sets the analysis window size.
func WithWindow(w time.Duration) Option {
	return func(d *Diarizer) { d.window = w }
}

// WithMinGap sets the minimum silence between two turns. Shorter gaps keep
// the surrounding speech in one turn.
func WithMinGap(g time.Duration) Option {
	return func(d *Diarizer) { d.minGap = g }
}

// WithLevelStep sets the RMS bucket width used to derive cluster IDs. Turns
// whose mean energy falls into the same bucket share a cluster.
func WithLevelStep(step float64) Option {
	return func(d *Diarizer) { d.levelStep = step }
}

// New returns a Diarizer with the given options applied over defaults.
func New(opts ...Option) *Diarizer {
	d := &Diarizer{
		threshold: defaultThreshold,
		window:    defaultWindow,
		minGap:    defaultMinGap,
		levelStep: defaultLevelStep,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Diarize implements diarize.Diarizer.
func (d *Diarizer) Diarize(ctx context.Context, pcm []byte, sampleRate int) ([]diarize.Turn, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("energy: invalid sample rate %d", sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	windowBytes := int(int64(d.window) * int64(sampleRate) / int64(time.Second) * 2)
	if windowBytes < 2 {
		windowBytes = 2
	}

	var turns []diarize.Turn
	var cur *turnAccum
	silence := time.Duration(0)

	for off := 0; off < len(pcm); off += windowBytes {
		end := off + windowBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		rms := audio.RMS(pcm[off:end])
		at := byteOffsetDuration(off, sampleRate)
		to := byteOffsetDuration(end, sampleRate)

		if rms >= d.threshold {
			if cur == nil {
				cur = &turnAccum{start: at}
			}
			cur.end = to
			cur.sum += rms
			cur.windows++
			silence = 0
			continue
		}
		if cur != nil {
			silence += to - at
			if silence >= d.minGap {
				turns = append(turns, cur.turn(d.levelStep))
				cur = nil
				silence = 0
			}
		}
	}
	if cur != nil {
		turns = append(turns, cur.turn(d.levelStep))
	}
	return turns, nil
}

// turnAccum accumulates one in-progress speech turn.
type turnAccum struct {
	start, end time.Duration
	sum        float64
	windows    int
}

func (a *turnAccum) turn(levelStep float64) diarize.Turn {
	mean := a.sum / float64(a.windows)
	bucket := int(mean / levelStep)
	return diarize.Turn{
		Start:     a.start,
		End:       a.end,
		ClusterID: fmt.Sprintf("ENERGY_%02d", bucket),
	}
}

func byteOffsetDuration(off, sampleRate int) time.Duration {
	return time.Duration(off/2) * time.Second / time.Duration(sampleRate)
}

var _ diarize.Diarizer = (*Diarizer)(nil)
