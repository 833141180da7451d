// Package energy implements a model-free reference speaker embedder built on
// short-time signal statistics.
//
// The embedding is the concatenation of two normalised histograms computed
// over fixed analysis windows: one over RMS energy levels and one over
// zero-crossing rates. Loud, low-pitched voices land in different buckets
// than quiet, high-pitched ones, which is enough to separate clearly distinct
// speakers in tests and offline setups. It is not a substitute for a neural
// voice model; it pairs with the energy diarizer as the zero-dependency
// backend.
package energy

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
)

const (
	defaultWindow = 20 * time.Millisecond

	// buckets per histogram; the embedding has twice this many dimensions.
	buckets = 8

	// maxRMS is the histogram ceiling for RMS values. 16-bit samples cap at
	// 32767 but speech rarely exceeds half of full scale.
	maxRMS = 16000
)

// Embedder computes deterministic voice-profile vectors from PCM statistics.
// It is safe for concurrent use.
type Embedder struct {
	window time.Duration
}

// Option is a functional option for configuring an Embedder.
type Option func(*Embedder)

// WithWindow sets the analysis window size. Default: 20ms.
func WithWindow(window time.Duration) Option {
	return func(e *Embedder) {
		if window > 0 {
			e.window = window
		}
	}
}

// New returns a ready-to-use Embedder.
func New(opts ...Option) *Embedder {
	e := &Embedder{window: defaultWindow}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Embed computes the energy/zero-crossing profile of the given mono 16-bit
// little-endian PCM audio. The result is L2-normalised so cosine similarity
// against other profiles is meaningful.
func (e *Embedder) Embed(ctx context.Context, pcm []byte, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("energy: invalid sample rate %d", sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	windowBytes := int(int64(e.window) * int64(sampleRate) / int64(time.Second) * 2)
	if windowBytes < 2 {
		windowBytes = 2
	}

	var (
		rmsHist [buckets]float64
		zcrHist [buckets]float64
		windows int
	)
	for off := 0; off+windowBytes <= len(pcm); off += windowBytes {
		win := pcm[off : off+windowBytes]
		rmsHist[bucketOf(audio.RMS(win)/maxRMS)]++
		zcrHist[bucketOf(zeroCrossingRate(win))]++
		windows++
	}
	if windows == 0 {
		return nil, fmt.Errorf("energy: audio shorter than one %v window", e.window)
	}

	vec := make([]float32, 2*buckets)
	for i := range buckets {
		vec[i] = float32(rmsHist[i] / float64(windows))
		vec[buckets+i] = float32(zcrHist[i] / float64(windows))
	}
	normalise(vec)
	return vec, nil
}

// Dimensions returns the embedding length.
func (e *Embedder) Dimensions() int { return 2 * buckets }

// bucketOf maps a ratio in [0, 1] to a histogram bucket, clamping overshoot.
func bucketOf(ratio float64) int {
	b := int(ratio * buckets)
	if b < 0 {
		b = 0
	}
	if b >= buckets {
		b = buckets - 1
	}
	return b
}

// zeroCrossingRate returns the fraction of adjacent sample pairs with a sign
// change, a cheap proxy for dominant frequency.
func zeroCrossingRate(pcm []byte) float64 {
	n := len(pcm) / 2
	if n < 2 {
		return 0
	}
	crossings := 0
	prev := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	for i := 1; i < n; i++ {
		cur := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		if (prev < 0) != (cur < 0) {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(n-1)
}

func normalise(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

var _ speakerembed.Embedder = (*Embedder)(nil)
