// Package audio provides the minimal PCM plumbing the pipeline needs: WAV
// decode/encode and span extraction over mono 16-bit little-endian audio.
//
// Everything downstream of decode works on a [Clip]: the silence trimmer
// computes energy over its samples, the segment builder and scheduler slice
// spans out of it, and the uploader re-encodes slices as WAV artifacts.
// Clips are immutable after decode; Slice returns views into the underlying
// buffer, so callers must not modify the returned bytes.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Clip is a decoded recording: mono 16-bit little-endian PCM at SampleRate Hz.
type Clip struct {
	// PCM is the raw sample data, two bytes per sample.
	PCM []byte

	// SampleRate is the sample rate in Hz.
	SampleRate int
}

// Duration returns the total play time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Slice returns the PCM covering [start, end), clamped to the clip bounds.
// The returned slice aliases the clip's buffer and must not be modified.
func (c *Clip) Slice(start, end time.Duration) []byte {
	if c.SampleRate <= 0 || end <= start {
		return nil
	}
	toByte := func(d time.Duration) int {
		sample := int(d * time.Duration(c.SampleRate) / time.Second)
		b := sample * 2
		if b < 0 {
			b = 0
		}
		if b > len(c.PCM) {
			b = len(c.PCM)
		}
		// Keep sample alignment.
		return b &^ 1
	}
	return c.PCM[toByte(start):toByte(end)]
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, expressed in the same units as PCM sample values (0–32 767).
// Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}
