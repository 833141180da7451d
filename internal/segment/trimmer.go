// Package segment implements the segmentation core: silence trimming,
// speaker matching against the enrolled registry, and the builder that turns
// raw diarization output into the final ordered, non-overlapping,
// speaker-tagged segment sequence consumed by the transcription scheduler.
package segment

import (
	"time"

	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/types"
)

const (
	defaultRMSThreshold = 500.0
	defaultWindow       = 20 * time.Millisecond
	defaultMinSilence   = 300 * time.Millisecond
)

// Trimmer detects speech-only ranges in a recording using windowed RMS
// energy. Windows below the amplitude threshold count as silence; silence
// runs shorter than the minimum silence duration do not split a speech
// range, which keeps natural intra-sentence pauses inside one span.
//
// A Trimmer is read-only after construction and safe for concurrent use.
type Trimmer struct {
	threshold  float64
	window     time.Duration
	minSilence time.Duration
}

// TrimmerOption is a functional option for configuring a Trimmer.
type TrimmerOption func(*Trimmer)

// WithRMSThreshold sets the RMS energy (in PCM sample units, 0–32 767) below
// which a window is classified as silence. Default: 500.
func WithRMSThreshold(threshold float64) TrimmerOption {
	return func(t *Trimmer) { t.threshold = threshold }
}

// WithWindow sets the analysis window size. Default: 20ms.
func WithWindow(window time.Duration) TrimmerOption {
	return func(t *Trimmer) { t.window = window }
}

// WithMinSilence sets the shortest silence run that separates two speech
// ranges. Default: 300ms.
func WithMinSilence(d time.Duration) TrimmerOption {
	return func(t *Trimmer) { t.minSilence = d }
}

// NewTrimmer returns a Trimmer configured with the supplied options.
func NewTrimmer(opts ...TrimmerOption) *Trimmer {
	t := &Trimmer{
		threshold:  defaultRMSThreshold,
		window:     defaultWindow,
		minSilence: defaultMinSilence,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SpeechRanges returns the sorted, non-overlapping speech spans of clip.
// A clip with no audio above the threshold yields an empty (nil) result.
func (t *Trimmer) SpeechRanges(clip *audio.Clip, source string) []types.AudioSpan {
	if clip == nil || len(clip.PCM) == 0 || clip.SampleRate <= 0 {
		return nil
	}

	total := clip.Duration()
	var spans []types.AudioSpan
	var cur *types.AudioSpan

	for start := time.Duration(0); start < total; start += t.window {
		end := start + t.window
		if end > total {
			end = total
		}
		speech := audio.RMS(clip.Slice(start, end)) >= t.threshold

		switch {
		case speech && cur == nil:
			spans = append(spans, types.AudioSpan{Start: start, End: end, Source: source})
			cur = &spans[len(spans)-1]
		case speech:
			cur.End = end
		case cur != nil:
			// Keep extending through short silences; a gap only closes the
			// span once it reaches minSilence.
			if end-cur.End >= t.minSilence {
				cur = nil
			}
		}
	}

	return spans
}
