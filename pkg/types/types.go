// Package types defines the shared types used across all Echoscribe packages.
//
// These types form the lingua franca between the segmentation core, the
// transcription scheduler, the assembler, and the persistence layers. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// AudioSpan is a half-open time range [Start, End) within a single source
// recording. Spans produced by one segmentation pass are non-overlapping and
// sorted by Start; Start < End always holds.
type AudioSpan struct {
	// Start is the offset of the span from the beginning of the recording.
	Start time.Duration

	// End is the exclusive end offset of the span.
	End time.Duration

	// Source identifies the recording the span belongs to, typically the
	// original file path before sanitisation.
	Source string
}

// Duration returns the length of the span.
func (s AudioSpan) Duration() time.Duration { return s.End - s.Start }

// Overlaps reports whether s and o share any audio.
func (s AudioSpan) Overlaps(o AudioSpan) bool {
	return s.Start < o.End && o.Start < s.End
}

// SpeakerLabel identifies a known speaker. Labels live in a process-wide
// registry populated once at pipeline start from reference samples and are
// read-only for the lifetime of a run.
type SpeakerLabel struct {
	// ID is an opaque, stable speaker identifier (e.g., "spk-giam-doc-duc").
	ID string

	// DisplayName is the human-readable form used in rendered transcripts.
	// May be empty, in which case ID is displayed.
	DisplayName string

	// Reference is the fixed-length voice embedding this speaker was enrolled
	// with. Nil for the synthetic "unknown" speaker.
	Reference []float32
}

// Display returns DisplayName when set, otherwise ID.
func (l *SpeakerLabel) Display() string {
	if l == nil {
		return UnknownSpeaker
	}
	if l.DisplayName != "" {
		return l.DisplayName
	}
	return l.ID
}

// UnknownSpeaker is the display form used for segments whose speaker could
// not be resolved above the similarity threshold.
const UnknownSpeaker = "unknown"

// Segment is a final, speaker-and-time-tagged audio span ready for
// transcription. Segments are produced exactly once per physical audio region
// by the segment builder and are never mutated downstream — transcription
// attaches derived text via a separate TranscriptionResult.
type Segment struct {
	// Span is the audio region this segment covers.
	Span AudioSpan

	// Speaker is the resolved speaker, or nil when no known speaker matched
	// above the similarity threshold.
	Speaker *SpeakerLabel

	// Alternate is the runner-up speaker when the match was ambiguous
	// (best and second-best similarity within the ambiguity margin).
	// Nil for unambiguous matches.
	Alternate *SpeakerLabel

	// Confidence is the speaker-match similarity in [0, 1]. For unknown
	// speakers it records the best near-miss similarity so downstream
	// consumers can still rank candidates.
	Confidence float64

	// Index is the position of the segment in the run. Indexes are contiguous
	// and gap-free within one source file and define transcript ordering.
	Index int
}

// TranscriptionResult pairs a segment index with the raw ASR output for that
// segment. Exactly one result exists per segment; failed segments carry an
// empty Text and Failed = true rather than being dropped.
type TranscriptionResult struct {
	// Index is the sequence index of the segment this result belongs to.
	Index int

	// Text is the raw, unnormalised ASR output. Empty when Failed is true.
	Text string

	// Confidence is the model-reported confidence, when available. Zero
	// otherwise.
	Confidence float64

	// Failed marks a segment whose transcription failed after the singleton
	// retry. Failed results still produce transcript lines so that timestamps
	// remain contiguous for audit.
	Failed bool
}

// TranscriptLine is one finalised line of the transcript: normalised text
// with speaker attribution and the original segment timing.
type TranscriptLine struct {
	// Speaker is the display form of the resolved speaker.
	Speaker string

	// Start and End are the segment's original span offsets. They are kept
	// per line even when consecutive lines are rendered as one paragraph, so
	// that search indexing stays line-accurate.
	Start time.Duration
	End   time.Duration

	// Text is the finalised line text: trimmed, sentence-capitalised, and
	// terminally punctuated. Empty for failed segments.
	Text string
}

// Transcript is the immutable result of assembling one run. Persistence
// creates a durable copy but never mutates the in-memory aggregate.
type Transcript struct {
	// ID uniquely identifies this transcript (assigned at assembly).
	ID string

	// Source is the originating recording, as passed to the pipeline.
	Source string

	// Lines are the transcript lines in segment sequence order.
	Lines []TranscriptLine

	// CreatedAt is the assembly timestamp.
	CreatedAt time.Time
}
