// Package assemble joins matched segments with their transcription results
// into a finalised [types.Transcript].
//
// Assembly is deterministic over its inputs: given the same segments and
// results, the produced line sequence is byte-identical. Only the transcript
// ID and creation timestamp come from injectable sources, so tests can pin
// them.
package assemble

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MrWong99/echoscribe/pkg/types"
)

// Assembler builds transcripts from segment/result pairs.
type Assembler struct {
	newID func() string
	now   func() time.Time
}

// Option is a functional option for configuring an Assembler.
type Option func(*Assembler)

// WithIDSource overrides the transcript ID generator. Default: random UUIDs.
func WithIDSource(f func() string) Option {
	return func(a *Assembler) { a.newID = f }
}

// WithClock overrides the creation-timestamp source. Default: time.Now.
func WithClock(f func() time.Time) Option {
	return func(a *Assembler) { a.now = f }
}

// New returns an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{newID: uuid.NewString, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble pairs each segment with its transcription result by sequence
// index and emits one transcript line per segment, in index order. Failed
// results keep their line with empty text so the timeline stays complete.
//
// Exactly one result must exist per segment index; a missing or duplicate
// result is an error because it means the scheduler contract was broken.
func (a *Assembler) Assemble(source string, segments []types.Segment, results []types.TranscriptionResult) (*types.Transcript, error) {
	byIndex := make(map[int]types.TranscriptionResult, len(results))
	for _, r := range results {
		if _, dup := byIndex[r.Index]; dup {
			return nil, fmt.Errorf("assemble: duplicate result for segment %d", r.Index)
		}
		byIndex[r.Index] = r
	}

	lines := make([]types.TranscriptLine, 0, len(segments))
	for _, seg := range segments {
		res, ok := byIndex[seg.Index]
		if !ok {
			return nil, fmt.Errorf("assemble: no result for segment %d", seg.Index)
		}
		text := ""
		if !res.Failed {
			text = normalize(res.Text)
		}
		lines = append(lines, types.TranscriptLine{
			Speaker: seg.Speaker.Display(),
			Start:   seg.Span.Start,
			End:     seg.Span.End,
			Text:    text,
		})
	}

	return &types.Transcript{
		ID:        a.newID(),
		Source:    source,
		Lines:     lines,
		CreatedAt: a.now(),
	}, nil
}

// normalize finalises raw ASR text: trims surrounding whitespace,
// capitalises the first letter, and appends a period when the text lacks
// terminal punctuation. Empty input stays empty.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(first)) + s[size:]
	switch last, _ := utf8.DecodeLastRuneInString(s); last {
	case '.', '!', '?', '…':
	default:
		s += "."
	}
	return s
}
