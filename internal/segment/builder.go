package segment

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
	"github.com/MrWong99/echoscribe/pkg/types"
)

const (
	defaultMergeGap   = 500 * time.Millisecond
	defaultMaxSegment = 30 * time.Second
)

// Builder turns raw diarization turns plus speech-only ranges into the
// final ordered segment sequence. It owns segment production for a run:
// every physical audio region appears in exactly one output segment, output
// is sorted and non-overlapping, and sequence indexes are contiguous and
// gap-free.
//
// Build is a pure function of its inputs given a fixed configuration; the
// only side effects are log lines for degraded speaker resolution.
type Builder struct {
	embedder speakerembed.Embedder
	matcher  *Matcher
	registry *Registry

	mergeGap   time.Duration
	maxSegment time.Duration
}

// BuilderOption is a functional option for configuring a Builder.
type BuilderOption func(*Builder)

// WithMergeGap sets the minimum silence duration between two same-speaker
// ranges. Gaps shorter than this merge the ranges into one segment, which
// bounds fragmentation from diarizer noise. Default: 500ms.
func WithMergeGap(d time.Duration) BuilderOption {
	return func(b *Builder) { b.mergeGap = d }
}

// WithMaxSegment sets the maximum segment duration. Longer merged ranges
// are split at the nearest interior silence point, or hard-split when none
// exists, so that every segment respects the downstream ASR chunk limit.
// Default: 30s.
func WithMaxSegment(d time.Duration) BuilderOption {
	return func(b *Builder) { b.maxSegment = d }
}

// NewBuilder returns a Builder using embedder for per-range voice
// embeddings, matcher for speaker resolution, and registry for the enrolled
// speaker set.
func NewBuilder(embedder speakerembed.Embedder, matcher *Matcher, registry *Registry, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:   embedder,
		matcher:    matcher,
		registry:   registry,
		mergeGap:   defaultMergeGap,
		maxSegment: defaultMaxSegment,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// rng is a working range flowing through the build stages.
type rng struct {
	span  types.AudioSpan
	order int // original diarization turn index, for stable tie-breaks

	speaker    *types.SpeakerLabel
	alternate  *types.SpeakerLabel
	confidence float64
	unknown    bool // degraded range; speaker resolution was skipped
}

// speakerKey returns the merge identity of a range: matched ranges merge by
// speaker ID, unresolved ranges merge with each other.
func (r *rng) speakerKey() string {
	if r.speaker == nil {
		return ""
	}
	return r.speaker.ID
}

// Build produces the ordered segment sequence for one recording.
//
// Degradation rules: zero speech ranges yield an empty result without
// error. Empty diarization input (including a diarizer that reported
// [diarize.ErrModelUnavailable] upstream and was mapped to zero turns)
// yields unknown-speaker segments spanning all detected speech. A failed
// embedding degrades that range to the unknown speaker with confidence 0.
func (b *Builder) Build(ctx context.Context, clip *audio.Clip, source string, turns []diarize.Turn, speech []types.AudioSpan) ([]types.Segment, error) {
	if len(speech) == 0 {
		return nil, nil
	}

	ranges := b.intersect(turns, speech, source)
	for i := range ranges {
		if !ranges[i].unknown {
			b.resolveSpeaker(ctx, clip, &ranges[i])
		}
	}

	merged := b.merge(ranges)
	split := b.split(merged, speech)

	sort.SliceStable(split, func(i, j int) bool {
		return split[i].span.Start < split[j].span.Start
	})

	segments := make([]types.Segment, len(split))
	for i, r := range split {
		segments[i] = types.Segment{
			Span:       r.span,
			Speaker:    r.speaker,
			Alternate:  r.alternate,
			Confidence: r.confidence,
			Index:      i,
		}
	}
	return segments, nil
}

// intersect clips overlapping turns against each other (earlier turn wins),
// then intersects every turn with the speech ranges, dropping sub-ranges
// with zero speech overlap. With no turns at all it falls back to a single
// synthetic unknown turn covering all detected speech.
func (b *Builder) intersect(turns []diarize.Turn, speech []types.AudioSpan, source string) []rng {
	if len(turns) == 0 {
		return []rng{{
			span: types.AudioSpan{
				Start:  speech[0].Start,
				End:    speech[len(speech)-1].End,
				Source: source,
			},
			unknown: true,
		}}
	}

	var out []rng
	cursor := time.Duration(-1)
	for i, turn := range turns {
		start, end := turn.Start, turn.End
		if start < cursor {
			start = cursor
		}
		if end <= start {
			continue
		}
		cursor = end

		for _, sp := range speech {
			s, e := maxDur(start, sp.Start), minDur(end, sp.End)
			if e <= s {
				continue
			}
			out = append(out, rng{
				span:  types.AudioSpan{Start: s, End: e, Source: source},
				order: i,
			})
		}
	}
	return out
}

// resolveSpeaker embeds the range's audio and matches it against the
// registry. Any failure degrades to the unknown speaker.
func (b *Builder) resolveSpeaker(ctx context.Context, clip *audio.Clip, r *rng) {
	if clip == nil || b.registry == nil || b.registry.Len() == 0 {
		r.unknown = true
		return
	}

	vec, err := b.embedder.Embed(ctx, clip.Slice(r.span.Start, r.span.End), clip.SampleRate)
	if err != nil {
		slog.Warn("segment: speaker embedding failed, degrading to unknown",
			"source", r.span.Source,
			"start", r.span.Start,
			"error", err,
		)
		r.unknown = true
		return
	}

	m := b.matcher.Match(vec, b.registry.Labels())
	r.speaker = m.Speaker
	r.alternate = m.Alternate
	r.confidence = m.Confidence
}

// merge collapses adjacent same-speaker ranges separated by less than the
// configured merge gap.
func (b *Builder) merge(ranges []rng) []rng {
	if len(ranges) == 0 {
		return nil
	}
	out := ranges[:1:1]
	for _, r := range ranges[1:] {
		cur := &out[len(out)-1]
		gap := r.span.Start - cur.span.End
		if r.speakerKey() == cur.speakerKey() && gap < b.mergeGap {
			cur.span.End = r.span.End
			// Conservative merged confidence: the weaker of the two.
			if r.confidence < cur.confidence {
				cur.confidence = r.confidence
			}
			if cur.alternate == nil {
				cur.alternate = r.alternate
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// split cuts every range longer than the max segment duration. The cut is
// placed at the latest silence gap that keeps the head piece within the
// limit; the tail then resumes at the next speech onset, so the silence
// itself is dropped. Without an interior gap the range is hard-split at the
// limit.
func (b *Builder) split(ranges []rng, speech []types.AudioSpan) []rng {
	var out []rng
	for _, r := range ranges {
		for r.span.Duration() > b.maxSegment {
			limit := r.span.Start + b.maxSegment
			cutEnd, cutResume := r.span.Start, r.span.Start

			// Latest speech gap starting after the range start and ending
			// at or before the limit.
			for i := 0; i+1 < len(speech); i++ {
				gapStart, gapEnd := speech[i].End, speech[i+1].Start
				if gapStart > r.span.Start && gapStart <= limit && gapEnd < r.span.End {
					cutEnd, cutResume = gapStart, gapEnd
				}
				if gapStart > limit {
					break
				}
			}
			if cutEnd == r.span.Start {
				cutEnd, cutResume = limit, limit
			}

			head := r
			head.span.End = cutEnd
			out = append(out, head)
			r.span.Start = cutResume
		}
		if r.span.Duration() > 0 {
			out = append(out, r)
		}
	}
	return out
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDur(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
