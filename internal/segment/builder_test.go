package segment_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/echoscribe/internal/segment"
	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
	embedmock "github.com/MrWong99/echoscribe/pkg/capability/speakerembed/mock"
	"github.com/MrWong99/echoscribe/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

const testRate = 16000

// testClip returns a silent clip of the given duration; builder tests drive
// speaker resolution through the mock embedder, not through audio content.
func testClip(d time.Duration) *audio.Clip {
	samples := int(d / time.Second * testRate)
	if d%time.Second != 0 {
		samples = int(int64(d) * testRate / int64(time.Second))
	}
	return &audio.Clip{PCM: make([]byte, samples*2), SampleRate: testRate}
}

func spans(source string, pairs ...time.Duration) []types.AudioSpan {
	out := make([]types.AudioSpan, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, types.AudioSpan{Start: pairs[i], End: pairs[i+1], Source: source})
	}
	return out
}

// testRegistry enrolls two speakers with orthogonal reference vectors so
// that the mock embedder can steer matches via the returned vector.
func testRegistry(t *testing.T) *segment.Registry {
	t.Helper()
	reg, err := segment.NewRegistry([]*types.SpeakerLabel{
		{ID: "spk-a", DisplayName: "Anh", Reference: []float32{1, 0, 0}},
		{ID: "spk-b", DisplayName: "Bình", Reference: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

// constEmbedder returns the same vector for every range, steering all
// matches toward whichever enrolled speaker that vector is closest to.
func constEmbedder(vec []float32) *embedmock.Embedder {
	return &embedmock.Embedder{EmbedResult: vec, DimensionsValue: len(vec)}
}

func newBuilder(e speakerembed.Embedder, reg *segment.Registry, opts ...segment.BuilderOption) *segment.Builder {
	return segment.NewBuilder(e, segment.NewMatcher(), reg, opts...)
}

func checkInvariants(t *testing.T, segs []types.Segment) {
	t.Helper()
	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has Index %d, want contiguous gap-free indexes", i, s.Index)
		}
		if s.Span.Start >= s.Span.End {
			t.Errorf("segment %d has invalid span [%v, %v)", i, s.Span.Start, s.Span.End)
		}
		if i > 0 && segs[i-1].Span.End > s.Span.Start {
			t.Errorf("segments %d and %d overlap: %v > %v", i-1, i, segs[i-1].Span.End, s.Span.Start)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

// TestBuild_IntersectsTurnsWithSpeech verifies that diarization ranges are
// clipped to speech and pure-silence diarization output is dropped.
func TestBuild_IntersectsTurnsWithSpeech(t *testing.T) {
	clip := testClip(20 * time.Second)
	speech := spans("a.wav", 1*time.Second, 4*time.Second, 10*time.Second, 12*time.Second)
	turns := []diarize.Turn{
		{Start: 0, End: 5 * time.Second, ClusterID: "SPEAKER_01"},
		// Entirely inside the 4s–10s silence: misclassified by the diarizer.
		{Start: 5 * time.Second, End: 9 * time.Second, ClusterID: "SPEAKER_02"},
		{Start: 9 * time.Second, End: 13 * time.Second, ClusterID: "SPEAKER_01"},
	}

	b := newBuilder(constEmbedder([]float32{1, 0, 0}), testRegistry(t))
	segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkInvariants(t, segs)

	if len(segs) != 2 {
		t.Fatalf("len(segments) = %d, want 2 (silence-only turn dropped)", len(segs))
	}
	if segs[0].Span.Start != 1*time.Second || segs[0].Span.End != 4*time.Second {
		t.Errorf("segment 0 span = [%v, %v), want [1s, 4s)", segs[0].Span.Start, segs[0].Span.End)
	}
	if segs[1].Span.Start != 10*time.Second || segs[1].Span.End != 12*time.Second {
		t.Errorf("segment 1 span = [%v, %v), want [10s, 12s)", segs[1].Span.Start, segs[1].Span.End)
	}
}

// TestBuild_MergeGapPolicy verifies the merge boundary: same-speaker ranges
// below the merge gap collapse, at or above it they stay separate.
func TestBuild_MergeGapPolicy(t *testing.T) {
	clip := testClip(30 * time.Second)
	b := newBuilder(constEmbedder([]float32{1, 0, 0}), testRegistry(t),
		segment.WithMergeGap(time.Second))

	t.Run("below gap merges", func(t *testing.T) {
		speech := spans("a.wav",
			0, 2*time.Second,
			2500*time.Millisecond, 4*time.Second) // 500ms gap < 1s
		turns := []diarize.Turn{
			{Start: 0, End: 2 * time.Second, ClusterID: "S1"},
			{Start: 2500 * time.Millisecond, End: 4 * time.Second, ClusterID: "S1"},
		}
		segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		checkInvariants(t, segs)
		if len(segs) != 1 {
			t.Fatalf("len(segments) = %d, want 1 merged segment", len(segs))
		}
		if segs[0].Span.Start != 0 || segs[0].Span.End != 4*time.Second {
			t.Errorf("merged span = [%v, %v), want [0s, 4s)", segs[0].Span.Start, segs[0].Span.End)
		}
	})

	t.Run("above gap stays separate", func(t *testing.T) {
		speech := spans("a.wav",
			0, 2*time.Second,
			3500*time.Millisecond, 5*time.Second) // 1.5s gap > 1s
		turns := []diarize.Turn{
			{Start: 0, End: 2 * time.Second, ClusterID: "S1"},
			{Start: 3500 * time.Millisecond, End: 5 * time.Second, ClusterID: "S1"},
		}
		segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		checkInvariants(t, segs)
		if len(segs) != 2 {
			t.Fatalf("len(segments) = %d, want 2 separate segments", len(segs))
		}
	})
}

// TestBuild_DifferentSpeakersNeverMerge verifies the speaker identity part
// of the merge predicate.
func TestBuild_DifferentSpeakersNeverMerge(t *testing.T) {
	clip := testClip(10 * time.Second)
	speech := spans("a.wav", 0, 2*time.Second, 2100*time.Millisecond, 4*time.Second)
	turns := []diarize.Turn{
		{Start: 0, End: 2 * time.Second, ClusterID: "S1"},
		{Start: 2100 * time.Millisecond, End: 4 * time.Second, ClusterID: "S2"},
	}

	// Alternate vectors per call: first range matches spk-a, second spk-b.
	call := 0
	emb := &embedmock.Embedder{
		EmbedFunc: func(pcm []byte, rate int) ([]float32, error) {
			call++
			if call == 1 {
				return []float32{1, 0, 0}, nil
			}
			return []float32{0, 1, 0}, nil
		},
	}

	b := newBuilder(emb, testRegistry(t), segment.WithMergeGap(time.Second))
	segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkInvariants(t, segs)
	if len(segs) != 2 {
		t.Fatalf("len(segments) = %d, want 2 (different speakers)", len(segs))
	}
	if segs[0].Speaker == nil || segs[0].Speaker.ID != "spk-a" {
		t.Errorf("segment 0 speaker = %v, want spk-a", segs[0].Speaker)
	}
	if segs[1].Speaker == nil || segs[1].Speaker.ID != "spk-b" {
		t.Errorf("segment 1 speaker = %v, want spk-b", segs[1].Speaker)
	}
}

// TestBuild_SplitsOversizedAtSilence verifies the max-duration split rule:
// the cut lands on the interior silence gap, not at the hard limit.
func TestBuild_SplitsOversizedAtSilence(t *testing.T) {
	clip := testClip(60 * time.Second)
	// One long same-speaker stretch with a silence gap at 8s–8.4s; the
	// 400ms gap is below the merge gap so the ranges merge first.
	speech := spans("a.wav",
		0, 8*time.Second,
		8400*time.Millisecond, 14*time.Second)
	turns := []diarize.Turn{{Start: 0, End: 14 * time.Second, ClusterID: "S1"}}

	b := newBuilder(constEmbedder([]float32{1, 0, 0}), testRegistry(t),
		segment.WithMergeGap(500*time.Millisecond),
		segment.WithMaxSegment(10*time.Second))
	segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkInvariants(t, segs)

	if len(segs) != 2 {
		t.Fatalf("len(segments) = %d, want 2 after split", len(segs))
	}
	if segs[0].Span.End != 8*time.Second {
		t.Errorf("split point = %v, want 8s (the silence gap)", segs[0].Span.End)
	}
	if segs[1].Span.Start != 8400*time.Millisecond {
		t.Errorf("resume point = %v, want 8.4s (after the gap)", segs[1].Span.Start)
	}
	for i, s := range segs {
		if s.Span.Duration() > 10*time.Second {
			t.Errorf("segment %d duration %v exceeds the 10s limit", i, s.Span.Duration())
		}
	}
}

// TestBuild_HardSplitWithoutSilence verifies the fallback when no interior
// silence point exists.
func TestBuild_HardSplitWithoutSilence(t *testing.T) {
	clip := testClip(30 * time.Second)
	speech := spans("a.wav", 0, 25*time.Second)
	turns := []diarize.Turn{{Start: 0, End: 25 * time.Second, ClusterID: "S1"}}

	b := newBuilder(constEmbedder([]float32{1, 0, 0}), testRegistry(t),
		segment.WithMaxSegment(10*time.Second))
	segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkInvariants(t, segs)

	if len(segs) != 3 {
		t.Fatalf("len(segments) = %d, want 3 hard-split pieces", len(segs))
	}
	wantBounds := []time.Duration{10 * time.Second, 20 * time.Second, 25 * time.Second}
	for i, want := range wantBounds {
		if segs[i].Span.End != want {
			t.Errorf("segment %d end = %v, want %v", i, segs[i].Span.End, want)
		}
	}
}

// TestBuild_EmptyDiarization verifies graceful degradation: all speech is
// covered by unknown-speaker segments instead of failing.
func TestBuild_EmptyDiarization(t *testing.T) {
	clip := testClip(20 * time.Second)
	speech := spans("a.wav", 1*time.Second, 5*time.Second, 8*time.Second, 12*time.Second)

	b := newBuilder(constEmbedder([]float32{1, 0, 0}), testRegistry(t))
	segs, err := b.Build(context.Background(), clip, "a.wav", nil, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkInvariants(t, segs)

	if len(segs) == 0 {
		t.Fatal("expected unknown segments covering detected speech, got none")
	}
	for i, s := range segs {
		if s.Speaker != nil {
			t.Errorf("segment %d speaker = %q, want unknown (nil)", i, s.Speaker.ID)
		}
		if s.Confidence != 0 {
			t.Errorf("segment %d confidence = %v, want 0", i, s.Confidence)
		}
	}
	if segs[0].Span.Start != 1*time.Second {
		t.Errorf("first segment start = %v, want 1s", segs[0].Span.Start)
	}
	if segs[len(segs)-1].Span.End != 12*time.Second {
		t.Errorf("last segment end = %v, want 12s", segs[len(segs)-1].Span.End)
	}
}

// TestBuild_ZeroSpeech verifies that no speech is an empty result, not an
// error.
func TestBuild_ZeroSpeech(t *testing.T) {
	b := newBuilder(constEmbedder([]float32{1, 0, 0}), testRegistry(t))
	segs, err := b.Build(context.Background(), testClip(time.Second), "a.wav",
		[]diarize.Turn{{Start: 0, End: time.Second, ClusterID: "S1"}}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("len(segments) = %d, want 0", len(segs))
	}
}

// TestBuild_EmbeddingFailureDegrades verifies that a failing embedding
// model produces unknown-speaker segments rather than aborting the build.
func TestBuild_EmbeddingFailureDegrades(t *testing.T) {
	clip := testClip(10 * time.Second)
	speech := spans("a.wav", 0, 4*time.Second)
	turns := []diarize.Turn{{Start: 0, End: 4 * time.Second, ClusterID: "S1"}}

	emb := &embedmock.Embedder{EmbedErr: speakerembed.ErrModelUnavailable}
	b := newBuilder(emb, testRegistry(t))
	segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("len(segments) = %d, want 1", len(segs))
	}
	if segs[0].Speaker != nil {
		t.Errorf("speaker = %q, want unknown (nil)", segs[0].Speaker.ID)
	}
	if segs[0].Confidence != 0 {
		t.Errorf("confidence = %v, want 0", segs[0].Confidence)
	}
}

// TestBuild_OverlappingTurnsClipped verifies that overlapping diarization
// turns are clipped to the earlier turn so output spans never overlap.
func TestBuild_OverlappingTurnsClipped(t *testing.T) {
	clip := testClip(10 * time.Second)
	speech := spans("a.wav", 0, 8*time.Second)
	turns := []diarize.Turn{
		{Start: 0, End: 5 * time.Second, ClusterID: "S1"},
		{Start: 3 * time.Second, End: 8 * time.Second, ClusterID: "S2"},
	}

	call := 0
	emb := &embedmock.Embedder{
		EmbedFunc: func(pcm []byte, rate int) ([]float32, error) {
			call++
			if call == 1 {
				return []float32{1, 0, 0}, nil
			}
			return []float32{0, 1, 0}, nil
		},
	}

	b := newBuilder(emb, testRegistry(t))
	segs, err := b.Build(context.Background(), clip, "a.wav", turns, speech)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkInvariants(t, segs)
	if len(segs) != 2 {
		t.Fatalf("len(segments) = %d, want 2", len(segs))
	}
	if segs[0].Span.End != 5*time.Second || segs[1].Span.Start != 5*time.Second {
		t.Errorf("overlap not clipped to earlier turn: [%v, %v) then [%v, %v)",
			segs[0].Span.Start, segs[0].Span.End, segs[1].Span.Start, segs[1].Span.End)
	}
}
