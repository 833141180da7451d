package segment_test

import (
	"math"
	"testing"

	"github.com/MrWong99/echoscribe/internal/segment"
	"github.com/MrWong99/echoscribe/pkg/types"
)

func labels() []*types.SpeakerLabel {
	return []*types.SpeakerLabel{
		{ID: "spk-a", Reference: []float32{1, 0, 0}},
		{ID: "spk-b", Reference: []float32{0, 1, 0}},
	}
}

// TestMatch_AboveThreshold verifies a clean match.
func TestMatch_AboveThreshold(t *testing.T) {
	m := segment.NewMatcher(segment.WithMatchThreshold(0.75))
	got := m.Match([]float32{0.99, 0.01, 0}, labels())
	if !got.Matched || got.Speaker == nil || got.Speaker.ID != "spk-a" {
		t.Fatalf("Match() = %+v, want matched spk-a", got)
	}
	if got.Alternate != nil {
		t.Errorf("Alternate = %v, want nil for an unambiguous match", got.Alternate)
	}
	if got.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want near 1", got.Confidence)
	}
}

// TestMatch_BelowThresholdKeepsNearMiss verifies that a rejected match still
// reports the best similarity found, so near-misses can be ranked.
func TestMatch_BelowThresholdKeepsNearMiss(t *testing.T) {
	m := segment.NewMatcher(segment.WithMatchThreshold(0.9))
	vec := []float32{1, 1, 0} // ~0.707 similarity to both speakers
	got := m.Match(vec, labels())
	if got.Matched || got.Speaker != nil {
		t.Fatalf("Match() = %+v, want unmatched", got)
	}
	want := 1 / math.Sqrt2
	if math.Abs(got.Confidence-want) > 1e-6 {
		t.Errorf("Confidence = %v, want best near-miss similarity %v", got.Confidence, want)
	}
}

// TestMatch_AmbiguousReportsAlternate verifies the overlap policy: when the
// runner-up is within the ambiguity margin, both candidates are surfaced
// and the confidence is penalised.
func TestMatch_AmbiguousReportsAlternate(t *testing.T) {
	m := segment.NewMatcher(
		segment.WithMatchThreshold(0.5),
		segment.WithAmbiguityMargin(0.1),
	)
	got := m.Match([]float32{1, 0.98, 0}, labels())
	if !got.Matched {
		t.Fatalf("Match() = %+v, want matched", got)
	}
	if got.Alternate == nil {
		t.Fatal("Alternate = nil, want the runner-up speaker")
	}
	if got.Speaker.ID == got.Alternate.ID {
		t.Errorf("Speaker and Alternate are both %q", got.Speaker.ID)
	}
	unambiguous := m.Match([]float32{1, 0, 0}, labels())
	if got.Confidence >= unambiguous.Confidence {
		t.Errorf("ambiguous confidence %v not below unambiguous %v", got.Confidence, unambiguous.Confidence)
	}
}

// TestMatch_EmptyRegistry verifies the zero-speaker edge.
func TestMatch_EmptyRegistry(t *testing.T) {
	m := segment.NewMatcher()
	got := m.Match([]float32{1, 0, 0}, nil)
	if got.Matched || got.Speaker != nil || got.Confidence != 0 {
		t.Errorf("Match() = %+v, want zero-value result", got)
	}
}

// TestCosineSimilarity covers the degenerate vector cases.
func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := segment.CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tc.want)
			}
		})
	}
}
