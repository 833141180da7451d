package segment

import (
	"math"

	"github.com/MrWong99/echoscribe/pkg/types"
)

const (
	defaultMatchThreshold  = 0.75
	defaultAmbiguityMargin = 0.05
)

// Match is the outcome of resolving one voice embedding against the
// enrolled speakers.
type Match struct {
	// Speaker is the best-matching enrolled speaker, or nil when no
	// similarity reached the threshold.
	Speaker *types.SpeakerLabel

	// Alternate is the runner-up speaker when the decision was ambiguous
	// (best and second-best similarity within the ambiguity margin).
	Alternate *types.SpeakerLabel

	// Confidence is the match confidence in [0, 1]. For unmatched
	// embeddings it records the best similarity found so near-misses can
	// still be ranked downstream. Ambiguous matches are penalised by how
	// close the runner-up came.
	Confidence float64

	// Matched reports whether Speaker is set.
	Matched bool
}

// Matcher resolves voice embeddings to enrolled speakers by cosine
// similarity. Read-only after construction and safe for concurrent use.
type Matcher struct {
	threshold float64
	margin    float64
}

// MatcherOption is a functional option for configuring a Matcher.
type MatcherOption func(*Matcher)

// WithMatchThreshold sets the minimum cosine similarity for accepting a
// speaker match. Default: 0.75.
func WithMatchThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.threshold = threshold }
}

// WithAmbiguityMargin sets how close the runner-up similarity may come to
// the best before the match is flagged ambiguous and the runner-up is
// reported as an alternate. Default: 0.05.
func WithAmbiguityMargin(margin float64) MatcherOption {
	return func(m *Matcher) { m.margin = margin }
}

// NewMatcher returns a Matcher configured with the supplied options.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		threshold: defaultMatchThreshold,
		margin:    defaultAmbiguityMargin,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match resolves embedding against every known speaker and returns the best
// candidate per the threshold and ambiguity policy. A nil or empty known
// list yields an unmatched result with confidence 0.
func (m *Matcher) Match(embedding []float32, known []*types.SpeakerLabel) Match {
	var (
		best, second       float64
		bestLbl, secondLbl *types.SpeakerLabel
	)

	for _, lbl := range known {
		if lbl == nil || len(lbl.Reference) == 0 {
			continue
		}
		sim := CosineSimilarity(embedding, lbl.Reference)
		switch {
		case bestLbl == nil || sim > best:
			second, secondLbl = best, bestLbl
			best, bestLbl = sim, lbl
		case secondLbl == nil || sim > second:
			second, secondLbl = sim, lbl
		}
	}

	if bestLbl == nil {
		return Match{}
	}
	if best < m.threshold {
		return Match{Confidence: clamp01(best)}
	}

	out := Match{Speaker: bestLbl, Confidence: clamp01(best), Matched: true}
	if secondLbl != nil {
		if diff := best - second; diff < m.margin {
			out.Alternate = secondLbl
			out.Confidence = clamp01(best - (m.margin - diff))
		}
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of differing length or zero magnitude yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
