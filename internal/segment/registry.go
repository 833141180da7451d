package segment

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
	"github.com/MrWong99/echoscribe/pkg/types"
)

// resolveThreshold is the minimum Jaro-Winkler similarity for fuzzy
// display-name resolution.
const resolveThreshold = 0.85

// ReferenceSample is one enrollment input: a known speaker plus a clean
// audio sample of their voice.
type ReferenceSample struct {
	// ID is the stable speaker identifier.
	ID string

	// DisplayName is the human-readable name shown in transcripts.
	DisplayName string

	// PCM is a mono 16-bit little-endian voice sample.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int
}

// Registry holds the enrolled speaker labels for the process. It is
// populated once at pipeline start and read-only afterwards, which is what
// makes it safe to share across concurrent pipeline runs.
type Registry struct {
	labels []*types.SpeakerLabel
	byID   map[string]*types.SpeakerLabel
}

// NewRegistry builds a registry from pre-embedded labels. IDs must be
// unique and every reference vector must have the same dimensionality.
func NewRegistry(labels []*types.SpeakerLabel) (*Registry, error) {
	byID := make(map[string]*types.SpeakerLabel, len(labels))
	dims := -1
	for _, lbl := range labels {
		if lbl.ID == "" {
			return nil, fmt.Errorf("segment: registry label %q has empty ID", lbl.DisplayName)
		}
		if _, ok := byID[lbl.ID]; ok {
			return nil, fmt.Errorf("segment: duplicate speaker ID %q", lbl.ID)
		}
		if dims == -1 {
			dims = len(lbl.Reference)
		} else if len(lbl.Reference) != dims {
			return nil, fmt.Errorf("segment: speaker %q reference has %d dimensions, want %d", lbl.ID, len(lbl.Reference), dims)
		}
		byID[lbl.ID] = lbl
	}
	return &Registry{labels: labels, byID: byID}, nil
}

// Enroll embeds every reference sample through embedder and builds the
// registry from the results. A sample whose embedding fails aborts
// enrollment — an incomplete registry would silently misattribute speech.
func Enroll(ctx context.Context, embedder speakerembed.Embedder, samples []ReferenceSample) (*Registry, error) {
	labels := make([]*types.SpeakerLabel, 0, len(samples))
	for _, s := range samples {
		vec, err := embedder.Embed(ctx, s.PCM, s.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("segment: enroll speaker %q: %w", s.ID, err)
		}
		labels = append(labels, &types.SpeakerLabel{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Reference:   vec,
		})
	}
	return NewRegistry(labels)
}

// Labels returns the enrolled labels. The returned slice must be treated as
// read-only.
func (r *Registry) Labels() []*types.SpeakerLabel { return r.labels }

// Lookup returns the label with the given ID, or nil.
func (r *Registry) Lookup(id string) *types.SpeakerLabel { return r.byID[id] }

// Len returns the number of enrolled speakers.
func (r *Registry) Len() int { return len(r.labels) }

// Resolve finds the enrolled speaker whose display name (or ID) best
// matches name, using case-insensitive Jaro-Winkler similarity. Used by the
// search surface so that a query for "giam doc" finds "Giám Đốc Đức" after
// that name went through sanitisation elsewhere.
//
// Returns the matched label, the similarity score, and whether the score
// reached the resolution threshold.
func (r *Registry) Resolve(name string) (*types.SpeakerLabel, float64, bool) {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return nil, 0, false
	}

	var (
		best    float64
		bestLbl *types.SpeakerLabel
	)
	for _, lbl := range r.labels {
		// Exact ID match short-circuits.
		if strings.EqualFold(lbl.ID, query) {
			return lbl, 1, true
		}
		score := matchr.JaroWinkler(query, strings.ToLower(lbl.Display()), false)
		if s := matchr.JaroWinkler(query, strings.ToLower(lbl.ID), false); s > score {
			score = s
		}
		if score > best {
			best, bestLbl = score, lbl
		}
	}

	if bestLbl == nil || best < resolveThreshold {
		return nil, best, false
	}
	return bestLbl, best, true
}
