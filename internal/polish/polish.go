// Package polish implements an optional language-model pass that corrects
// obvious ASR mishearings in an assembled transcript.
//
// The [Polisher] sends the transcript's line texts to an LLM with a
// conservative system prompt and expects a structured JSON response with the
// corrected lines and an itemised list of substitutions. It runs strictly
// after assembly and returns a new transcript, so the assembly stage stays
// deterministic. When the LLM response cannot be parsed, the polisher
// returns the original transcript unchanged rather than surfacing an error.
package polish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/echoscribe/pkg/types"
)

const defaultTemperature = 0.1

// systemPrompt instructs the model to make only conservative fixes.
const systemPrompt = `You are a transcript correction assistant for recorded Vietnamese lessons.

Your task: fix obvious speech-recognition errors in the provided transcript lines.

Rules:
- ONLY correct words that are clearly mis-recognised (homophones, broken diacritics, garbled names).
- Do NOT rephrase, summarise, translate, or change the meaning of any line.
- Do NOT merge, split, reorder, or drop lines — the output must contain exactly one corrected line per input line, in the same order.
- Be conservative: when in doubt, leave the line unchanged.

The user message is a JSON array of line texts. Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "lines": ["<corrected line 1>", "<corrected line 2>", ...],
  "corrections": [
    {"original": "<original word>", "corrected": "<corrected word>", "confidence": <0.0-1.0>}
  ]
}

If no corrections are needed, return the input lines verbatim and an empty corrections array.`

// Correction captures a single word-level substitution produced by the LLM.
type Correction struct {
	// Original is the word as it appeared in the input transcript.
	Original string

	// Corrected is the replacement suggested by the LLM.
	Corrected string

	// Confidence is the LLM's reported confidence for this substitution (0.0–1.0).
	Confidence float64
}

// llmResponse is the expected JSON structure returned by the LLM.
type llmResponse struct {
	Lines       []string `json:"lines"`
	Corrections []struct {
		Original   string  `json:"original"`
		Corrected  string  `json:"corrected"`
		Confidence float64 `json:"confidence"`
	} `json:"corrections"`
}

// Completer is the minimal LLM surface the polisher needs: one
// system-plus-user completion returning the raw response text.
// [AnyLLM] satisfies this interface.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Option is a functional option for configuring a [Polisher].
type Option func(*Polisher)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic corrections. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(p *Polisher) {
		p.temperature = temp
	}
}

// Polisher corrects ASR mishearings in assembled transcripts.
// It is safe for concurrent use.
type Polisher struct {
	completer   Completer
	temperature float64
}

// New returns a Polisher backed by the given Completer.
func New(completer Completer, opts ...Option) *Polisher {
	p := &Polisher{
		completer:   completer,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Polish sends t's line texts to the LLM and returns a new transcript with
// the corrected texts applied, together with the substitution list. The
// input transcript is never modified. Empty (failed-segment) lines are sent
// through and must come back empty; a response with the wrong line count or
// unparseable JSON degrades to the original transcript with a nil
// corrections slice and a nil error.
func (p *Polisher) Polish(ctx context.Context, t *types.Transcript) (*types.Transcript, []Correction, error) {
	if len(t.Lines) == 0 {
		return t, nil, nil
	}

	texts := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		texts[i] = l.Text
	}
	user, err := json.Marshal(texts)
	if err != nil {
		return nil, nil, fmt.Errorf("polish: marshal lines: %w", err)
	}

	raw, err := p.completer.Complete(ctx, systemPrompt, string(user), p.temperature)
	if err != nil {
		return nil, nil, fmt.Errorf("polish: completion: %w", err)
	}

	resp, ok := parseResponse(raw)
	if !ok || len(resp.Lines) != len(t.Lines) {
		slog.Warn("polish: unusable LLM response, keeping transcript unchanged",
			"transcript", t.ID,
			"lines_in", len(t.Lines),
			"lines_out", len(resp.Lines),
		)
		return t, nil, nil
	}

	out := &types.Transcript{
		ID:        t.ID,
		Source:    t.Source,
		CreatedAt: t.CreatedAt,
		Lines:     make([]types.TranscriptLine, len(t.Lines)),
	}
	copy(out.Lines, t.Lines)
	for i := range out.Lines {
		// Failed-segment lines stay empty regardless of what the model says.
		if out.Lines[i].Text != "" {
			out.Lines[i].Text = resp.Lines[i]
		}
	}

	corrections := make([]Correction, 0, len(resp.Corrections))
	for _, c := range resp.Corrections {
		corrections = append(corrections, Correction(c))
	}
	return out, corrections, nil
}

// parseResponse extracts the JSON object from raw, tolerating surrounding
// prose or markdown fences some models insist on adding.
func parseResponse(raw string) (llmResponse, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return llmResponse{}, false
	}
	var resp llmResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return llmResponse{}, false
	}
	return resp, true
}
