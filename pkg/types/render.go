package types

import (
	"fmt"
	"strings"
)

// String renders the line in the canonical single-line form, e.g.
// "[1.0s - 2.5s] Giam Doc Duc: Xin chào."
func (l TranscriptLine) String() string {
	return fmt.Sprintf("[%.1fs - %.1fs] %s: %s", l.Start.Seconds(), l.End.Seconds(), l.Speaker, l.Text)
}

// Render returns the human-readable transcript text. Consecutive lines from
// the same speaker collapse into a single paragraph spanning from the first
// line's start to the last line's end; lines with empty text (failed
// segments) still extend the paragraph's time range but contribute no words.
// The underlying Lines slice is not modified.
func (t *Transcript) Render() string {
	var b strings.Builder
	for start := 0; start < len(t.Lines); {
		end := start + 1
		for end < len(t.Lines) && t.Lines[end].Speaker == t.Lines[start].Speaker {
			end++
		}
		para := t.Lines[start:end]

		texts := make([]string, 0, len(para))
		for _, l := range para {
			if l.Text != "" {
				texts = append(texts, l.Text)
			}
		}
		if start > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%.1fs - %.1fs] %s: %s",
			para[0].Start.Seconds(),
			para[len(para)-1].End.Seconds(),
			para[0].Speaker,
			strings.Join(texts, " "),
		)
		start = end
	}
	return b.String()
}
