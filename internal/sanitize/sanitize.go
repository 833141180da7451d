// Package sanitize maps arbitrary Unicode storage paths to a storage-safe
// ASCII form.
//
// Object stores reject keys with characters outside a narrow allow-set, and
// the recordings this system ingests routinely carry Vietnamese display
// names ("Giám Đốc Đức.wav") and free-form punctuation. Sanitisation is
// applied independently to each path component and rejoined with "/", so
// folder hierarchy depth is preserved.
//
// Per component, in order:
//
//  1. Fold Vietnamese diacritic letters to their base Latin letter. This is
//     table-driven rather than Unicode-decomposition based because Đ/đ is a
//     distinct letter, not a base letter plus combining mark, and would
//     survive generic mark stripping.
//  2. Replace every whitespace run with a single underscore.
//  3. Replace every character outside {a–z, A–Z, 0–9, '.', '_', '-'} with an
//     underscore.
//  4. Collapse underscore runs.
//  5. Strip trailing dots, then leading/trailing underscores.
//
// The final ".ext" suffix of a component is preserved verbatim (case and
// content) when the extension is on the safe list; only the base name before
// the last dot is rule-processed. Sanitisation is idempotent and total: it
// never fails, and a non-empty component that sanitises to nothing becomes
// the placeholder "_". Empty components produced by doubled separators are
// dropped.
package sanitize

import "strings"

// Placeholder replaces a non-empty path component whose every character was
// stripped by the sanitisation rules (e.g. an all-emoji folder name).
const Placeholder = "_"

// DefaultExtensions is the default safe-extension allow list. Matching is
// case-insensitive; the original casing is preserved in the output.
var DefaultExtensions = []string{
	"wav", "mp3", "m4a", "flac", "ogg", "opus",
	"txt", "json", "srt", "vtt", "md",
}

// foldGroups maps each base Latin letter to every Vietnamese diacritic form
// that folds to it, including the standalone Đ/đ letters.
var foldGroups = map[rune]string{
	'a': "áàảãạâấầẩẫậăắằẳẵặ",
	'A': "ÁÀẢÃẠÂẤẦẨẪẬĂẮẰẲẴẶ",
	'e': "éèẻẽẹêếềểễệ",
	'E': "ÉÈẺẼẸÊẾỀỂỄỆ",
	'i': "íìỉĩị",
	'I': "ÍÌỈĨỊ",
	'o': "óòỏõọôốồổỗộơớờởỡợ",
	'O': "ÓÒỎÕỌÔỐỒỔỖỘƠỚỜỞỠỢ",
	'u': "úùủũụưứừửữự",
	'U': "ÚÙỦŨỤƯỨỪỬỮỰ",
	'y': "ýỳỷỹỵ",
	'Y': "ÝỲỶỸỴ",
	'd': "đ",
	'D': "Đ",
}

// fold is the rune-level diacritic table derived from foldGroups.
var fold = func() map[rune]rune {
	m := make(map[rune]rune, 160)
	for base, variants := range foldGroups {
		for _, r := range variants {
			m[r] = base
		}
	}
	return m
}()

// Sanitizer applies the sanitisation rules with a configurable extension
// allow list. The zero value is not usable; obtain one via New. A Sanitizer
// is read-only after construction and safe for concurrent use.
type Sanitizer struct {
	extensions map[string]struct{}
}

// Option is a functional option for configuring a Sanitizer.
type Option func(*Sanitizer)

// WithExtensions replaces the safe-extension allow list. Entries are matched
// case-insensitively and must not include the leading dot.
func WithExtensions(exts []string) Option {
	return func(s *Sanitizer) {
		s.extensions = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			s.extensions[strings.ToLower(e)] = struct{}{}
		}
	}
}

// New returns a Sanitizer configured with the supplied options. Without
// options the DefaultExtensions list applies.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{}
	WithExtensions(DefaultExtensions)(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// defaultSanitizer backs the package-level Sanitize convenience function.
var defaultSanitizer = New()

// Sanitize maps path to its storage-safe form using the default extension
// allow list. See the package documentation for the rules.
func Sanitize(path string) string { return defaultSanitizer.Sanitize(path) }

// Sanitize maps path to its storage-safe form.
func (s *Sanitizer) Sanitize(path string) string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, s.component(part))
	}
	return strings.Join(out, "/")
}

// component sanitises a single path component.
func (s *Sanitizer) component(name string) string {
	base, ext := name, ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		if _, ok := s.extensions[strings.ToLower(name[idx+1:])]; ok {
			base, ext = name[:idx], name[idx:]
		}
	}

	base = cleanBase(base)
	if base == "" {
		base = Placeholder
	}
	return base + ext
}

// cleanBase applies the ordered character rules to a base name.
func cleanBase(base string) string {
	var b strings.Builder
	b.Grow(len(base))

	lastUnderscore := false
	for _, r := range base {
		if folded, ok := fold[r]; ok {
			r = folded
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			// Whitespace and every other disallowed character become a
			// single underscore; runs collapse here rather than in a
			// second pass.
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	// Trailing dots and surrounding underscores can expose one another
	// ("file_._" → "file_." → "file_"), so trim until stable to keep the
	// idempotency guarantee.
	out := b.String()
	for {
		trimmed := strings.TrimRight(out, ".")
		trimmed = strings.Trim(trimmed, "_")
		if trimmed == out {
			return out
		}
		out = trimmed
	}
}
