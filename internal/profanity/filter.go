// Package profanity censors disallowed words in user-supplied text before it
// is persisted.
package profanity

import "unicode"

// DefaultWords is the word list applied to ingested articles. Order matters:
// an entry that contains a later entry (foda-se / foda) must come first.
var DefaultWords = []string{
	"porra", "caralho", "fodase", "foda-se", "foda", "merda", "puta",
	"arrombado", "cu", "viado", "fdp", "corno", "desgraçado", "idiota",
	"burro", "estupido", "vaca", "vagabundo", "pau", "cacete", "buceta",
}

// DefaultMask replaces every rune of a match except the first.
const DefaultMask = '*'

// Filter masks whole-word, case-insensitive occurrences of a fixed word list.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	words [][]rune
	mask  rune
}

// New builds a filter over words, applied in the given order. Empty entries
// are ignored.
func New(words []string, mask rune) *Filter {
	f := &Filter{mask: mask}
	for _, w := range words {
		if w == "" {
			continue
		}
		f.words = append(f.words, []rune(w))
	}
	return f
}

var defaultFilter = New(DefaultWords, DefaultMask)

// Default returns the filter over DefaultWords.
func Default() *Filter {
	return defaultFilter
}

// Sanitize returns text with every listed word masked. The first rune of a
// match is kept as written; the remaining runes become the mask rune.
func (f *Filter) Sanitize(text string) string {
	if text == "" {
		return text
	}
	out := []rune(text)
	changed := false
	for _, w := range f.words {
		if f.maskWord(out, w) {
			changed = true
		}
	}
	if !changed {
		return text
	}
	return string(out)
}

// SanitizeOptional is Sanitize for optional values: nil stays nil.
func (f *Filter) SanitizeOptional(text *string) *string {
	if text == nil {
		return nil
	}
	s := f.Sanitize(*text)
	return &s
}

// Sanitize applies the default filter.
func Sanitize(text string) string {
	return defaultFilter.Sanitize(text)
}

// SanitizeOptional applies the default filter to an optional value.
func SanitizeOptional(text *string) *string {
	return defaultFilter.SanitizeOptional(text)
}

// maskWord masks non-overlapping occurrences of word in text, scanning left
// to right, and reports whether anything was masked.
func (f *Filter) maskWord(text, word []rune) bool {
	n := len(word)
	masked := false
	for i := 0; i+n <= len(text); {
		if matchAt(text, i, word) && isBoundary(text, i-1) && isBoundary(text, i+n) {
			for j := i + 1; j < i+n; j++ {
				text[j] = f.mask
			}
			masked = true
			i += n
			continue
		}
		i++
	}
	return masked
}

func matchAt(text []rune, at int, word []rune) bool {
	for k, r := range word {
		if !foldEqual(text[at+k], r) {
			return false
		}
	}
	return true
}

// isBoundary reports whether position i is outside text or holds a non-word
// rune.
func isBoundary(text []rune, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	return !isWordRune(text[i])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
