// Package transcript normalizes recognized speech segments into one line of
// symptom text.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls transcript normalization.
type Options struct {
	CapitalizeSentences bool
}

var (
	// Recognizers emit bracketed annotations for silence, noise and music.
	nonSpeechPattern = regexp.MustCompile(`(?i)[\[(]\s*(blank_audio|silence|inaudible|no speech|noise|music|applause|laughter|unintelligible)\s*[\])]`)
	pronounIPattern  = regexp.MustCompile(`\bi('(m|d|ll|ve|re|s))?\b`)
)

// Assemble joins final segments, drops non-speech annotations, and collapses
// whitespace. An empty result means nothing intelligible was said.
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}

	joined := nonSpeechPattern.ReplaceAllString(strings.Join(segments, " "), " ")
	normalized := strings.Join(strings.Fields(joined), " ")
	if normalized == "" || !hasWordContent(normalized) {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalize(normalized)
	}
	return normalized
}

// IsNonSpeech reports whether text carries no recognizable words.
func IsNonSpeech(text string) bool {
	return Assemble([]string{text}, Options{}) == ""
}

func hasWordContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func capitalize(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	start := true
	for _, r := range text {
		if start && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
			start = false
		} else if unicode.IsLetter(r) || unicode.IsDigit(r) {
			start = false
		}
		out.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			start = true
		}
	}

	return pronounIPattern.ReplaceAllStringFunc(out.String(), func(match string) string {
		_, size := utf8.DecodeRuneInString(match)
		return "I" + match[size:]
	})
}
