// package matching scores destination search results against source tracks
package matching

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	bracketed  = regexp.MustCompile(`[\(\[].*?[\)\]]`)
	featuring  = regexp.MustCompile(`\b(feat|ft)\b.*`)
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a title or artist name for comparison.
//
// The text is NFKD-decomposed and reduced to ASCII, lower-cased, stripped of bracketed segments
// ("(Remastered 2011)", "[Live]"), cut at a "feat"/"ft" word, reduced to [a-z0-9 ] and whitespace-collapsed.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = toASCII(norm.NFKD.String(text))
	text = strings.ToLower(text)
	text = bracketed.ReplaceAllString(text, "")
	text = featuring.ReplaceAllString(text, "")
	text = nonAlnum.ReplaceAllString(text, "")
	// Stripping punctuation can expose a new "feat" word ("fe'at" -> "feat").
	text = featuring.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func toASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	return b.String()
}
