package labels

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	wordPattern     = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'’]*`)
	sentenceBreaker = regexp.MustCompile(`[.!?;:\n,()"\[\]]+`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// token is a word with its original spelling and sentence position.
type token struct {
	surface string
	lower   string
	initial bool
}

// segments splits text into phrase segments and tokenizes each.
// N-grams never cross a segment boundary.
func segments(text string) [][]token {
	var out [][]token

	for _, part := range sentenceBreaker.Split(text, -1) {
		words := wordPattern.FindAllString(part, -1)
		if len(words) == 0 {
			continue
		}

		seg := make([]token, 0, len(words))
		for i, w := range words {
			w = strings.TrimRight(strings.ReplaceAll(w, "’", "'"), "'")
			seg = append(seg, token{
				surface: w,
				lower:   strings.ReplaceAll(strings.ToLower(w), "'", ""),
				initial: i == 0,
			})
		}

		out = append(out, seg)
	}

	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}

func isCapitalized(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}

	return false
}

// TitleCase upper-cases the first letter of every word and known acronyms entirely.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		if _, ok := acronyms[lower]; ok {
			words[i] = strings.ToUpper(w)

			continue
		}

		r := []rune(lower)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}

	return strings.Join(words, " ")
}

// wordsOf returns the lower-cased words of s.
func wordsOf(s string) []string {
	found := wordPattern.FindAllString(strings.ToLower(s), -1)
	for i, w := range found {
		found[i] = strings.ReplaceAll(strings.ReplaceAll(w, "’", ""), "'", "")
	}

	return found
}
