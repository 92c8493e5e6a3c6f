package labels

import (
	"sort"
	"strings"
)

// nameTokens finds words that look like names in the cluster texts: words right before a
// company suffix ("Acme" in "Acme Corp LLC" or "Acme, Inc."), and words only ever written
// capitalized away from the start of a sentence.
func nameTokens(texts []string) map[string]struct{} {
	names := make(map[string]struct{})
	capitalizedMid := make(map[string]int)
	lowercase := make(map[string]int)

	for _, text := range texts {
		var prev []token

		for _, seg := range segments(text) {
			for i, t := range seg {
				if _, suffix := companySuffixes[t.lower]; suffix {
					if i == 0 {
						// The suffix was split off by punctuation.
						markCompanyName(prev, len(prev), names)
					} else {
						markCompanyName(seg, i, names)
					}
				}

				switch {
				case !isCapitalized(t.surface):
					lowercase[t.lower]++
				case !t.initial:
					capitalizedMid[t.lower]++
				}
			}

			prev = seg
		}
	}

	for w, n := range capitalizedMid {
		if n == 0 || lowercase[w] > 0 {
			continue
		}

		if _, keep := keepTerms[w]; keep {
			continue
		}

		if _, stop := stopWords[w]; stop {
			continue
		}

		if _, acr := acronyms[w]; acr {
			continue
		}

		names[w] = struct{}{}
	}

	return names
}

// markCompanyName marks up to three capitalized words preceding the suffix at i.
func markCompanyName(seg []token, i int, names map[string]struct{}) {
	marked := 0

	for j := i - 1; j >= 0 && marked < 3; j-- {
		t := seg[j]
		if _, suffix := companySuffixes[t.lower]; suffix {
			continue
		}

		if !isCapitalized(t.surface) {
			return
		}

		if _, keep := keepTerms[t.lower]; !keep {
			names[t.lower] = struct{}{}
		}

		marked++
	}
}

// filterKeywords drops organization phrases, names, numbers and generic words, and returns
// the surviving phrases title-cased in rank order without duplicates. blocked is consulted
// alongside the built-in name lists.
func filterKeywords(keywords []Keyword, blocked func(string) bool) []string {
	var out []string

	seen := make(map[string]struct{})

	for _, kw := range keywords {
		words := strings.Fields(kw.Phrase)
		if len(words) == 0 {
			continue
		}

		if containsSuffix(words) {
			continue
		}

		kept := make([]string, 0, len(words))

		for _, w := range words {
			if dropWord(w) || blocked(w) {
				continue
			}

			kept = append(kept, w)
		}

		if len(kept) == 0 {
			continue
		}

		phrase := TitleCase(strings.Join(kept, " "))
		if len(phrase) <= 2 || isDigits(phrase) {
			continue
		}

		key := strings.ToLower(phrase)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, phrase)
	}

	return out
}

func containsSuffix(words []string) bool {
	for _, w := range words {
		if _, ok := companySuffixes[w]; ok {
			return true
		}
	}

	return false
}

func dropWord(w string) bool {
	if _, ok := commonNames[w]; ok {
		return true
	}

	if _, ok := genericWords[w]; ok {
		return true
	}

	return isDigits(w)
}

// containsBlocked reports whether any word of s is a name or otherwise blocked.
func containsBlocked(s string, blocked map[string]struct{}) bool {
	for _, w := range wordsOf(s) {
		if _, ok := blocked[w]; ok {
			return true
		}

		if _, ok := commonNames[w]; ok {
			return true
		}

		if _, ok := companySuffixes[w]; ok {
			return true
		}
	}

	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
