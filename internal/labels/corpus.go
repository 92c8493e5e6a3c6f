package labels

import (
	"math"
	"sort"
	"strings"
)

// Corpus holds document frequencies over every text of a run plus terms that must never
// appear in a label (customer names).
type Corpus struct {
	docs    int
	df      map[string]int
	blocked map[string]struct{}
}

// NewCorpus counts candidate phrase document frequencies over texts.
// Every word of each blocked name is blocked, except product vocabulary and company suffixes.
func NewCorpus(texts []string, blockedNames ...string) *Corpus {
	c := &Corpus{
		docs:    len(texts),
		df:      make(map[string]int),
		blocked: make(map[string]struct{}),
	}

	for _, text := range texts {
		seen := make(map[string]struct{})

		for _, seg := range segments(text) {
			for _, phrase := range ngrams(contentTokens(seg), maxNgram) {
				seen[phrase] = struct{}{}
			}
		}

		for phrase := range seen {
			c.df[phrase]++
		}
	}

	for _, name := range blockedNames {
		c.Block(name)
	}

	return c
}

// Block adds a name to the blocked vocabulary.
func (c *Corpus) Block(name string) {
	for _, w := range wordsOf(name) {
		if _, keep := keepTerms[w]; keep {
			continue
		}

		if _, suffix := companySuffixes[w]; suffix {
			continue
		}

		if len(w) < 2 {
			continue
		}

		c.blocked[w] = struct{}{}
	}
}

// Blocked returns the blocked words in sorted order.
func (c *Corpus) Blocked() []string {
	if c == nil {
		return nil
	}

	out := make([]string, 0, len(c.blocked))
	for w := range c.blocked {
		out = append(out, w)
	}

	sort.Strings(out)

	return out
}

func (c *Corpus) isBlocked(word string) bool {
	if c == nil {
		return false
	}

	_, ok := c.blocked[word]

	return ok
}

// idf is the smoothed inverse document frequency of phrase. Without a corpus every phrase weighs 1.
func (c *Corpus) idf(phrase string) float64 {
	if c == nil || c.docs == 0 {
		return 1
	}

	return math.Log(float64(1+c.docs)/float64(1+c.df[phrase])) + 1
}

// contentTokens drops stop words, keeping order.
func contentTokens(seg []token) []token {
	out := make([]token, 0, len(seg))

	for _, t := range seg {
		if _, stop := stopWords[t.lower]; stop {
			continue
		}

		if len(t.lower) < 2 && !isDigits(t.lower) {
			continue
		}

		out = append(out, t)
	}

	return out
}

// ngrams returns every lower-cased 1..n-gram of consecutive tokens.
func ngrams(tokens []token, n int) []string {
	var out []string

	for size := 1; size <= n; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			parts := make([]string, size)
			for j := range size {
				parts[j] = tokens[i+j].lower
			}

			out = append(out, strings.Join(parts, " "))
		}
	}

	return out
}
