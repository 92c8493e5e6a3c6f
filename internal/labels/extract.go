package labels

import (
	"sort"
	"strings"
)

const (
	maxNgram        = 3
	candidatePool   = 20
	defaultTopN     = 5
	defaultLabelTop = 3
	mmrDiversity    = 0.5
	// phraseBoost offsets the higher raw counts of the unigrams inside a phrase.
	phraseBoost     = 0.5
)

// Keyword is a scored candidate phrase, lower-cased.
type Keyword struct {
	Phrase string
	Score  float64
}

// extract scores every 1..3-gram of the cluster texts by tf-idf against the corpus and
// picks topN with maximal marginal relevance over the best candidates.
func extract(texts []string, corpus *Corpus, topN int) []Keyword {
	tf := make(map[string]int)

	for _, text := range texts {
		for _, seg := range segments(text) {
			for _, phrase := range ngrams(contentTokens(seg), maxNgram) {
				tf[phrase]++
			}
		}
	}

	if len(tf) == 0 {
		return nil
	}

	candidates := make([]Keyword, 0, len(tf))
	for phrase, n := range tf {
		words := strings.Count(phrase, " ") + 1
		score := float64(n) * corpus.idf(phrase) * (1 + phraseBoost*float64(words-1))
		candidates = append(candidates, Keyword{Phrase: phrase, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}

		return candidates[i].Phrase < candidates[j].Phrase
	})

	if len(candidates) > candidatePool {
		candidates = candidates[:candidatePool]
	}

	return maximalMarginalRelevance(candidates, topN, mmrDiversity)
}

// maximalMarginalRelevance greedily selects phrases that are relevant but unlike the ones
// already chosen. A phrase whose words all appear in a chosen phrase is never selected.
// Candidates must be sorted by score.
func maximalMarginalRelevance(candidates []Keyword, topN int, diversity float64) []Keyword {
	if len(candidates) == 0 || topN <= 0 {
		return nil
	}

	best := candidates[0].Score
	words := make([][]string, len(candidates))

	for i, c := range candidates {
		words[i] = strings.Fields(c.Phrase)
	}

	selected := []int{0}
	used := map[int]bool{0: true}

	for len(selected) < topN && len(selected) < len(candidates) {
		pick := -1
		pickValue := 0.0

		for i, c := range candidates {
			if used[i] || containedIn(words[i], words, selected) {
				continue
			}

			var redundancy float64
			for _, s := range selected {
				redundancy = max(redundancy, overlap(words[i], words[s]))
			}

			value := (1-diversity)*(c.Score/best) - diversity*redundancy
			if pick == -1 || value > pickValue {
				pick, pickValue = i, value
			}
		}

		if pick == -1 {
			break
		}

		selected = append(selected, pick)
		used[pick] = true
	}

	out := make([]Keyword, len(selected))
	for i, s := range selected {
		out[i] = candidates[s]
	}

	return out
}

// overlap is the overlap coefficient |A∩B| / min(|A|, |B|) of two word sets.
func overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inA := make(map[string]struct{}, len(a))
	for _, w := range a {
		inA[w] = struct{}{}
	}

	inB := make(map[string]struct{}, len(b))
	for _, w := range b {
		inB[w] = struct{}{}
	}

	shared := 0

	for w := range inB {
		if _, ok := inA[w]; ok {
			shared++
		}
	}

	return float64(shared) / float64(min(len(inA), len(inB)))
}

// containedIn reports whether every word of phrase appears in one of the selected phrases.
func containedIn(phrase []string, words [][]string, selected []int) bool {
	for _, s := range selected {
		if isSubset(phrase, words[s]) {
			return true
		}
	}

	return false
}

func isSubset(a, b []string) bool {
	for _, w := range a {
		found := false

		for _, x := range b {
			if w == x {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}
