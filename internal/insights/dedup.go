package insights

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultDedupThreshold is the title similarity above which two insights are merged.
const DefaultDedupThreshold = 0.85

// DedupStats summarizes a deduplication pass.
type DedupStats struct {
	Merged       int
	LinksMoved   int
	LinksDropped int
}

// TitleSimilarity is the sequence-match ratio of the lowercased, trimmed titles.
func TitleSimilarity(a, b string) float64 {
	return difflib.NewMatcher(chars(normalizeTitle(a)), chars(normalizeTitle(b))).Ratio()
}

// Deduplicate merges insights whose titles are more similar than threshold. The insight with
// the higher priority survives, the other's feedback links move to it unless the survivor is
// already linked to that feedback, and the discarded insight is removed. Survivor snapshot
// fields are left untouched. Input order is preserved for the survivors.
func Deduplicate(drafts []Draft, threshold float64) ([]Draft, DedupStats) {
	var stats DedupStats
	if len(drafts) < 2 {
		return drafts, stats
	}

	discarded := make([]bool, len(drafts))

	for i := range drafts {
		if discarded[i] {
			continue
		}

		for j := i + 1; j < len(drafts); j++ {
			if discarded[j] {
				continue
			}

			sim := TitleSimilarity(drafts[i].Insight.Title, drafts[j].Insight.Title)
			if sim <= threshold {
				continue
			}

			keep, drop := i, j
			if drafts[j].Insight.PriorityScore > drafts[i].Insight.PriorityScore {
				keep, drop = j, i
			}

			moved, dropped := mergeLinks(&drafts[keep], drafts[drop])
			stats.Merged++
			stats.LinksMoved += moved
			stats.LinksDropped += dropped
			discarded[drop] = true

			slog.Info("merged duplicate insights",
				"kept", drafts[keep].Insight.Title,
				"discarded", drafts[drop].Insight.Title,
				"similarity", sim,
			)

			if drop == i {
				break
			}
		}
	}

	out := make([]Draft, 0, len(drafts)-stats.Merged)
	for i, d := range drafts {
		if !discarded[i] {
			out = append(out, d)
		}
	}

	return out, stats
}

func mergeLinks(keep *Draft, drop Draft) (moved, dropped int) {
	linked := make(map[uuid.UUID]struct{}, len(keep.Links))
	for _, l := range keep.Links {
		linked[l.FeedbackID] = struct{}{}
	}

	for _, l := range drop.Links {
		if _, ok := linked[l.FeedbackID]; ok {
			dropped++
			continue
		}

		l.InsightID = keep.Insight.ID
		keep.Links = append(keep.Links, l)
		linked[l.FeedbackID] = struct{}{}
		moved++
	}

	return moved, dropped
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}

	return out
}
