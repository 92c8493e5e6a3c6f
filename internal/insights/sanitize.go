package insights

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	edgeDebris    = regexp.MustCompile(`^[,\-\s]+|[,\-\s]+$`)
)

// SanitizeTitle removes every customer name from title, ignoring case, and tidies the
// separators left behind. Longer names are removed first so that "Acme Corp" wins over "Acme".
func SanitizeTitle(title string, customerNames []string) string {
	names := make([]string, 0, len(customerNames))
	for _, n := range customerNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return utf8.RuneCountInString(names[i]) > utf8.RuneCountInString(names[j])
	})

	sanitized := title
	for _, n := range names {
		sanitized = regexp.MustCompile(`(?i)`+regexp.QuoteMeta(n)).ReplaceAllString(sanitized, "")
	}

	sanitized = strings.TrimSpace(whitespaceRun.ReplaceAllString(sanitized, " "))

	return edgeDebris.ReplaceAllString(sanitized, "")
}
