package textutil

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// CompilePattern compiles a case-insensitive pattern, an empty pattern matches everything.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = ".*"
	}
	return regexp.Compile("(?i)" + pattern)
}

// Suggest returns up to `n` candidates most similar to `query` (Jaro-Winkler over
// normalized names), the best match first. Candidates below `threshold` are left out.
func Suggest(query string, candidates []string, n int, threshold float64) []string {
	type scored struct {
		name  string
		score float64
	}

	normalizedQuery := NormalizeName(query)
	var ranked []scored
	for _, c := range candidates {
		score := matchr.JaroWinkler(normalizedQuery, NormalizeName(c), false)
		if score < threshold {
			continue
		}
		ranked = append(ranked, scored{name: c, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}
