package indicators

import (
	"sort"
	"strings"
)

// keywordSet is the exact-match counterpart of substringSet. The sorted slice
// serves the PROCESS prefix lookup.
type keywordSet struct {
	words  map[string]struct{}
	sorted []string
}

func newKeywordSet(words []string) *keywordSet {
	ks := &keywordSet{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, dup := ks.words[w]; dup {
			continue
		}
		ks.words[w] = struct{}{}
		ks.sorted = append(ks.sorted, w)
	}
	sort.Strings(ks.sorted)
	return ks
}

func (ks *keywordSet) contains(q string) bool {
	_, ok := ks.words[q]
	return ok
}

// withPrefix returns every keyword starting with prefix, in sorted order.
func (ks *keywordSet) withPrefix(prefix string) []string {
	i := sort.SearchStrings(ks.sorted, prefix)
	var out []string
	for ; i < len(ks.sorted) && strings.HasPrefix(ks.sorted[i], prefix); i++ {
		out = append(out, ks.sorted[i])
	}
	return out
}

func (ks *keywordSet) size() int { return len(ks.sorted) }
