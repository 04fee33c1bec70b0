package indicators

import "github.com/cloudflare/ahocorasick"

// substringSet matches lower-cased keywords anywhere inside a value.
type substringSet struct {
	patterns []string
	matcher  *ahocorasick.Matcher
}

func newSubstringSet(words []string) *substringSet {
	ss := &substringSet{patterns: make([]string, 0, len(words))}
	for _, w := range words {
		if w != "" {
			ss.patterns = append(ss.patterns, w)
		}
	}
	ss.matcher = ahocorasick.NewStringMatcher(ss.patterns)
	return ss
}

// match returns every distinct keyword contained in text. Match keeps
// per-call state inside the matcher, so readers go through MatchThreadSafe.
func (ss *substringSet) match(text string) []string {
	if len(ss.patterns) == 0 || text == "" {
		return nil
	}
	hits := ss.matcher.MatchThreadSafe([]byte(text))
	out := make([]string, 0, len(hits))
	for _, idx := range hits {
		out = append(out, ss.patterns[idx])
	}
	return out
}

func (ss *substringSet) size() int { return len(ss.patterns) }
