// Package indicators loads IOC feeds and answers type-scoped match queries.
//
// Substring types (DOMAIN, URL, EMAIL) are matched with an Aho-Corasick
// dictionary, every other type with an exact keyword set. Keywords and queries
// are lower-cased before comparison. A Store is read-only once built and may be
// shared by concurrent readers.
package indicators

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"droidsweep/internal/core/domain"
)

// processNameWidth is the width of the process-name column in ps output.
// Longer names are truncated to it by the device.
const processNameWidth = 16

// LoadedFile describes one indicator file that contributed to a Store.
type LoadedFile struct {
	Path     string `json:"file"`
	SHA256   string `json:"sha256"`
	Keywords int    `json:"keywords"`
}

// Store holds the matchers built from the loaded indicator files.
type Store struct {
	substring map[domain.IndicatorType]*substringSet
	exact     map[domain.IndicatorType]*keywordSet
	files     []LoadedFile
	skipped   []error
}

// NewStore builds a store from in-memory keywords. Keywords are case-folded and
// deduplicated.
func NewStore(keywords map[domain.IndicatorType][]string) *Store {
	b := newBuilder()
	for t, words := range keywords {
		for _, w := range words {
			b.add(t, w)
		}
	}
	return b.build()
}

// MatchString reports every keyword of type t matched by value.
//
// For PROCESS, a 16 character query also matches any keyword that starts with
// it, since ps truncates process names to that width. This is an approximation:
// a process whose real name is exactly 16 characters long will also match
// longer keywords sharing the prefix.
func (s *Store) MatchString(value string, t domain.IndicatorType) []domain.Detection {
	if s == nil || value == "" {
		return nil
	}
	lower := strings.ToLower(value)

	if t.Style() == domain.MatchSubstring {
		ss, ok := s.substring[t]
		if !ok {
			return nil
		}
		var out []domain.Detection
		for _, kw := range ss.match(lower) {
			out = append(out, domain.NewIndicatorDetection(t, kw, value))
		}
		return out
	}

	ks, ok := s.exact[t]
	if !ok {
		return nil
	}
	var out []domain.Detection
	if ks.contains(lower) {
		out = append(out, domain.NewIndicatorDetection(t, lower, value))
	}
	if t == domain.IndicatorProcess && utf8.RuneCountInString(lower) == processNameWidth {
		for _, kw := range ks.withPrefix(lower) {
			if kw != lower {
				out = append(out, domain.NewIndicatorDetection(t, kw, value))
			}
		}
	}
	return out
}

// MatchStrings runs every value against each of types. With no types it checks
// URL, DOMAIN and PROCESS, which is what free-text fields usually carry.
func (s *Store) MatchStrings(values []string, types ...domain.IndicatorType) []domain.Detection {
	if len(types) == 0 {
		types = []domain.IndicatorType{domain.IndicatorURL, domain.IndicatorDomain, domain.IndicatorProcess}
	}
	var out []domain.Detection
	for _, v := range values {
		for _, t := range types {
			out = append(out, s.MatchString(v, t)...)
		}
	}
	return out
}

// Count returns the number of distinct keywords of type t.
func (s *Store) Count(t domain.IndicatorType) int {
	if s == nil {
		return 0
	}
	if ss, ok := s.substring[t]; ok {
		return ss.size()
	}
	if ks, ok := s.exact[t]; ok {
		return ks.size()
	}
	return 0
}

// Total returns the number of distinct keywords across all types.
func (s *Store) Total() int {
	n := 0
	for _, t := range domain.AllIndicatorTypes() {
		n += s.Count(t)
	}
	return n
}

// Files lists the indicator files that were loaded, in load order.
func (s *Store) Files() []LoadedFile {
	if s == nil {
		return nil
	}
	out := make([]LoadedFile, len(s.files))
	copy(out, s.files)
	return out
}

// Skipped returns the format errors of files that could not be read.
func (s *Store) Skipped() []error {
	if s == nil {
		return nil
	}
	return append([]error(nil), s.skipped...)
}

// Fingerprint identifies the loaded indicator set: the SHA-256 of the
// concatenated, sorted SHA-256 digests of every loaded file.
func (s *Store) Fingerprint() string {
	if s == nil {
		return ""
	}
	hashes := make([]string, 0, len(s.files))
	for _, f := range s.files {
		hashes = append(hashes, f.SHA256)
	}
	sort.Strings(hashes)
	sum := sha256.Sum256([]byte(strings.Join(hashes, "")))
	return hex.EncodeToString(sum[:])
}

// builder accumulates keywords until the matchers are built.
type builder struct {
	keywords map[domain.IndicatorType]map[string]struct{}
	files    []LoadedFile
	skipped  []error
}

func newBuilder() *builder {
	return &builder{keywords: make(map[domain.IndicatorType]map[string]struct{})}
}

// add stores a case-folded keyword. Blank values and OTHER are ignored.
// It reports whether the keyword was new.
func (b *builder) add(t domain.IndicatorType, value string) bool {
	if t == domain.IndicatorOther || !t.IsValid() || strings.TrimSpace(value) == "" {
		return false
	}
	set, ok := b.keywords[t]
	if !ok {
		set = make(map[string]struct{})
		b.keywords[t] = set
	}
	lower := strings.ToLower(value)
	if _, dup := set[lower]; dup {
		return false
	}
	set[lower] = struct{}{}
	return true
}

func (b *builder) build() *Store {
	s := &Store{
		substring: make(map[domain.IndicatorType]*substringSet),
		exact:     make(map[domain.IndicatorType]*keywordSet),
		files:     b.files,
		skipped:   b.skipped,
	}
	for t, set := range b.keywords {
		words := make([]string, 0, len(set))
		for w := range set {
			words = append(words, w)
		}
		sort.Strings(words)

		if t.Style() == domain.MatchSubstring {
			s.substring[t] = newSubstringSet(words)
		} else {
			s.exact[t] = newKeywordSet(words)
		}
	}
	return s
}
