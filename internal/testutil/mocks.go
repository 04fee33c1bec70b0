// internal/testutil/mocks.go
package testutil

import (
	"strings"
	"sync"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
)

// Query is one call observed by RecordingMatcher.
type Query struct {
	Value string
	Type  domain.IndicatorType
}

// RecordingMatcher is a ports.IndicatorMatcher that records every query and
// reports an exact, case-insensitive hit for the configured keywords.
type RecordingMatcher struct {
	mu       sync.Mutex
	keywords map[domain.IndicatorType]map[string]bool
	queries  []Query
}

// NewRecordingMatcher builds a matcher over the given keywords per type.
func NewRecordingMatcher(keywords map[domain.IndicatorType][]string) *RecordingMatcher {
	m := &RecordingMatcher{keywords: make(map[domain.IndicatorType]map[string]bool)}
	for t, words := range keywords {
		m.keywords[t] = make(map[string]bool, len(words))
		for _, w := range words {
			m.keywords[t][strings.ToLower(w)] = true
		}
	}
	return m
}

func (m *RecordingMatcher) MatchString(value string, t domain.IndicatorType) []domain.Detection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, Query{Value: value, Type: t})

	if value == "" || !m.keywords[t][strings.ToLower(value)] {
		return nil
	}
	return []domain.Detection{domain.NewIndicatorDetection(t, strings.ToLower(value), value)}
}

// Queries returns a copy of the observed calls.
func (m *RecordingMatcher) Queries() []Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Query(nil), m.queries...)
}

// Queried reports whether value was looked up as type t.
func (m *RecordingMatcher) Queried(value string, t domain.IndicatorType) bool {
	for _, q := range m.Queries() {
		if q.Value == value && q.Type == t {
			return true
		}
	}
	return false
}

// FakeArtifact is a configurable ports.Artifact for runner and registry tests.
type FakeArtifact struct {
	ModuleName string
	InputPaths []string
	ParseFunc  func(data []byte) error

	mu       sync.Mutex
	input    []byte
	parsed   int
	results  []*domain.Record
	detected []domain.Detection
	matcher  ports.IndicatorMatcher
}

func (f *FakeArtifact) Name() string    { return f.ModuleName }
func (f *FakeArtifact) Paths() []string { return f.InputPaths }

// Parse stores one record per non-empty line unless ParseFunc is set.
func (f *FakeArtifact) Parse(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.parsed++
	f.input = append([]byte(nil), data...)
	f.results = nil
	if f.ParseFunc != nil {
		return f.ParseFunc(data)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			f.results = append(f.results, domain.NewRecord().SetString("line", line))
		}
	}
	return nil
}

// CheckIndicators forwards every line as APP_ID.
func (f *FakeArtifact) CheckIndicators() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.detected = nil
	if f.matcher == nil {
		return
	}
	for _, r := range f.results {
		f.detected = append(f.detected, f.matcher.MatchString(r.Str("line"), domain.IndicatorAppID)...)
	}
}

func (f *FakeArtifact) Results() []*domain.Record              { return f.results }
func (f *FakeArtifact) Detected() []domain.Detection           { return f.detected }
func (f *FakeArtifact) SetIndicators(m ports.IndicatorMatcher) { f.matcher = m }

// Input returns the bytes passed to the last Parse call.
func (f *FakeArtifact) Input() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

// ParseCalls returns how many times Parse ran.
func (f *FakeArtifact) ParseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parsed
}

// HasIndicators reports whether SetIndicators received a matcher.
func (f *FakeArtifact) HasIndicators() bool { return f.matcher != nil }
