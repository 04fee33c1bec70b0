// internal/artifacts/base.go

// Package artifacts holds the Android evidence parsers. Each parser turns one
// bundle file into records, then applies its heuristics and the IOC lookups.
// Every parser registers itself in registry.Global() from init().
package artifacts

import (
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
)

// dumpsysSeparator closes a service section in dumpsys output.
var dumpsysSeparator = strings.Repeat("-", 78)

const dumpsysHeaderPrefix = "DUMP OF SERVICE "

// Base holds the state shared by every artifact. Variants embed it and
// implement Parse and CheckIndicators on top.
type Base struct {
	name       string
	paths      []string
	results    []*domain.Record
	detected   []domain.Detection
	indicators ports.IndicatorMatcher
}

func newBase(name string, paths ...string) Base {
	return Base{name: name, paths: paths}
}

func (b *Base) Name() string { return b.name }

// Paths returns a copy of the accepted file names.
func (b *Base) Paths() []string { return append([]string(nil), b.paths...) }

func (b *Base) Results() []*domain.Record    { return b.results }
func (b *Base) Detected() []domain.Detection { return b.detected }

func (b *Base) SetIndicators(m ports.IndicatorMatcher) { b.indicators = m }

// reset drops records and detections before a new Parse.
func (b *Base) reset() {
	b.results = nil
	b.detected = nil
}

func (b *Base) add(r *domain.Record) { b.results = append(b.results, r) }

// alert appends a heuristic detection.
func (b *Base) alert(level domain.AlertLevel, title, message string, r *domain.Record) {
	b.detected = append(b.detected, domain.Detection{
		Level:   level,
		Title:   title,
		Message: message,
		Record:  r,
	})
}

// match forwards value to the matcher and keeps every hit, linked to r.
// It reports whether anything matched.
func (b *Base) match(value string, t domain.IndicatorType, r *domain.Record) bool {
	if b.indicators == nil || value == "" {
		return false
	}
	hits := b.indicators.MatchString(value, t)
	for _, d := range hits {
		b.detected = append(b.detected, d.WithRecord(r))
	}
	return len(hits) > 0
}

// clearDetections runs at the start of every CheckIndicators so repeated
// calls do not pile up duplicates.
func (b *Base) clearDetections() { b.detected = nil }

// ExtractDumpsysSection returns the raw lines following the header line, up
// to the separator line. header is either the full "DUMP OF SERVICE package:"
// line or just the service name. An absent section is "".
func ExtractDumpsysSection(dump, header string) string {
	want := strings.TrimSpace(header)
	if !strings.HasPrefix(want, dumpsysHeaderPrefix) {
		want = dumpsysHeaderPrefix + strings.TrimSuffix(want, ":") + ":"
	}

	var (
		lines   []string
		inBlock bool
	)
	for _, line := range splitLines(dump) {
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			inBlock = trimmed == want
			continue
		}
		if strings.HasPrefix(trimmed, dumpsysSeparator) {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// dumpsysInput returns the section for header when data is a full dumpsys
// capture. Input without any service header is taken as an already extracted
// section.
func dumpsysInput(data []byte, header string) string {
	text := string(data)
	if !strings.Contains(text, dumpsysHeaderPrefix) {
		return text
	}
	return ExtractDumpsysSection(text, header)
}

// splitLines splits on '\n' and drops a trailing '\r' from each line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// packageOf returns the package part of a "pkg/component" string.
func packageOf(component string) string {
	pkg, _, _ := strings.Cut(component, "/")
	return pkg
}
