// internal/core/ports/artifact.go
package ports

import (
	"droidsweep/internal/core/domain"
)

// IndicatorMatcher answers type-scoped IOC queries. It must be safe for
// concurrent readers once built.
type IndicatorMatcher interface {
	// MatchString returns one detection per keyword of type t matched by value.
	// An empty value or an unknown type yields no detections.
	MatchString(value string, t domain.IndicatorType) []domain.Detection
}

// Artifact is the port every evidence parser implements.
//
// Lifecycle: constructed empty, Parse fills the records (replacing any previous
// ones), CheckIndicators fills the detections. Results are read-only until the
// next Parse.
type Artifact interface {
	// Name returns the module name (e.g. "processes", "dumpsys_receivers").
	Name() string

	// Paths lists acceptable input file names, most specific first. A name may
	// be a glob such as "settings_*.txt".
	Paths() []string

	// Parse turns raw input into records. Nil input yields zero records. Only
	// catastrophic input returns an error wrapping errors.ErrParse.
	Parse(data []byte) error

	// CheckIndicators applies the artifact's heuristics and forwards its
	// free-text fields to the matcher, if one is set.
	CheckIndicators()

	Results() []*domain.Record
	Detected() []domain.Detection

	SetIndicators(m IndicatorMatcher)
}

// ArtifactFactory builds a fresh, empty artifact.
type ArtifactFactory func() Artifact

// ModuleMetadata describes a registered module.
type ModuleMetadata struct {
	Name        string
	Description string

	// Paths overrides the artifact's own Paths when set.
	Paths []string

	// Required makes RunModule fail with domain.ErrNoInput when no path exists.
	Required bool

	// Priority orders module execution, higher first.
	Priority int

	// Weight is the estimated cost 0-100, used as tie breaker by the scheduler.
	Weight int
}

// PasswordProtected is implemented by artifacts whose input may be encrypted,
// such as Android backups. The runner hands them the configured password.
type PasswordProtected interface {
	SetBackupPassword(password string)
}
