// internal/artifacts/dumpsys_accessibility.go
package artifacts

import (
	"regexp"
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysAccessibility() },
		ports.ModuleMetadata{
			Description: "Installed and enabled accessibility services",
			Priority:    6,
			Weight:      5,
		},
	)
}

var (
	legacyServiceLine = regexp.MustCompile(`\s*(\d+) : (.+)`)
	enabledServices   = regexp.MustCompile(`\{\{(.+?)}}`)
)

// DumpsysAccessibility parses `dumpsys accessibility`. Older releases list
// "installed services:" with one "N : pkg/service" line each; Android 14
// prints "Enabled services:{{pkg/service}}".
type DumpsysAccessibility struct {
	Base
}

func NewDumpsysAccessibility() *DumpsysAccessibility {
	return &DumpsysAccessibility{Base: newBase("dumpsys_accessibility", "dumpsys.txt")}
}

func (d *DumpsysAccessibility) Parse(data []byte) error {
	d.reset()
	lines := splitLines(dumpsysInput(data, "accessibility"))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "installed services:"):
			for _, next := range lines[i+1:] {
				if m := legacyServiceLine.FindStringSubmatch(next); m != nil {
					service := strings.TrimSpace(m[2])
					d.add(domain.NewRecord().
						SetString("package_name", packageOf(service)).
						SetString("service", service))
					continue
				}
				if strings.HasPrefix(strings.TrimSpace(next), "}") {
					break
				}
			}
		case strings.HasPrefix(trimmed, "Enabled services:"):
			for _, next := range lines[i:] {
				m := enabledServices.FindStringSubmatch(next)
				if m == nil {
					continue
				}
				full := strings.TrimSpace(m[1])
				pkg, service, _ := strings.Cut(full, "/")
				if service == "" {
					service = full
				}
				d.add(domain.NewRecord().
					SetString("package_name", pkg).
					SetString("service", service))
				break
			}
		}
	}
	return nil
}

func (d *DumpsysAccessibility) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		d.match(r.Str("package_name"), domain.IndicatorAppID, r)
	}
}
