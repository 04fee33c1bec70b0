// internal/artifacts/getprop.go
package artifacts

import (
	"fmt"
	"regexp"
	"time"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewGetProp() },
		ports.ModuleMetadata{
			Description: "System properties from getprop",
			Priority:    10,
			Weight:      5,
		},
	)
}

var propertyLine = regexp.MustCompile(`\[(.+?)\]: \[(.*?)\]`)

var interestingProperties = map[string]bool{
	"gsm.sim.operator.alpha":          true,
	"gsm.sim.operator.iso-country":    true,
	"persist.sys.timezone":            true,
	"ro.boot.serialno":                true,
	"ro.build.version.sdk":            true,
	"ro.build.version.security_patch": true,
	"ro.product.cpu.abi":              true,
	"ro.product.locale":               true,
	"ro.product.vendor.manufacturer":  true,
	"ro.product.vendor.model":         true,
	"ro.product.vendor.name":          true,
}

const (
	securityPatchProperty = "ro.build.version.security_patch"
	timezoneProperty      = "persist.sys.timezone"

	// maxPatchAge is the six month window after which a device is flagged.
	maxPatchAge = 180 * 24 * time.Hour
)

// GetProp parses `getprop` output into name/value records.
type GetProp struct {
	Base
	now func() time.Time
}

func NewGetProp() *GetProp {
	return &GetProp{Base: newBase("getprop", "getprop.txt"), now: time.Now}
}

func (g *GetProp) Parse(data []byte) error {
	g.reset()
	for _, line := range splitLines(string(data)) {
		m := propertyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		g.add(domain.NewRecord().SetString("name", m[1]).SetString("value", m[2]))
	}
	return nil
}

func (g *GetProp) CheckIndicators() {
	g.clearDetections()
	for _, r := range g.results {
		name := r.Str("name")
		if name == securityPatchProperty {
			g.checkPatchLevel(r)
		}
		if interestingProperties[name] {
			g.alert(domain.AlertLog, name, r.Str("value"), r)
		}
	}
	for _, r := range g.results {
		g.match(r.Str("name"), domain.IndicatorProperty, r)
	}
}

func (g *GetProp) checkPatchLevel(r *domain.Record) {
	patch, err := time.Parse("2006-01-02", r.Str("value"))
	if err != nil {
		return
	}
	if g.now().Sub(patch) > maxPatchAge {
		g.alert(domain.AlertMedium, "Outdated security patch",
			fmt.Sprintf("This phone has not received security updates for more than six months (last update: %s).", r.Str("value")),
			r)
	}
}

// DeviceTimezone returns persist.sys.timezone, or "" when absent.
func (g *GetProp) DeviceTimezone() string {
	for _, r := range g.results {
		if r.Str("name") == timezoneProperty {
			return r.Str("value")
		}
	}
	return ""
}
