// internal/artifacts/dumpsys_platform_compat.go
package artifacts

import (
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysPlatformCompat() },
		ports.ModuleMetadata{
			Description: "Packages with compatibility overrides",
			Priority:    5,
			Weight:      3,
		},
	)
}

// downscaledChange is the compat change id listing every package that got a
// DOWNSCALED override, a side effect of installing over adb.
const downscaledChange = "ChangeId(168419799; name=DOWNSCALED"

// DumpsysPlatformCompat lists packages carrying the DOWNSCALED override.
type DumpsysPlatformCompat struct {
	Base
}

func NewDumpsysPlatformCompat() *DumpsysPlatformCompat {
	return &DumpsysPlatformCompat{Base: newBase("dumpsys_platform_compat", "dumpsys.txt")}
}

func (d *DumpsysPlatformCompat) Parse(data []byte) error {
	d.reset()
	for _, line := range splitLines(dumpsysInput(data, "platform_compat")) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, downscaledChange) {
			continue
		}
		_, overrides, ok := strings.Cut(line, "rawOverrides={")
		if !ok {
			continue
		}
		overrides, _, _ = strings.Cut(overrides, "};")
		for _, entry := range strings.Split(overrides, ",") {
			pkg, _, _ := strings.Cut(entry, "=")
			if pkg = strings.TrimSpace(pkg); pkg != "" {
				d.add(domain.NewRecord().SetString("package_name", pkg))
			}
		}
	}
	return nil
}

func (d *DumpsysPlatformCompat) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		d.match(r.Str("package_name"), domain.IndicatorAppID, r)
	}
}
