// internal/artifacts/root_binaries.go
package artifacts

import (
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewRootBinaries() },
		ports.ModuleMetadata{
			Description: "Root binaries found on the device",
			Priority:    8,
			Weight:      2,
		},
	)
}

var rootBinaries = map[string]string{
	"su":            "SuperUser binary",
	"busybox":       "BusyBox utilities",
	"supersu":       "SuperSU root management",
	"superuser.apk": "Superuser app",
	"kingouser.apk": "KingRoot app",
	"supersu.apk":   "SuperSU app",
	"magisk":        "Magisk root framework",
	"magiskhide":    "Magisk hide utility",
	"magiskinit":    "Magisk init binary",
	"magiskpolicy":  "Magisk policy binary",
}

// RootBinaries parses root_binaries.json, a JSON array of paths found by the
// acquisition's `which` probes. Every entry is a finding.
type RootBinaries struct {
	Base
}

func NewRootBinaries() *RootBinaries {
	return &RootBinaries{Base: newBase("root_binaries", "root_binaries.json")}
}

func (rb *RootBinaries) Parse(data []byte) error {
	rb.reset()
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	doc := gjson.ParseBytes(data)
	if !gjson.ValidBytes(data) || !doc.IsArray() {
		return errors.Wrap(errors.ErrParse, "root_binaries.json is not a JSON array")
	}
	doc.ForEach(func(_, v gjson.Result) bool {
		if p := strings.TrimSpace(v.String()); p != "" {
			rb.add(domain.NewRecord().SetString("path", p))
		}
		return true
	})
	return nil
}

func (rb *RootBinaries) CheckIndicators() {
	rb.clearDetections()
	for _, r := range rb.results {
		p := r.Str("path")
		name := strings.ToLower(path.Base(strings.ReplaceAll(p, `\`, "/")))

		desc, ok := rootBinaries[name]
		if !ok {
			desc = "unknown root file"
		}
		rb.alert(domain.AlertHigh, "Root binary found", fmt.Sprintf("Found %s at %s", desc, p), r)
		rb.match(name, domain.IndicatorFileName, r)
	}
}
