// internal/artifacts/dumpsys_appops.go
package artifacts

import (
	"fmt"
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysAppops() },
		ports.ModuleMetadata{
			Description: "App operations granted per package",
			Priority:    6,
			Weight:      20,
		},
	)
}

var (
	riskyAppopsPermissions = setOf("REQUEST_INSTALL_PACKAGES")
	riskyAppopsPackages    = setOf("com.android.shell")
)

// DumpsysAppops parses `dumpsys appops`: per uid, per package, the ops with
// their mode and the last access/reject entries.
type DumpsysAppops struct {
	Base
}

func NewDumpsysAppops() *DumpsysAppops {
	return &DumpsysAppops{Base: newBase("dumpsys_appops", "dumpsys.txt")}
}

// appopsPackage accumulates one package while the section is walked.
type appopsPackage struct {
	name, uid string
	perms     []*appopsPerm
}

type appopsPerm struct {
	name, access string
	entries      []*domain.Record
}

func (d *DumpsysAppops) Parse(data []byte) error {
	d.reset()

	var (
		inPackages bool
		uid        string
		pkg        *appopsPackage
		perm       *appopsPerm
	)
	flush := func() {
		if pkg != nil {
			d.add(pkg.record())
		}
		pkg, perm = nil, nil
	}

	for _, line := range splitLines(dumpsysInput(data, "appops")) {
		if strings.HasPrefix(line, "  Uid 0:") {
			inPackages = true
		}
		if !inPackages {
			continue
		}

		switch {
		case strings.HasPrefix(line, "  Uid "):
			flush()
			uid = strings.TrimSuffix(strings.TrimPrefix(line, "  Uid "), ":")
		case strings.HasPrefix(line, "    Package "):
			flush()
			pkg = &appopsPackage{
				name: strings.TrimSuffix(strings.TrimPrefix(line, "    Package "), ":"),
				uid:  uid,
			}
		case pkg != nil && len(line) > 6 && strings.HasPrefix(line, "      ") && line[6] != ' ':
			parts := strings.Fields(line)
			perm = &appopsPerm{name: strings.TrimSuffix(parts[0], ":")}
			if len(parts) > 1 {
				perm.access = strings.Trim(parts[1], "():")
			}
			pkg.perms = append(pkg.perms, perm)
		case strings.HasPrefix(line, "          "):
			if perm == nil {
				continue
			}
			if entry := parseAppopsEntry(line); entry != nil {
				perm.entries = append(perm.entries, entry)
			}
		case strings.TrimSpace(line) == "":
			flush()
			return nil
		}
	}
	flush()
	return nil
}

// parseAppopsEntry reads "Access: [fg-s] 2023-01-01 10:00:00.000 (-1d2h)".
func parseAppopsEntry(line string) *domain.Record {
	access, rest, _ := strings.Cut(strings.TrimSpace(line), ":")
	if access != "Access" && access != "Reject" {
		return nil
	}
	entry := domain.NewRecord().SetString("access", access)

	l, r := strings.Index(rest, "["), strings.Index(rest, "]")
	if l >= 0 && r > l {
		entry.SetString("type", rest[l+1:r])
		ts := rest[r+1:]
		if p := strings.Index(ts, "("); p >= 0 {
			ts = ts[:p]
		}
		if ts = strings.TrimSpace(ts); ts != "" {
			entry.SetString("timestamp", ts)
		}
	}
	return entry
}

func (p *appopsPackage) record() *domain.Record {
	perms := make([]domain.Value, 0, len(p.perms))
	for _, perm := range p.perms {
		entries := make([]domain.Value, 0, len(perm.entries))
		for _, e := range perm.entries {
			entries = append(entries, domain.Nested(e))
		}
		pr := domain.NewRecord().SetString("name", perm.name)
		if perm.access != "" {
			pr.SetString("access", perm.access)
		}
		pr.Set("entries", domain.List(entries...))
		perms = append(perms, domain.Nested(pr))
	}
	return domain.NewRecord().
		SetString("package_name", p.name).
		SetString("uid", p.uid).
		Set("permissions", domain.List(perms...))
}

func (d *DumpsysAppops) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		pkg := r.Str("package_name")
		d.match(pkg, domain.IndicatorAppID, r)

		perms, _ := r.Get("permissions")
		for _, pv := range perms.Items() {
			perm := pv.Record()
			name := perm.Str("name")
			switch {
			case riskyAppopsPermissions[name] && perm.Str("access") != "deny" && perm.Str("access") != "ignore":
				d.alert(domain.AlertMedium, "Risky app operation",
					fmt.Sprintf("Package %q has the %s permission (%s)", pkg, name, perm.Str("access")), r)
			case riskyAppopsPackages[pkg]:
				d.alert(domain.AlertMedium, "Risky app operation",
					fmt.Sprintf("Package %q used the %s operation", pkg, name), r)
			}
		}
	}
}
