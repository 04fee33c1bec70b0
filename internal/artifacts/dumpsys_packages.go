// internal/artifacts/dumpsys_packages.go
package artifacts

import (
	"fmt"
	"regexp"
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysPackages() },
		ports.ModuleMetadata{
			Description: "Package details and permissions from dumpsys package",
			Priority:    7,
			Weight:      25,
		},
	)
}

var packageHeader = regexp.MustCompile(`^  Package \[(.+?)\]`)

// DumpsysPackages parses the "Packages:" block of `dumpsys package`.
type DumpsysPackages struct {
	Base
}

func NewDumpsysPackages() *DumpsysPackages {
	return &DumpsysPackages{Base: newBase("dumpsys_packages", "dumpsys.txt")}
}

func (d *DumpsysPackages) Parse(data []byte) error {
	d.reset()

	var (
		inList bool
		name   string
		block  []string
	)
	flush := func() {
		if name != "" {
			d.add(parsePackageBlock(name, block))
		}
		block = nil
	}

	for _, line := range splitLines(dumpsysInput(data, "package")) {
		if strings.HasPrefix(line, "Packages:") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		if strings.HasPrefix(line, "  Package [") {
			flush()
			name = ""
			if m := packageHeader.FindStringSubmatch(line); m != nil {
				name = m[1]
			}
			continue
		}
		if name != "" {
			block = append(block, line)
		}
	}
	flush()
	return nil
}

type permissionBlock int

const (
	permNone permissionBlock = iota
	permInstall
	permRuntime
	permDeclared
	permRequested
)

// parsePackageBlock reads the indented lines of one package entry.
func parsePackageBlock(name string, lines []string) *domain.Record {
	var (
		fields      = map[string]string{}
		permissions []domain.Value
		requested   []string
		block       = permNone
	)

	for _, line := range lines {
		// A permission list ends when indentation drops back to the field level.
		switch block {
		case permInstall, permDeclared, permRequested:
			if !strings.HasPrefix(line, "      ") {
				block = permNone
			}
		case permRuntime:
			if !strings.HasPrefix(line, "        ") {
				block = permNone
			}
		}

		trimmed := strings.TrimSpace(line)
		switch block {
		case permInstall:
			permissions = append(permissions, permissionValue(trimmed, "install"))
			continue
		case permRuntime:
			permissions = append(permissions, permissionValue(trimmed, "runtime"))
			continue
		case permDeclared:
			perm, _, _ := strings.Cut(trimmed, ":")
			permissions = append(permissions, domain.Nested(domain.NewRecord().
				SetString("name", perm).
				SetString("type", "declared")))
			continue
		case permRequested:
			perm, _, _ := strings.Cut(trimmed, ":")
			requested = append(requested, perm)
			continue
		}

		switch trimmed {
		case "install permissions:":
			block = permInstall
			continue
		case "runtime permissions:":
			block = permRuntime
			continue
		case "declared permissions:":
			block = permDeclared
			continue
		case "requested permissions:":
			block = permRequested
			continue
		}

		for _, key := range []string{"userId", "versionName", "versionCode", "timeStamp", "firstInstallTime", "lastUpdateTime", "installerPackageName"} {
			if v, ok := strings.CutPrefix(trimmed, key+"="); ok {
				fields[key] = strings.TrimSpace(v)
			}
		}
	}

	versionCode, _, _ := strings.Cut(fields["versionCode"], " ")
	return domain.NewRecord().
		SetString("package_name", name).
		SetString("uid", fields["userId"]).
		SetString("version_name", fields["versionName"]).
		SetString("version_code", versionCode).
		SetString("timestamp", fields["timeStamp"]).
		SetString("first_install_time", fields["firstInstallTime"]).
		SetString("last_update_time", fields["lastUpdateTime"]).
		SetString("installer", fields["installerPackageName"]).
		Set("permissions", domain.List(permissions...)).
		Set("requested_permissions", domain.Strings(requested))
}

// permissionValue parses "android.permission.X: granted=true, flags=[ ... ]".
func permissionValue(line, kind string) domain.Value {
	perm, rest, _ := strings.Cut(line, ":")
	granted := domain.Value{}
	if strings.Contains(rest, "granted=") {
		granted = domain.Bool(strings.Contains(rest, "granted=true"))
	}
	return domain.Nested(domain.NewRecord().
		SetString("name", perm).
		Set("granted", granted).
		SetString("type", kind))
}

func (d *DumpsysPackages) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		pkg := r.Str("package_name")
		if rootPackages[pkg] {
			d.alert(domain.AlertMedium, "Root package installed",
				fmt.Sprintf("Found an installed package related to rooting/jailbreaking: %q", pkg), r)
		}
		d.match(pkg, domain.IndicatorAppID, r)
	}
}
