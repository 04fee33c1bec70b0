// internal/artifacts/dumpsys_dbinfo.go
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
		func() ports.Artifact { return NewDumpsysDBInfo() },
		ports.ModuleMetadata{
			Description: "Recent SQLite operations per database",
			Priority:    5,
			Weight:      15,
		},
	)
}

var (
	dbinfoOperation      = regexp.MustCompile(`.*\[([0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]{3})\].*\[Pid:\((\d+)\)\](\w+).*sql="(.+?)"`)
	dbinfoOperationNoPid = regexp.MustCompile(`.*\[([0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]{3})\] (\w+).*sql="(.+?)"`)
)

// DumpsysDBInfo parses the "Most recently executed operations" of every
// connection pool in `dumpsys dbinfo`.
type DumpsysDBInfo struct {
	Base
}

func NewDumpsysDBInfo() *DumpsysDBInfo {
	return &DumpsysDBInfo{Base: newBase("dumpsys_dbinfo", "dumpsys.txt")}
}

func (d *DumpsysDBInfo) Parse(data []byte) error {
	d.reset()

	var (
		pool         string
		inOperations bool
	)
	for _, line := range splitLines(dumpsysInput(data, "dbinfo")) {
		if p, ok := strings.CutPrefix(line, "Connection pool for "); ok {
			pool = strings.TrimSuffix(p, ":")
		}
		if pool == "" {
			continue
		}
		if strings.TrimSpace(line) == "Most recently executed operations:" {
			inOperations = true
			continue
		}
		if !inOperations {
			continue
		}
		if !strings.HasPrefix(line, "        ") {
			inOperations = false
			pool = ""
			continue
		}

		if m := dbinfoOperation.FindStringSubmatch(line); m != nil {
			d.add(domain.NewRecord().
				SetString("isodate", m[1]).
				SetString("pid", m[2]).
				SetString("action", m[3]).
				SetString("sql", m[4]).
				SetString("path", pool))
			continue
		}
		if m := dbinfoOperationNoPid.FindStringSubmatch(line); m != nil {
			d.add(domain.NewRecord().
				SetString("isodate", m[1]).
				SetString("action", m[2]).
				SetString("sql", m[3]).
				SetString("path", pool))
		}
	}
	return nil
}

// CheckIndicators matches every path segment as an app id, since database
// paths embed the owning package (/data/user/0/<pkg>/databases/...).
func (d *DumpsysDBInfo) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		for _, part := range strings.Split(r.Str("path"), "/") {
			d.match(part, domain.IndicatorAppID, r)
		}
	}
}
