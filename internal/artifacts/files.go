// internal/artifacts/files.go
package artifacts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewFiles() },
		ports.ModuleMetadata{
			Description: "File inventory with hashes and modes",
			Priority:    5,
			Weight:      40,
		},
	)
}

var suspiciousPaths = []string{"/data/local/tmp/"}

// executableBits is S_IXUSR|S_IXGRP|S_IXOTH.
const executableBits = 0o111

// Files parses files.json, either a JSON array of objects or JSON lines.
type Files struct {
	Base
}

func NewFiles() *Files {
	return &Files{Base: newBase("files", "files.json")}
}

func (f *Files) Parse(data []byte) error {
	f.reset()

	if gjson.ValidBytes(data) {
		doc := gjson.ParseBytes(data)
		if doc.IsArray() {
			doc.ForEach(func(_, obj gjson.Result) bool {
				if obj.IsObject() {
					f.add(jsonRecord(obj))
				}
				return true
			})
			return nil
		}
	}

	// JSON lines; invalid lines are skipped
	for _, line := range splitLines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		if obj := gjson.Parse(line); obj.IsObject() {
			f.add(jsonRecord(obj))
		}
	}
	return nil
}

func (f *Files) CheckIndicators() {
	f.clearDetections()
	for _, r := range f.results {
		path := r.Str("path")
		if path == "" {
			continue
		}
		f.match(r.Str("sha256"), domain.IndicatorFileHashSHA256, r)
		if f.match(path, domain.IndicatorFilePath, r) {
			continue
		}

		for _, prefix := range suspiciousPaths {
			if !strings.HasPrefix(path, prefix) {
				continue
			}
			kind := ""
			if fileMode(r)&executableBits != 0 {
				kind = "executable "
			}
			f.alert(domain.AlertHigh, "Suspicious file location",
				fmt.Sprintf("Found %sfile at suspicious path %s", kind, path), r)
		}
	}
}

// fileMode accepts a numeric mode or a string in Go integer literal syntax
// ("0755", "0x1ed", "493").
func fileMode(r *domain.Record) int64 {
	v, ok := r.Get("mode")
	if !ok {
		return 0
	}
	switch v.Kind() {
	case domain.KindNumber:
		return int64(v.Float())
	case domain.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 0, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
