// internal/artifacts/tombstones.go
package artifacts

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewTombstones() },
		ports.ModuleMetadata{
			Description: "Native crash tombstones",
			Priority:    4,
			Weight:      10,
		},
	)
}

const tombstoneBanner = "*** *** ***"

var timezoneSuffix = regexp.MustCompile(`[+-][0-9]{4}$`)

// privilegedUIDs are root, system and shell.
var privilegedUIDs = map[int64]string{0: "root", 1000: "system", 2000: "shell"}

// Tombstones parses text tombstones written by debuggerd. Every tombstone
// yields one record; concatenated files are split on the "*** ***" banner.
type Tombstones struct {
	Base
}

func NewTombstones() *Tombstones {
	return &Tombstones{Base: newBase("tombstones", "tombstones.txt", "tombstone_*")}
}

func (t *Tombstones) Parse(data []byte) error {
	t.reset()

	rec := domain.NewRecord()
	for _, raw := range splitLines(string(data)) {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, tombstoneBanner):
			if rec.Len() > 0 {
				t.add(rec)
				rec = domain.NewRecord()
			}
		case strings.HasPrefix(line, "Timestamp:"):
			rec.SetString("timestamp", normalizeTombstoneTime(strings.TrimSpace(line[len("Timestamp:"):])))
		case strings.HasPrefix(line, "Cmdline:"):
			rec.Set("command_line", domain.Strings(strings.Fields(line[len("Cmdline:"):])))
		case strings.HasPrefix(line, "uid:"):
			if uid, err := strconv.ParseInt(strings.TrimSpace(line[len("uid:"):]), 10, 64); err == nil {
				rec.Set("uid", domain.Int(uid))
			}
		case strings.HasPrefix(line, "pid:"):
			parseTombstonePid(line, rec)
		}
	}
	if rec.Len() > 0 {
		t.add(rec)
	}
	return nil
}

// normalizeTombstoneTime drops the UTC offset and keeps microsecond precision.
func normalizeTombstoneTime(ts string) string {
	ts = timezoneSuffix.ReplaceAllString(ts, "")
	if sec, frac, ok := strings.Cut(ts, "."); ok {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		ts = sec + "." + frac
	}
	return ts
}

// parseTombstonePid reads "pid: 25541, tid: 21307, name: foo  >>> /bin/foo <<<".
func parseTombstonePid(line string, rec *domain.Record) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return
	}
	for i, key := range []string{"pid", "tid"} {
		_, v, _ := strings.Cut(parts[i], ":")
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			rec.Set(key, domain.Int(n))
		}
	}
	if name, ok := strings.CutPrefix(strings.TrimSpace(parts[2]), "name:"); ok {
		name, _, _ = strings.Cut(name, ">>>")
		rec.SetString("process_name", strings.TrimSpace(name))
	}
}

func (t *Tombstones) CheckIndicators() {
	t.clearDetections()
	for _, r := range t.results {
		proc := r.Str("process_name")

		if v, ok := r.Get("uid"); ok && v.Kind() == domain.KindNumber {
			uid := int64(v.Float())
			if who, privileged := privilegedUIDs[uid]; privileged {
				t.alert(domain.AlertMedium, "Privileged process crashed",
					fmt.Sprintf("A process running as %s (uid %d) crashed: %q", who, uid, proc), r)
			}
		}

		t.match(proc, domain.IndicatorProcess, r)
		cmd, _ := r.Get("command_line")
		if items := cmd.Items(); len(items) > 0 && items[0].Text() != "" {
			t.match(path.Base(items[0].Text()), domain.IndicatorProcess, r)
		}
	}
}
