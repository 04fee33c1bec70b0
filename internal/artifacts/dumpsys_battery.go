// internal/artifacts/dumpsys_battery.go
package artifacts

import (
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysBatteryDaily() },
		ports.ModuleMetadata{
			Description: "Package updates from the daily battery stats",
			Priority:    5,
			Weight:      10,
		},
	)
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysBatteryHistory() },
		ports.ModuleMetadata{
			Description: "Jobs, wakeups and foreground apps from the battery history",
			Priority:    5,
			Weight:      30,
		},
	)
}

// DumpsysBatteryDaily extracts "Update <pkg> vers=<n>" events per day range.
type DumpsysBatteryDaily struct {
	Base
}

func NewDumpsysBatteryDaily() *DumpsysBatteryDaily {
	return &DumpsysBatteryDaily{Base: newBase("dumpsys_battery_daily", "dumpsys.txt")}
}

func (d *DumpsysBatteryDaily) Parse(data []byte) error {
	d.reset()

	var (
		from, to string
		inDaily  bool
		seen     map[string]bool
	)
	for _, line := range splitLines(dumpsysInput(data, "batterystats")) {
		if rest, ok := strings.CutPrefix(line, "  Daily from "); ok {
			span, end, found := strings.Cut(strings.ReplaceAll(strings.TrimSpace(rest), ":", ""), " to ")
			if !found || len(span) < 10 || len(end) < 10 {
				inDaily = false
				continue
			}
			from, to, inDaily = span[:10], end[:10], true
			seen = make(map[string]bool)
			continue
		}
		if !inDaily {
			continue
		}
		update, ok := strings.CutPrefix(strings.TrimSpace(line), "Update ")
		if !ok {
			continue
		}
		pkg, attrs, _ := strings.Cut(update, " ")
		_, vers, _ := strings.Cut(attrs, "=")
		if seen[pkg+"\x00"+vers] {
			continue
		}
		seen[pkg+"\x00"+vers] = true
		d.add(domain.NewRecord().
			SetString("action", "update").
			SetString("from", from).
			SetString("to", to).
			SetString("package_name", pkg).
			SetString("vers", vers))
	}
	return nil
}

func (d *DumpsysBatteryDaily) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		d.match(r.Str("package_name"), domain.IndicatorAppID, r)
	}
}

// DumpsysBatteryHistory extracts job, wakeup alarm and top-app events from
// the battery history log.
type DumpsysBatteryHistory struct {
	Base
}

func NewDumpsysBatteryHistory() *DumpsysBatteryHistory {
	return &DumpsysBatteryHistory{Base: newBase("dumpsys_battery_history", "dumpsys.txt")}
}

func (d *DumpsysBatteryHistory) Parse(data []byte) error {
	d.reset()

	inHistory := false
	for _, line := range splitLines(dumpsysInput(data, "batterystats")) {
		if strings.HasPrefix(line, "Battery History ") {
			inHistory = true
			continue
		}
		if !inHistory {
			continue
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		if rec := parseHistoryEvent(line); rec != nil {
			d.add(rec)
		}
	}
	return nil
}

// parseHistoryEvent handles one history line; uninteresting lines yield nil.
func parseHistoryEvent(line string) *domain.Record {
	elapsed, _, _ := strings.Cut(strings.TrimSpace(line), " ")

	var event, uid, service, pkg string
	switch {
	case strings.Contains(line, "+job"), strings.Contains(line, "-job"):
		marker := "+job"
		event = "start_job"
		if !strings.Contains(line, "+job") {
			marker, event = "-job", "end_job"
		}
		start := strings.Index(line, marker) + len(marker) + 1
		if start > len(line) {
			return nil
		}
		var ok bool
		uid, service, ok = strings.Cut(line[start:], ":")
		if !ok {
			return nil
		}
		service = strings.TrimSpace(strings.ReplaceAll(service, `"`, ""))
		pkg = packageOf(service)

	case strings.Contains(line, "+running +wake_lock="):
		event = "wake"
		start := strings.Index(line, "+running +wake_lock=") + len("+running +wake_lock=")
		var ok bool
		uid, _, ok = strings.Cut(line[start:], ":")
		if !ok {
			return nil
		}
		i := strings.Index(line, "*walarm*:")
		if i < 0 {
			return nil
		}
		service, _, _ = strings.Cut(line[i+len("*walarm*:"):], " ")
		service = strings.TrimSpace(strings.ReplaceAll(service, `"`, ""))
		if !strings.Contains(service, "/") {
			return nil
		}
		pkg = packageOf(service)

	case strings.Contains(line, "+top="), strings.Contains(line, "-top"):
		marker := "+top="
		event = "start_top"
		if !strings.Contains(line, marker) {
			marker, event = "-top=", "end_top"
		}
		i := strings.Index(line, marker)
		if i < 0 {
			return nil
		}
		var ok bool
		uid, pkg, ok = strings.Cut(line[i+len(marker):], ":")
		if !ok {
			return nil
		}
		pkg = strings.TrimSpace(strings.ReplaceAll(pkg, `"`, ""))

	default:
		return nil
	}

	return domain.NewRecord().
		SetString("time_elapsed", elapsed).
		SetString("event", event).
		SetString("uid", uid).
		SetString("package_name", pkg).
		SetString("service", service)
}

func (d *DumpsysBatteryHistory) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		d.match(r.Str("package_name"), domain.IndicatorAppID, r)
	}
}
