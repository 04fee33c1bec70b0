// internal/artifacts/dumpsys_resolver.go
package artifacts

import (
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysReceivers() },
		ports.ModuleMetadata{
			Description: "Broadcast receivers from the package manager resolver table",
			Priority:    6,
			Weight:      15,
		},
	)
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysActivities() },
		ports.ModuleMetadata{
			Description: "Activities from the package manager resolver table",
			Priority:    6,
			Weight:      15,
		},
	)
}

const resolverEntryIndent = "        "

// parseResolverTable walks the "Non-Data Actions" block of a package manager
// resolver table. Intent lines use intentIndent; component lines are indented
// by eight spaces and look like "<hash> <pkg>/<component> filter <hash>".
func parseResolverTable(section, table, intentIndent, componentKey string) []*domain.Record {
	var (
		out       []*domain.Record
		inTable   bool
		inNonData bool
		intent    string
	)
	for _, line := range splitLines(section) {
		if strings.HasPrefix(line, table) {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if strings.HasPrefix(line, "  Non-Data Actions:") {
			inNonData = true
			continue
		}
		if !inNonData {
			continue
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		if strings.HasPrefix(line, intentIndent) && !strings.HasPrefix(line, resolverEntryIndent) && strings.Contains(line, ":") {
			intent = strings.ReplaceAll(strings.TrimSpace(line), ":", "")
			continue
		}
		if intent == "" {
			continue
		}
		if !strings.HasPrefix(line, resolverEntryIndent) {
			intent = ""
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		out = append(out, domain.NewRecord().
			SetString("intent", intent).
			SetString("package_name", packageOf(parts[1])).
			SetString(componentKey, parts[1]))
	}
	return out
}

// interceptingIntents are the broadcasts that let a receiver observe SMS and
// calls.
var interceptingIntents = map[string]string{
	"android.provider.Telephony.NEW_OUTGOING_SMS": "Application intercepting outgoing SMS",
	"android.provider.Telephony.SMS_RECEIVED":     "Application intercepting incoming SMS",
	"android.intent.action.DATA_SMS_RECEIVED":     "Application intercepting data SMS",
	"android.intent.action.PHONE_STATE":           "Application monitoring phone state",
	"android.intent.action.NEW_OUTGOING_CALL":     "Application monitoring outgoing calls",
}

// DumpsysReceivers lists broadcast receivers registered per intent.
type DumpsysReceivers struct {
	Base
}

func NewDumpsysReceivers() *DumpsysReceivers {
	return &DumpsysReceivers{Base: newBase("dumpsys_receivers", "dumpsys.txt")}
}

func (d *DumpsysReceivers) Parse(data []byte) error {
	d.reset()
	section := dumpsysInput(data, "package")
	d.results = parseResolverTable(section, "Receiver Resolver Table:", "     ", "receiver")
	return nil
}

func (d *DumpsysReceivers) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		intent := r.Str("intent")
		if title, ok := interceptingIntents[intent]; ok {
			d.alert(domain.AlertLog, title, r.Str("receiver")+" handles "+intent, r)
		}
		d.match(r.Str("package_name"), domain.IndicatorAppID, r)
	}
}

// DumpsysActivities lists activities registered per intent.
type DumpsysActivities struct {
	Base
}

func NewDumpsysActivities() *DumpsysActivities {
	return &DumpsysActivities{Base: newBase("dumpsys_activities", "dumpsys.txt")}
}

func (d *DumpsysActivities) Parse(data []byte) error {
	d.reset()
	section := dumpsysInput(data, "package")
	d.results = parseResolverTable(section, "Activity Resolver Table:", "      ", "activity")
	return nil
}

func (d *DumpsysActivities) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		d.match(r.Str("package_name"), domain.IndicatorAppID, r)
	}
}
