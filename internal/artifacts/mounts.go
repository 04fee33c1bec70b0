// internal/artifacts/mounts.go
package artifacts

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewMounts() },
		ports.ModuleMetadata{
			Description: "Mounted filesystems and their options",
			Priority:    8,
			Weight:      5,
		},
	)
}

var (
	systemMountPoints  = []string{"/system", "/vendor", "/product", "/system_ext"}
	suspiciousOptions  = map[string]bool{"rw": true, "remount": true, "noatime": true, "nodiratime": true}
	noatimeAllowedList = map[string]bool{
		"/system_dlkm": true,
		"/system_ext":  true,
		"/product":     true,
		"/vendor":      true,
		"/vendor_dlkm": true,
	}
)

// Mounts parses mounts.json, a JSON array of `mount` output lines such as
// "/dev/block/dm-0 on /system type ext4 (ro,seclabel)".
type Mounts struct {
	Base
}

func NewMounts() *Mounts {
	return &Mounts{Base: newBase("mounts", "mounts.json")}
}

func (m *Mounts) Parse(data []byte) error {
	m.reset()
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if !gjson.ValidBytes(data) {
		return errors.Wrap(errors.ErrParse, "mounts.json is not valid JSON")
	}

	gjson.ParseBytes(data).ForEach(func(_, entry gjson.Result) bool {
		if rec := parseMountLine(entry.String()); rec != nil {
			m.add(rec)
		}
		return true
	})
	return nil
}

func parseMountLine(entry string) *domain.Record {
	device, rest, ok := strings.Cut(entry, " on ")
	if !ok {
		return nil
	}
	mountPoint, fsPart, ok := strings.Cut(rest, " type ")
	if !ok {
		return nil
	}
	device = strings.TrimSpace(device)
	mountPoint = strings.TrimSpace(mountPoint)

	fsType, options := strings.TrimSpace(fsPart), ""
	if i := strings.Index(fsPart, "("); i >= 0 && strings.HasSuffix(fsPart, ")") {
		fsType = strings.TrimSpace(fsPart[:i])
		options = strings.TrimSpace(fsPart[i+1 : len(fsPart)-1])
	}
	if device == "" || mountPoint == "" || fsType == "" {
		return nil
	}

	var opts []string
	readWrite := false
	for _, o := range strings.Split(options, ",") {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		opts = append(opts, o)
		if o == "rw" {
			readWrite = true
		}
	}

	return domain.NewRecord().
		SetString("device", device).
		SetString("mount_point", mountPoint).
		SetString("filesystem_type", fsType).
		SetString("mount_options", options).
		Set("options_list", domain.Strings(opts)).
		Set("is_system_partition", domain.Bool(isSystemMount(mountPoint))).
		Set("is_read_write", domain.Bool(readWrite))
}

func isSystemMount(mountPoint string) bool {
	for _, p := range systemMountPoints {
		if strings.HasPrefix(mountPoint, p) {
			return true
		}
	}
	return false
}

func (m *Mounts) CheckIndicators() {
	m.clearDetections()
	for _, r := range m.results {
		mp := r.Str("mount_point")
		system := boolField(r, "is_system_partition")

		if system && boolField(r, "is_read_write") {
			if mp == "/system" {
				m.alert(domain.AlertHigh, "Root detected",
					fmt.Sprintf("System partition %s is mounted as read-write, which may indicate a rooted device", mp), r)
			} else {
				m.alert(domain.AlertHigh, "System partition mounted read-write",
					fmt.Sprintf("System partition %s is mounted as read-write", mp), r)
			}
		}

		var flagged []string
		for _, o := range stringsField(r, "options_list") {
			if suspiciousOptions[o] {
				flagged = append(flagged, o)
			}
		}
		if len(flagged) > 0 && system {
			if strings.Contains(r.Str("mount_options"), "noatime") && noatimeAllowedList[mp] {
				continue
			}
			m.alert(domain.AlertHigh, "Suspicious mount options",
				fmt.Sprintf("Mount point %s has suspicious options: %s", mp, strings.Join(flagged, ", ")), r)
		}

		if mp == "/data" || strings.HasPrefix(mp, "/sdcard") {
			m.alert(domain.AlertLog, "Data partition",
				fmt.Sprintf("Data partition %s: %s (%s)", mp, r.Str("filesystem_type"), r.Str("mount_options")), r)
		}
	}

	for _, r := range m.results {
		m.match(r.Str("mount_point"), domain.IndicatorFilePath, r)
		m.match(r.Str("device"), domain.IndicatorFilePath, r)
	}
}

func boolField(r *domain.Record, key string) bool {
	v, ok := r.Get(key)
	return ok && v.Kind() == domain.KindBool && v.Bool()
}

func stringsField(r *domain.Record, key string) []string {
	v, _ := r.Get(key)
	items := v.Items()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Text())
	}
	return out
}
