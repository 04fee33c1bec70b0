// internal/artifacts/settings.go
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
		func() ports.Artifact { return NewSettings() },
		ports.ModuleMetadata{
			Description: "System, secure and global settings",
			Priority:    9,
			Weight:      5,
		},
	)
}

type dangerousSetting struct {
	safeValue   string
	description string
}

var dangerousSettings = map[string]dangerousSetting{
	"verifier_verify_adb_installs":  {"1", "disabled Google Play Services apps verification"},
	"package_verifier_enable":       {"1", "disabled Google Play Protect"},
	"package_verifier_state":        {"1", "disabled APK package verification"},
	"package_verifier_user_consent": {"1", "disabled Google Play Protect"},
	"upload_apk_enable":             {"1", "disabled Google Play Protect"},
	"adb_install_need_confirm":      {"1", "disabled confirmation of adb apps installation"},
	"send_security_reports":         {"1", "disabled sharing of security reports"},
	"samsung_errorlog_agree":        {"1", "disabled sharing of crash logs with manufacturer"},
	"send_action_app_error":         {"1", "disabled applications errors reports"},
	"accessibility_enabled":         {"0", "enabled accessibility services"},
}

// Settings parses `settings list` dumps. The runner concatenates every
// settings_*.txt file of the bundle into one input.
type Settings struct {
	Base
}

func NewSettings() *Settings {
	return &Settings{Base: newBase("settings", "settings_*.txt")}
}

// Parse keeps one record per setting name. The same name in several
// namespace files collapses into one record holding the last value seen.
// Lines without '=' or with an empty key are skipped.
func (s *Settings) Parse(data []byte) error {
	s.reset()
	byName := make(map[string]*domain.Record)
	for _, line := range splitLines(string(data)) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || key == "" {
			continue
		}
		if r, seen := byName[key]; seen {
			r.SetString("value", value)
			continue
		}
		r := domain.NewRecord().SetString("name", key).SetString("value", value)
		byName[key] = r
		s.add(r)
	}
	return nil
}

func (s *Settings) CheckIndicators() {
	s.clearDetections()
	for _, r := range s.results {
		ds, ok := dangerousSettings[r.Str("name")]
		if !ok || r.Str("value") == ds.safeValue {
			continue
		}
		s.alert(domain.AlertInfo, "Potentially dangerous setting",
			fmt.Sprintf("Found suspicious setting %q = %q (%s)", r.Str("name"), r.Str("value"), ds.description),
			r)
	}
}

// Lookup returns the value of name.
func (s *Settings) Lookup(name string) (string, bool) {
	for _, r := range s.results {
		if r.Str("name") == name {
			return r.Str("value"), true
		}
	}
	return "", false
}
