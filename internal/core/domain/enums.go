// internal/core/domain/enums.go
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AlertLevel is the ordered severity of a Detection.
type AlertLevel int

const (
	// AlertLog is something worth reporting that is not an alert
	AlertLog AlertLevel = iota
	AlertInfo
	AlertLow
	AlertMedium
	AlertHigh
	AlertCritical
)

var alertNames = [...]string{"LOG", "INFO", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

// String returns the canonical level name.
func (l AlertLevel) String() string {
	if l < AlertLog || l > AlertCritical {
		return fmt.Sprintf("AlertLevel(%d)", int(l))
	}
	return alertNames[l]
}

// IsValid reports whether l is a defined level.
func (l AlertLevel) IsValid() bool {
	return l >= AlertLog && l <= AlertCritical
}

// AtLeast reports whether l is as severe as min or more.
func (l AlertLevel) AtLeast(min AlertLevel) bool {
	return l >= min
}

// ParseAlertLevel accepts the canonical names, case-insensitive. INFORMATIONAL
// is accepted as an alias of INFO.
func ParseAlertLevel(s string) (AlertLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "INFORMATIONAL" {
		return AlertInfo, nil
	}
	for i, n := range alertNames {
		if n == name {
			return AlertLevel(i), nil
		}
	}
	return AlertLog, fmt.Errorf("unknown alert level %q", s)
}

func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *AlertLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAlertLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// IndicatorType classifies the IOCs loaded into the store.
type IndicatorType string

const (
	IndicatorOther             IndicatorType = "OTHER"
	IndicatorDomain            IndicatorType = "DOMAIN"
	IndicatorURL               IndicatorType = "URL"
	IndicatorProcess           IndicatorType = "PROCESS"
	IndicatorEmail             IndicatorType = "EMAIL"
	IndicatorAppID             IndicatorType = "APP_ID"
	IndicatorProperty          IndicatorType = "PROPERTY"
	IndicatorFilePath          IndicatorType = "FILE_PATH"
	IndicatorFileName          IndicatorType = "FILE_NAME"
	IndicatorFileHashMD5       IndicatorType = "FILE_HASH_MD5"
	IndicatorFileHashSHA1      IndicatorType = "FILE_HASH_SHA1"
	IndicatorFileHashSHA256    IndicatorType = "FILE_HASH_SHA256"
	IndicatorAppCertHashMD5    IndicatorType = "APP_CERT_HASH_MD5"
	IndicatorAppCertHashSHA1   IndicatorType = "APP_CERT_HASH_SHA1"
	IndicatorAppCertHashSHA256 IndicatorType = "APP_CERT_HASH_SHA256"
)

// MatchStyle says how a query is compared against the keywords of a type.
type MatchStyle int

const (
	// MatchExact compares the whole query against the keyword set.
	MatchExact MatchStyle = iota
	// MatchSubstring reports every keyword occurring anywhere in the query.
	MatchSubstring
)

// indicatorFieldKeys maps STIX pattern keys and MVT collection keys to types.
// Read-only; exposed through FieldKeys and TypeForKey.
var indicatorFieldKeys = map[string]IndicatorType{
	"domain-name:value":     IndicatorDomain,
	"ipv4-addr:value":       IndicatorDomain,
	"url:value":             IndicatorURL,
	"process:name":          IndicatorProcess,
	"email-addr:value":      IndicatorEmail,
	"app:id":                IndicatorAppID,
	"android-property:name": IndicatorProperty,
	"file:path":             IndicatorFilePath,
	"file:name":             IndicatorFileName,
	"file:hashes.md5":       IndicatorFileHashMD5,
	"file:hashes.sha1":      IndicatorFileHashSHA1,
	"file:hashes.sha256":    IndicatorFileHashSHA256,
	"app:cert.md5":          IndicatorAppCertHashMD5,
	"app:cert.sha1":         IndicatorAppCertHashSHA1,
	"app:cert.sha256":       IndicatorAppCertHashSHA256,
}

// AllIndicatorTypes returns every type in declaration order.
func AllIndicatorTypes() []IndicatorType {
	return []IndicatorType{
		IndicatorOther, IndicatorDomain, IndicatorURL, IndicatorProcess, IndicatorEmail,
		IndicatorAppID, IndicatorProperty, IndicatorFilePath, IndicatorFileName,
		IndicatorFileHashMD5, IndicatorFileHashSHA1, IndicatorFileHashSHA256,
		IndicatorAppCertHashMD5, IndicatorAppCertHashSHA1, IndicatorAppCertHashSHA256,
	}
}

// FieldKeys returns a copy of the field-key table.
func FieldKeys() map[string]IndicatorType {
	out := make(map[string]IndicatorType, len(indicatorFieldKeys))
	for k, v := range indicatorFieldKeys {
		out[k] = v
	}
	return out
}

// TypeForKey resolves a STIX/MVT field key. Keys are compared case-insensitively.
func TypeForKey(key string) (IndicatorType, bool) {
	t, ok := indicatorFieldKeys[strings.ToLower(strings.TrimSpace(key))]
	return t, ok
}

// IsValid reports whether t is a defined type.
func (t IndicatorType) IsValid() bool {
	for _, known := range AllIndicatorTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Style returns the comparison used for keywords of this type.
func (t IndicatorType) Style() MatchStyle {
	switch t {
	case IndicatorDomain, IndicatorURL, IndicatorEmail:
		return MatchSubstring
	default:
		return MatchExact
	}
}

// String returns the type name.
func (t IndicatorType) String() string {
	return string(t)
}
