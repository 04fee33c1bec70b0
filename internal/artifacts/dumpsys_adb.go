// internal/artifacts/dumpsys_adb.go
package artifacts

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewDumpsysAdb() },
		ports.ModuleMetadata{
			Description: "Trusted adb keys",
			Priority:    6,
			Weight:      3,
		},
	)
}

// DumpsysAdb parses `dumpsys adb` and fingerprints the trusted keys the same
// way the device shows them in settings.
type DumpsysAdb struct {
	Base
}

func NewDumpsysAdb() *DumpsysAdb {
	return &DumpsysAdb{Base: newBase("dumpsys_adb", "dumpsys.txt")}
}

type adbKeyStore struct {
	Keys []struct {
		Key            string `xml:"key,attr"`
		LastConnection string `xml:"lastConnection,attr"`
	} `xml:"adbKey"`
}

// Parse produces a single record with user_keys and keystore lists.
func (d *DumpsysAdb) Parse(data []byte) error {
	d.reset()
	text := dumpsysInput(data, "adb")
	if strings.TrimSpace(text) == "" || strings.Contains(text, "Can't find service: adb") {
		return nil
	}

	rec := domain.NewRecord()
	lines := splitLines(text)
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if v, ok := strings.CutPrefix(line, "user_keys="); ok {
			rec.Set("user_keys", domain.List(domain.Nested(adbKeyInfo(strings.TrimSpace(v)))))
		}
		v, ok := strings.CutPrefix(line, "keystore=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if !strings.HasPrefix(v, "<?xml") {
			rec.Set("keystore", domain.Strings([]string{v}))
			continue
		}

		doc := []string{v}
		for j := i + 1; j < len(lines); j++ {
			doc = append(doc, lines[j])
			if strings.Contains(lines[j], "</keyStore>") {
				i = j
				break
			}
		}
		var ks adbKeyStore
		if err := xml.Unmarshal([]byte(strings.Join(doc, "\n")), &ks); err != nil {
			continue
		}
		var keys []domain.Value
		for _, k := range ks.Keys {
			info := adbKeyInfo(k.Key)
			if k.LastConnection != "" {
				info.SetString("last_connected", k.LastConnection)
			}
			keys = append(keys, domain.Nested(info))
		}
		rec.Set("keystore", domain.List(keys...))
	}
	d.add(rec)
	return nil
}

// adbKeyInfo splits "<base64 key> <user@host>" and computes the MD5
// fingerprint of the decoded key as colon separated upper-case hex.
func adbKeyInfo(userKey string) *domain.Record {
	key, user, _ := strings.Cut(userKey, " ")

	fingerprint := ""
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil {
		sum := md5.Sum(raw)
		parts := make([]string, len(sum))
		for i, b := range sum {
			parts[i] = fmt.Sprintf("%02X", b)
		}
		fingerprint = strings.Join(parts, ":")
	}
	return domain.NewRecord().
		SetString("user", user).
		SetString("fingerprint", fingerprint).
		SetString("key", key)
}

// CheckIndicators only logs the trusted keys; there is no IOC type for them.
func (d *DumpsysAdb) CheckIndicators() {
	d.clearDetections()
	for _, r := range d.results {
		for _, field := range []string{"user_keys", "keystore"} {
			v, _ := r.Get(field)
			for _, k := range v.Items() {
				if k.Record() == nil {
					continue
				}
				d.alert(domain.AlertLog, "Trusted adb key",
					fmt.Sprintf("adb key %s (%s)", k.Record().Str("fingerprint"), k.Record().Str("user")), r)
			}
		}
	}
}
