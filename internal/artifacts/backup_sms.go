// internal/artifacts/backup_sms.go
package artifacts

import (
	"bytes"
	"compress/zlib"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewBackupSMS() },
		ports.ModuleMetadata{
			Description: "SMS and MMS messages from an Android backup",
			Priority:    3,
			Weight:      60,
		},
	)
}

var linkPattern = regexp.MustCompile(`(?i)https?://\S+`)

// BackupSMS extracts SMS/MMS messages from an `adb backup` archive and checks
// the links they carry.
type BackupSMS struct {
	Base
	password string
}

func NewBackupSMS() *BackupSMS {
	return &BackupSMS{Base: newBase("backup_sms", "backup.ab")}
}

// SetBackupPassword sets the password used for encrypted backups.
func (b *BackupSMS) SetBackupPassword(password string) { b.password = password }

func (b *BackupSMS) Parse(data []byte) error {
	b.reset()
	if len(data) == 0 {
		return nil
	}

	tarData, err := DecodeBackup(data, b.password)
	if err != nil {
		return errors.Classify(errors.ErrParse, err, "decode backup")
	}
	chunks, err := telephonyBackups(tarData)
	for _, chunk := range chunks {
		msgs, perr := parseSMSChunk(chunk)
		if perr != nil {
			continue
		}
		for _, m := range msgs {
			b.add(m)
		}
	}
	if err != nil {
		return errors.Classify(errors.ErrParse, err, "read backup tar")
	}
	return nil
}

// parseSMSChunk inflates one telephony backup file and converts its JSON
// array of messages into records.
func parseSMSChunk(chunk []byte) ([]*domain.Record, error) {
	zr, err := zlib.NewReader(bytes.NewReader(chunk))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrap(errors.ErrFormat, "sms backup is not valid JSON")
	}

	var out []*domain.Record
	gjson.ParseBytes(data).ForEach(func(_, obj gjson.Result) bool {
		if !obj.IsObject() {
			return true
		}
		rec := jsonRecord(obj)
		if v, ok := rec.Get("mms_body"); ok {
			rec.Set("body", v)
		}

		if body, ok := rec.Get("body"); ok && body.Kind() == domain.KindString {
			links := linkPattern.FindAllString(body.Text(), -1)
			if len(links) > 0 || strings.TrimSpace(body.Text()) == "" {
				rec.Set("links", domain.Strings(links))
				rec.Set("domains", domain.Strings(registrableDomains(links)))
			}
		}

		rec.SetString("isodate", epochMillisISO(obj.Get("date")))
		direction := "received"
		if millis(obj.Get("date_sent")) > 0 {
			direction = "sent"
		}
		rec.SetString("direction", direction)
		out = append(out, rec)
		return true
	})
	return out, nil
}

// millis reads a number that backups store either as JSON number or string.
func millis(v gjson.Result) int64 {
	if v.Type == gjson.String {
		n, _ := strconv.ParseInt(v.Str, 10, 64)
		return n
	}
	return v.Int()
}

func epochMillisISO(v gjson.Result) string {
	return time.UnixMilli(millis(v)).UTC().Format(time.RFC3339Nano)
}

// CheckIndicators matches every link as URL and its host as DOMAIN. The
// registrable domains are not queried: DOMAIN keywords match as substrings,
// so the host already covers them.
func (b *BackupSMS) CheckIndicators() {
	b.clearDetections()
	for _, r := range b.results {
		links, _ := r.Get("links")
		for _, l := range links.Items() {
			b.match(l.Text(), domain.IndicatorURL, r)
			b.match(linkHost(l.Text()), domain.IndicatorDomain, r)
		}
	}
}

func linkHost(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// registrableDomains returns the distinct eTLD+1 of every link.
func registrableDomains(links []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range links {
		host := linkHost(l)
		if host == "" {
			continue
		}
		d, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
