// internal/artifacts/packages.go
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
		func() ports.Artifact { return NewPackages() },
		ports.ModuleMetadata{
			Description: "Installed packages with APK hashes and certificates",
			Priority:    9,
			Weight:      20,
		},
	)
}

// Packages parses packages.json as written by the acquisition's packages
// module. The dumpsys based view lives in DumpsysPackages.
type Packages struct {
	Base
}

func NewPackages() *Packages {
	return &Packages{Base: newBase("packages", "packages.json")}
}

// packageFileHashes maps packages.json file keys to the indicator type they
// are matched as.
var packageFileHashes = []struct {
	key string
	typ domain.IndicatorType
}{
	{"md5", domain.IndicatorFileHashMD5},
	{"sha1", domain.IndicatorFileHashSHA1},
	{"sha256", domain.IndicatorFileHashSHA256},
	{"certificate_md5", domain.IndicatorAppCertHashMD5},
	{"certificate_sha1", domain.IndicatorAppCertHashSHA1},
	{"certificate_sha256", domain.IndicatorAppCertHashSHA256},
}

func (p *Packages) Parse(data []byte) error {
	p.reset()
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	doc := gjson.ParseBytes(data)
	if !gjson.ValidBytes(data) || !doc.IsArray() {
		return errors.Wrap(errors.ErrParse, "packages.json is not a JSON array")
	}

	doc.ForEach(func(_, obj gjson.Result) bool {
		name := obj.Get("name").String()
		if name == "" {
			return true
		}
		var files []domain.Value
		obj.Get("files").ForEach(func(_, f gjson.Result) bool {
			files = append(files, domain.Nested(domain.NewRecord().
				SetString("path", f.Get("path").String()).
				SetString("local_name", f.Get("local_name").String()).
				SetString("md5", f.Get("md5").String()).
				SetString("sha1", f.Get("sha1").String()).
				SetString("sha256", f.Get("sha256").String()).
				SetString("sha512", f.Get("sha512").String()).
				SetString("certificate_md5", f.Get("certificate.Md5").String()).
				SetString("certificate_sha1", f.Get("certificate.Sha1").String()).
				SetString("certificate_sha256", f.Get("certificate.Sha256").String())))
			return true
		})

		p.add(domain.NewRecord().
			SetString("name", name).
			Set("disabled", domain.Bool(obj.Get("disabled").Bool())).
			SetString("installer", obj.Get("installer").String()).
			Set("uid", domain.Int(obj.Get("uid").Int())).
			Set("system", domain.Bool(obj.Get("system").Bool())).
			Set("third_party", domain.Bool(obj.Get("third_party").Bool())).
			Set("files", domain.List(files...)))
		return true
	})
	return nil
}

func (p *Packages) CheckIndicators() {
	p.clearDetections()
	for _, r := range p.results {
		name := r.Str("name")
		installer := r.Str("installer")
		disabled := boolField(r, "disabled")

		if rootPackages[name] {
			p.alert(domain.AlertMedium, "Root package installed",
				fmt.Sprintf("Found an installed package related to rooting/jailbreaking: %q", name), r)
			p.matchPackage(r)
			continue
		}

		switch {
		case installer == "null" && !boolField(r, "system"):
			p.alert(domain.AlertHigh, "Package installed outside of any store",
				fmt.Sprintf("Found a non-system package installed via adb or another unknown source: %q", name), r)
		case thirdPartyStoreInstallers[installer]:
			p.alert(domain.AlertInfo, "Package installed from a third-party store",
				fmt.Sprintf("Found a package installed via a third party store (installer=%q): %q", installer, name), r)
		case browserInstallers[installer]:
			p.alert(domain.AlertMedium, "Package installed from the browser",
				fmt.Sprintf("Found a package installed via a browser (installer=%q): %q", installer, name), r)
		}

		if securityPackages[name] && disabled {
			p.alert(domain.AlertMedium, "Security package disabled",
				fmt.Sprintf("Security package %q is disabled on the phone", name), r)
		}
		if systemUpdatePackages[name] && disabled {
			p.alert(domain.AlertMedium, "System update package disabled",
				fmt.Sprintf("System updates package %q is disabled on the phone", name), r)
		}

		p.matchPackage(r)
	}
}

func (p *Packages) matchPackage(r *domain.Record) {
	p.match(r.Str("name"), domain.IndicatorAppID, r)

	files, _ := r.Get("files")
	for _, fv := range files.Items() {
		f := fv.Record()
		p.match(f.Str("path"), domain.IndicatorFilePath, r)
		for _, h := range packageFileHashes {
			p.match(f.Str(h.key), h.typ, r)
		}
	}
}
