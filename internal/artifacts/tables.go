// internal/artifacts/tables.go
package artifacts

import "sort"

// Lookup tables shared by the package parsers. They are read only.

var rootPackages = setOf(
	"com.noshufou.android.su",
	"com.noshufou.android.su.elite",
	"eu.chainfire.supersu",
	"com.koushikdutta.superuser",
	"com.thirdparty.superuser",
	"com.yellowes.su",
	"com.koushikdutta.rommanager",
	"com.koushikdutta.rommanager.license",
	"com.dimonvideo.luckypatcher",
	"com.chelpus.lackypatch",
	"com.ramdroid.appquarantine",
	"com.ramdroid.appquarantinepro",
	"com.devadvance.rootcloak",
	"com.devadvance.rootcloakplus",
	"de.robv.android.xposed.installer",
	"com.saurik.substrate",
	"com.zachspong.temprootremovejb",
	"com.amphoras.hidemyroot",
	"com.amphoras.hidemyrootadfree",
	"com.formyhm.hiderootPremium",
	"com.formyhm.hideroot",
	"me.phh.superuser",
	"eu.chainfire.supersu.pro",
	"com.kingouser.com",
	"com.topjohnwu.magisk",
)

var securityPackages = setOf(
	"com.policydm",
	"com.samsung.android.app.omcagent",
	"com.samsung.android.securitylogagent",
	"com.sec.android.soagent",
)

var systemUpdatePackages = setOf(
	"com.android.updater",
	"com.google.android.gms",
	"com.huawei.android.hwouc",
	"com.lge.lgdmsclient",
	"com.motorola.ccc.ota",
	"com.oneplus.opbackup",
	"com.oppo.ota",
	"com.transsion.systemupdate",
	"com.wssyncmldm",
)

var thirdPartyStoreInstallers = setOf(
	"com.aurora.store",
	"org.fdroid.fdroid",
)

var browserInstallers = setOf(
	"com.google.android.packageinstaller",
	"com.android.packageinstaller",
)

// RootPackages returns the known rooting and root-hiding package names, sorted.
func RootPackages() []string {
	out := make([]string, 0, len(rootPackages))
	for p := range rootPackages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
