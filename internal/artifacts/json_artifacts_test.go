// internal/artifacts/json_artifacts_test.go
package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/testutil"
)

const fixtureMounts = `[
  "/dev/block/dm-0 on / type ext4 (ro,seclabel,relatime)",
  "/dev/block/dm-1 on /system type ext4 (rw,seclabel,relatime)",
  "/dev/block/dm-2 on /vendor type ext4 (ro,seclabel,noatime)",
  "/dev/block/dm-3 on /system_dlkm type erofs (ro,noatime)",
  "/dev/block/dm-4 on /data type f2fs (rw,lazytime,seclabel,nosuid,nodev,noatime)",
  "garbage entry",
  ""
]`

func TestMounts(t *testing.T) {
	m := NewMounts()
	require.NoError(t, m.Parse([]byte(fixtureMounts)))
	require.Len(t, m.Results(), 5)

	system := m.Results()[1]
	assert.Equal(t, "/system", system.Str("mount_point"))
	assert.Equal(t, "ext4", system.Str("filesystem_type"))
	assert.True(t, boolField(system, "is_system_partition"))
	assert.True(t, boolField(system, "is_read_write"))
	assert.Equal(t, []string{"rw", "seclabel", "relatime"}, stringsField(system, "options_list"))

	matcher := testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorFilePath: {"/dev/block/dm-4"},
	})
	m.SetIndicators(matcher)
	m.CheckIndicators()

	counts := domain.CountByLevel(m.Detected())
	// /system rw: read-write plus suspicious options. noatime on /vendor and
	// /system_dlkm is allow listed.
	assert.Equal(t, 2, counts[domain.AlertHigh])
	assert.Equal(t, 1, counts[domain.AlertLog])
	assert.Equal(t, 1, counts[domain.AlertCritical])
}

func TestMounts_InvalidJSON(t *testing.T) {
	m := NewMounts()
	err := m.Parse([]byte("not json"))
	assert.True(t, errors.IsParse(err))

	require.NoError(t, m.Parse(nil))
	assert.Empty(t, m.Results())
}

func TestFiles(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"json array", `[{"path":"/data/local/tmp/impl","mode":"0755","sha256":"AAA"},{"path":"/sdcard/a.jpg","mode":420}]`},
		{"json lines", "{\"path\":\"/data/local/tmp/impl\",\"mode\":\"0755\",\"sha256\":\"AAA\"}\nnot json\n{\"path\":\"/sdcard/a.jpg\",\"mode\":420}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFiles()
			require.NoError(t, f.Parse([]byte(tt.input)))
			require.Len(t, f.Results(), 2)

			f.CheckIndicators()
			require.Len(t, f.Detected(), 1)
			assert.Equal(t, domain.AlertHigh, f.Detected()[0].Level)
			assert.Contains(t, f.Detected()[0].Message, "executable file")
		})
	}
}

func TestFiles_IndicatorMatchSkipsHeuristic(t *testing.T) {
	f := NewFiles()
	require.NoError(t, f.Parse([]byte(`[{"path":"/data/local/tmp/impl","mode":0,"sha256":"abc"}]`)))
	f.SetIndicators(testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorFilePath:       {"/data/local/tmp/impl"},
		domain.IndicatorFileHashSHA256: {"ABC"},
	}))
	f.CheckIndicators()

	counts := domain.CountByLevel(f.Detected())
	assert.Equal(t, 2, counts[domain.AlertCritical])
	assert.Zero(t, counts[domain.AlertHigh])
}

func TestRootBinaries(t *testing.T) {
	rb := NewRootBinaries()
	require.NoError(t, rb.Parse([]byte(`["/system/xbin/su", "/sbin/MagiskInit", "/data/local/tmp/weird", ""]`)))
	require.Len(t, rb.Results(), 3)

	rb.CheckIndicators()
	require.Len(t, rb.Detected(), 3)
	assert.Contains(t, rb.Detected()[0].Message, "SuperUser binary")
	assert.Contains(t, rb.Detected()[1].Message, "Magisk init binary")
	assert.Contains(t, rb.Detected()[2].Message, "unknown root file")

	assert.True(t, errors.IsParse(rb.Parse([]byte(`{"a":1}`))))
}

const fixturePackagesJSON = `[
  {"name":"com.example.spyware","disabled":false,"installer":"null","uid":10201,"system":false,"third_party":true,
   "files":[{"path":"/data/app/spy/base.apk","local_name":"","md5":"m","sha1":"s","sha256":"deadbeef","sha512":"x",
             "certificate":{"Md5":"c1","Sha1":"c2","Sha256":"CERT256"}}]},
  {"name":"com.topjohnwu.magisk","disabled":false,"installer":"null","uid":10202,"system":false,"third_party":true,"files":[]},
  {"name":"org.example.fdroidapp","disabled":false,"installer":"org.fdroid.fdroid","uid":10203,"system":false,"third_party":true,"files":[]},
  {"name":"com.example.sideload","disabled":false,"installer":"com.google.android.packageinstaller","uid":10204,"system":false,"third_party":true,"files":[]},
  {"name":"com.google.android.gms","disabled":true,"installer":"com.android.vending","uid":10014,"system":true,"third_party":false,"files":[]},
  {"name":"com.android.settings","disabled":false,"installer":"null","uid":1000,"system":true,"third_party":false,"files":[]}
]`

func TestPackages(t *testing.T) {
	p := NewPackages()
	require.NoError(t, p.Parse([]byte(fixturePackagesJSON)))
	require.Len(t, p.Results(), 6)

	files, _ := p.Results()[0].Get("files")
	require.Len(t, files.Items(), 1)
	assert.Equal(t, "CERT256", files.Items()[0].Record().Str("certificate_sha256"))

	m := testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorAppID:             {"com.example.spyware"},
		domain.IndicatorFileHashSHA256:    {"DEADBEEF"},
		domain.IndicatorAppCertHashSHA256: {"cert256"},
	})
	p.SetIndicators(m)
	p.CheckIndicators()

	counts := domain.CountByLevel(p.Detected())
	assert.Equal(t, 3, counts[domain.AlertCritical])
	assert.Equal(t, 1, counts[domain.AlertHigh], "spyware installed outside any store")
	assert.Equal(t, 1, counts[domain.AlertInfo], "f-droid install")
	// magisk root package, browser install, disabled gms
	assert.Equal(t, 3, counts[domain.AlertMedium])
	assert.True(t, m.Queried("/data/app/spy/base.apk", domain.IndicatorFilePath))
}
