// internal/artifacts/dumpsys_test.go
package artifacts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/testutil"
)

func TestExtractDumpsysSection(t *testing.T) {
	section := ExtractDumpsysSection(testutil.FixtureDumpsysPackage, "DUMP OF SERVICE package:")
	lines := strings.Split(section, "\n")
	assert.Equal(t, "Activity Resolver Table:", lines[0], "header line is excluded")
	assert.NotContains(t, section, "WINDOW MANAGER")
	assert.NotContains(t, section, testutil.FixtureDumpsysSeparator)

	assert.Equal(t, section, ExtractDumpsysSection(testutil.FixtureDumpsysPackage, "package"))
	assert.Equal(t, "ACCESSIBILITY MANAGER (dumpsys accessibility)",
		ExtractDumpsysSection(testutil.FixtureDumpsysPackage, "accessibility"))
	assert.Empty(t, ExtractDumpsysSection(testutil.FixtureDumpsysPackage, "adb"))
}

func TestDumpsysReceivers(t *testing.T) {
	m := testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorAppID: {"com.example.spyware"},
	})
	d := NewDumpsysReceivers()
	require.NoError(t, d.Parse([]byte(testutil.FixtureDumpsysPackage)))

	require.Len(t, d.Results(), 4)
	first := d.Results()[0]
	assert.Equal(t, "android.provider.Telephony.NEW_OUTGOING_SMS", first.Str("intent"))
	assert.Equal(t, "com.example.spyware", first.Str("package_name"))
	assert.Equal(t, "com.example.spyware/.SmsReceiver", first.Str("receiver"))

	d.SetIndicators(m)
	d.CheckIndicators()
	counts := domain.CountByLevel(d.Detected())
	assert.Equal(t, 3, counts[domain.AlertLog], "outgoing SMS plus two phone state receivers")
	assert.Equal(t, 2, counts[domain.AlertCritical])
}

func TestDumpsysActivities(t *testing.T) {
	d := NewDumpsysActivities()
	require.NoError(t, d.Parse([]byte(testutil.FixtureDumpsysPackage)))

	require.Len(t, d.Results(), 2)
	assert.Equal(t, "android.intent.action.MAIN", d.Results()[1].Str("intent"))
	assert.Equal(t, "com.example.spyware/.MainActivity", d.Results()[1].Str("activity"))
}

func TestDumpsysPackages(t *testing.T) {
	d := NewDumpsysPackages()
	require.NoError(t, d.Parse([]byte(testutil.FixtureDumpsysPackage)))
	require.Len(t, d.Results(), 2)

	spy := d.Results()[0]
	assert.Equal(t, "com.example.spyware", spy.Str("package_name"))
	assert.Equal(t, "10201", spy.Str("uid"))
	assert.Equal(t, "7", spy.Str("version_code"))
	assert.Equal(t, "1.0.7", spy.Str("version_name"))
	assert.Equal(t, "2023-05-01 10:11:13", spy.Str("first_install_time"))
	assert.Equal(t, "null", spy.Str("installer"))

	req, _ := spy.Get("requested_permissions")
	require.Len(t, req.Items(), 2)
	assert.Equal(t, "android.permission.RECORD_AUDIO", req.Items()[1].Text())

	d.CheckIndicators()
	require.Len(t, d.Detected(), 1)
	assert.Equal(t, domain.AlertMedium, d.Detected()[0].Level)
	assert.Contains(t, d.Detected()[0].Message, "com.topjohnwu.magisk")
}

func TestDumpsysPackages_PermissionBlocks(t *testing.T) {
	input := "Packages:\n" +
		"  Package [com.example.app] (abc):\n" +
		"    userId=10100\n" +
		"    declared permissions:\n" +
		"      com.example.app.PERM: prot=signature\n" +
		"    install permissions:\n" +
		"      android.permission.INTERNET: granted=true\n" +
		"    User 0: ceDataInode=1\n" +
		"      runtime permissions:\n" +
		"        android.permission.CAMERA: granted=false, flags=[ USER_SET ]\n" +
		"    lastUpdateTime=2024-01-01 00:00:00\n"
	d := NewDumpsysPackages()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 1)

	rec := d.Results()[0]
	perms, _ := rec.Get("permissions")
	require.Len(t, perms.Items(), 3)

	declared := perms.Items()[0].Record()
	assert.Equal(t, "com.example.app.PERM", declared.Str("name"))
	assert.Equal(t, "declared", declared.Str("type"))

	install := perms.Items()[1].Record()
	granted, _ := install.Get("granted")
	assert.True(t, granted.Bool())

	runtime := perms.Items()[2].Record()
	assert.Equal(t, "runtime", runtime.Str("type"))
	granted, _ = runtime.Get("granted")
	assert.Equal(t, domain.KindBool, granted.Kind())
	assert.False(t, granted.Bool())

	assert.Equal(t, "2024-01-01 00:00:00", rec.Str("last_update_time"))
}

func TestDumpsysAccessibility(t *testing.T) {
	legacy := "ACCESSIBILITY MANAGER (dumpsys accessibility)\n" +
		"User state[attributes:{id=0, currentUser=true}\n" +
		"     installed services: {\n" +
		"        0 : com.android.talkback/com.google.android.marvin.talkback.TalkBackService\n" +
		"        1 : com.example.spyware/.KeyLogger\n" +
		"     }\n"
	d := NewDumpsysAccessibility()
	require.NoError(t, d.Parse([]byte(legacy)))
	require.Len(t, d.Results(), 2)
	assert.Equal(t, "com.example.spyware", d.Results()[1].Str("package_name"))
	assert.Equal(t, "com.example.spyware/.KeyLogger", d.Results()[1].Str("service"))

	v14 := "ACCESSIBILITY MANAGER (dumpsys accessibility)\n" +
		"  Enabled services:{{com.example.spyware/com.example.spyware.Svc}}\n"
	require.NoError(t, d.Parse([]byte(v14)))
	require.Len(t, d.Results(), 1)
	assert.Equal(t, "com.example.spyware", d.Results()[0].Str("package_name"))
	assert.Equal(t, "com.example.spyware.Svc", d.Results()[0].Str("service"))
}

func TestDumpsysAdb(t *testing.T) {
	// base64("hello"), whose md5 is 5d41402abc4b2a76b9719d911017c592
	input := "ADB MANAGER STATE (dumpsys adb):\n" +
		"  user_keys=aGVsbG8= user@laptop\n" +
		"  keystore=<?xml version='1.0' encoding='utf-8' standalone='yes' ?>\n" +
		"<keyStore version=\"1\">\n" +
		"<adbKey key=\"aGVsbG8= user@laptop\" lastConnection=\"1700000000000\" />\n" +
		"</keyStore>\n"
	d := NewDumpsysAdb()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 1)

	userKeys, _ := d.Results()[0].Get("user_keys")
	require.Len(t, userKeys.Items(), 1)
	key := userKeys.Items()[0].Record()
	assert.Equal(t, "user@laptop", key.Str("user"))
	assert.Equal(t, "5D:41:40:2A:BC:4B:2A:76:B9:71:9D:91:10:17:C5:92", key.Str("fingerprint"))

	ks, _ := d.Results()[0].Get("keystore")
	require.Len(t, ks.Items(), 1)
	assert.Equal(t, "1700000000000", ks.Items()[0].Record().Str("last_connected"))

	d.CheckIndicators()
	assert.Len(t, d.Detected(), 2)

	require.NoError(t, d.Parse([]byte("Can't find service: adb\n")))
	assert.Empty(t, d.Results())
}

func TestDumpsysAppops(t *testing.T) {
	input := "Current AppOps Service state:\n" +
		"  Uid 0:\n" +
		"    state=cch\n" +
		"  Uid 10201:\n" +
		"    Package com.example.spyware:\n" +
		"      REQUEST_INSTALL_PACKAGES (allow):\n" +
		"          Access: [fg-s] 2023-05-01 10:00:00.123 (-3d2h)\n" +
		"      CAMERA (allow):\n" +
		"  Uid 2000:\n" +
		"    Package com.android.shell:\n" +
		"      READ_CLIPBOARD (ignore):\n" +
		"\n" +
		"  Uid 9999:\n"
	d := NewDumpsysAppops()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 2)

	spy := d.Results()[0]
	assert.Equal(t, "com.example.spyware", spy.Str("package_name"))
	assert.Equal(t, "10201", spy.Str("uid"))
	perms, _ := spy.Get("permissions")
	require.Len(t, perms.Items(), 2)
	install := perms.Items()[0].Record()
	assert.Equal(t, "REQUEST_INSTALL_PACKAGES", install.Str("name"))
	assert.Equal(t, "allow", install.Str("access"))
	entries, _ := install.Get("entries")
	require.Len(t, entries.Items(), 1)
	assert.Equal(t, "fg-s", entries.Items()[0].Record().Str("type"))
	assert.Equal(t, "2023-05-01 10:00:00.123", entries.Items()[0].Record().Str("timestamp"))

	d.CheckIndicators()
	assert.Equal(t, 2, domain.CountByLevel(d.Detected())[domain.AlertMedium])
}

func TestDumpsysDBInfo(t *testing.T) {
	input := "Applications Database Info:\n" +
		"Connection pool for /data/user/0/com.example.spyware/databases/loot.db:\n" +
		"  Most recently executed operations:\n" +
		"        0: [2023-05-01 10:00:00.123] [Pid:(4512)]executeForCursorWindow took 1ms - succeeded, sql=\"SELECT * FROM sms\"\n" +
		"        1: [2023-05-01 10:00:01.456] execute took 0ms - succeeded, sql=\"PRAGMA user_version\"\n" +
		"Connection pool for /data/system/other.db:\n"
	d := NewDumpsysDBInfo()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 2)
	assert.Equal(t, "4512", d.Results()[0].Str("pid"))
	assert.Equal(t, "executeForCursorWindow", d.Results()[0].Str("action"))
	assert.Equal(t, "SELECT * FROM sms", d.Results()[0].Str("sql"))
	assert.Equal(t, "execute", d.Results()[1].Str("action"))

	m := testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorAppID: {"com.example.spyware"},
	})
	d.SetIndicators(m)
	d.CheckIndicators()
	assert.Len(t, d.Detected(), 2)
}

func TestDumpsysBatteryDaily(t *testing.T) {
	input := "Daily stats:\n" +
		"  Daily from 2023-05-01-03-00-00 to 2023-05-02-03-00-00:\n" +
		"    Update com.example.spyware vers=7\n" +
		"    Update com.example.spyware vers=7\n" +
		"    Update com.android.chrome vers=5\n" +
		"  Daily from 2023-05-02-03-00-00 to 2023-05-03-03-00-00:\n" +
		"    Update com.example.spyware vers=7\n"
	d := NewDumpsysBatteryDaily()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 3)
	assert.Equal(t, "2023-05-01", d.Results()[0].Str("from"))
	assert.Equal(t, "2023-05-02", d.Results()[0].Str("to"))
	assert.Equal(t, "7", d.Results()[0].Str("vers"))
	assert.Equal(t, "2023-05-02", d.Results()[2].Str("from"))
}

func TestDumpsysBatteryHistory(t *testing.T) {
	input := "Battery History (2% used, 10KB used of 4096KB, 40 strings using 2KB):\n" +
		"                    0 (15) RESET:TIME: 2023-05-01-10-00-00\n" +
		"          +1s002ms (2) 100 +job=u0a201:\"com.example.spyware/.SyncJob\"\n" +
		"          +1s500ms (2) 100 -job=u0a201:\"com.example.spyware/.SyncJob\"\n" +
		"          +2s000ms (2) 100 +running +wake_lock=u0a201:\"*walarm*:com.example.spyware/.Alarm\"\n" +
		"          +3s000ms (2) 100 +top=u0a201:\"com.example.spyware\"\n" +
		"          +4s000ms (2) 100 -top=u0a201:\"com.example.spyware\"\n" +
		"\n" +
		"          +5s000ms (2) 100 +top=u0a1:\"ignored\"\n"
	d := NewDumpsysBatteryHistory()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 5)

	events := make([]string, 0, 5)
	for _, r := range d.Results() {
		events = append(events, r.Str("event"))
		assert.Equal(t, "com.example.spyware", r.Str("package_name"))
	}
	assert.Equal(t, []string{"start_job", "end_job", "wake", "start_top", "end_top"}, events)
	assert.Equal(t, "u0a201", d.Results()[0].Str("uid"))
	assert.Equal(t, "com.example.spyware/.SyncJob", d.Results()[0].Str("service"))
	assert.Equal(t, "+1s002ms", d.Results()[0].Str("time_elapsed"))
}

func TestDumpsysPlatformCompat(t *testing.T) {
	input := "ChangeId(168419799; name=DOWNSCALED; disabled; rawOverrides={com.example.spyware=false, com.android.chrome=false };)\n" +
		"ChangeId(1234; name=OTHER; rawOverrides={com.ignored=false };)\n"
	d := NewDumpsysPlatformCompat()
	require.NoError(t, d.Parse([]byte(input)))
	require.Len(t, d.Results(), 2)
	assert.Equal(t, "com.example.spyware", d.Results()[0].Str("package_name"))
	assert.Equal(t, "com.android.chrome", d.Results()[1].Str("package_name"))
}

func TestDumpsysModules_FullCaptureWithoutSection(t *testing.T) {
	// A full capture that lacks the service yields no records.
	for _, a := range []interface {
		Parse([]byte) error
		Results() []*domain.Record
	}{NewDumpsysAdb(), NewDumpsysAppops(), NewDumpsysDBInfo(), NewDumpsysPlatformCompat()} {
		require.NoError(t, a.Parse([]byte(testutil.FixtureDumpsysPackage)))
		assert.Empty(t, a.Results())
	}
}
