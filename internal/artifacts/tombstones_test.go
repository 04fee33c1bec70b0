// internal/artifacts/tombstones_test.go
package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/testutil"
)

const fixtureTombstone = `*** *** *** *** *** *** *** *** *** *** *** *** *** *** *** ***
Build fingerprint: 'samsung/a10eea/a10:9/PPR1.180610.011/A105FXXU1ASD4:user/release-keys'
Revision: '5'
ABI: 'arm'
Timestamp: 2023-04-12 12:32:40.518290770+0200
Process uptime: 0s
Cmdline: /vendor/bin/hw/android.hardware.media.c2@1.2-mediatek
pid: 25541, tid: 21307, name: mtk.ve.enc  >>> /vendor/bin/hw/android.hardware.media.c2@1.2-mediatek <<<
uid: 1046
signal 6 (SIGABRT), code -1 (SI_QUEUE), fault addr --------
`

const fixtureRootTombstone = `*** *** *** *** *** *** *** *** *** *** *** *** *** *** *** ***
Timestamp: 2023-04-13 08:01:02+0000
Cmdline: /data/local/tmp/implant --daemon
pid: 666, tid: 666, name: implant  >>> /data/local/tmp/implant <<<
uid: 0
`

func TestTombstones_Parse(t *testing.T) {
	ts := NewTombstones()
	require.NoError(t, ts.Parse([]byte(fixtureTombstone)))
	require.Len(t, ts.Results(), 1)

	r := ts.Results()[0]
	assert.Equal(t, "2023-04-12 12:32:40.518290", r.Str("timestamp"))
	assert.Equal(t, "mtk.ve.enc", r.Str("process_name"))
	pid, _ := r.Get("pid")
	assert.Equal(t, float64(25541), pid.Float())
	tid, _ := r.Get("tid")
	assert.Equal(t, float64(21307), tid.Float())
	uid, _ := r.Get("uid")
	assert.Equal(t, float64(1046), uid.Float())
	cmd, _ := r.Get("command_line")
	require.Len(t, cmd.Items(), 1)
	assert.Equal(t, "/vendor/bin/hw/android.hardware.media.c2@1.2-mediatek", cmd.Items()[0].Text())

	ts.CheckIndicators()
	assert.Empty(t, ts.Detected(), "media uid is not privileged")
}

func TestTombstones_ConcatenatedFiles(t *testing.T) {
	ts := NewTombstones()
	require.NoError(t, ts.Parse([]byte(fixtureTombstone+"\n"+fixtureRootTombstone)))
	require.Len(t, ts.Results(), 2)
	assert.Equal(t, "2023-04-13 08:01:02", ts.Results()[1].Str("timestamp"))

	m := testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorProcess: {"implant"},
	})
	ts.SetIndicators(m)
	ts.CheckIndicators()

	counts := domain.CountByLevel(ts.Detected())
	assert.Equal(t, 1, counts[domain.AlertMedium], "root process crash")
	// process name and command line base name both hit
	assert.Equal(t, 2, counts[domain.AlertCritical])
	assert.True(t, m.Queried("android.hardware.media.c2@1.2-mediatek", domain.IndicatorProcess))
}

func TestTombstones_Empty(t *testing.T) {
	ts := NewTombstones()
	require.NoError(t, ts.Parse(nil))
	assert.Empty(t, ts.Results())
	assert.Equal(t, []string{"tombstones.txt", "tombstone_*"}, ts.Paths())
}
