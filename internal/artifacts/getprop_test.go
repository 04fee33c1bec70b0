// internal/artifacts/getprop_test.go
package artifacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/testutil"
)

func newTestGetProp(now time.Time) *GetProp {
	g := NewGetProp()
	g.now = func() time.Time { return now }
	return g
}

func TestGetProp_Parse(t *testing.T) {
	g := NewGetProp()
	require.NoError(t, g.Parse([]byte(testutil.FixtureGetprop)))

	require.Len(t, g.Results(), 13)
	assert.Equal(t, "af.fast_track_multiplier", g.Results()[0].Str("name"))
	assert.Equal(t, "1", g.Results()[0].Str("value"))

	last := g.Results()[12]
	assert.Equal(t, "persist.spy.enabled", last.Str("name"))
	assert.Equal(t, "", last.Str("value"), "empty values are kept")

	assert.Equal(t, "Europe/Rome", g.DeviceTimezone())
}

func TestGetProp_SecurityPatch(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantOld bool
	}{
		{"recent patch", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"patch older than six months", time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGetProp(tt.now)
			require.NoError(t, g.Parse([]byte(testutil.FixtureGetprop)))
			g.CheckIndicators()

			counts := domain.CountByLevel(g.Detected())
			if tt.wantOld {
				assert.Equal(t, 1, counts[domain.AlertMedium])
			} else {
				assert.Zero(t, counts[domain.AlertMedium])
			}
			// 10 of the interesting properties are present in the fixture
			assert.Equal(t, 10, counts[domain.AlertLog])
		})
	}
}

func TestGetProp_PropertyIndicators(t *testing.T) {
	m := testutil.NewRecordingMatcher(map[domain.IndicatorType][]string{
		domain.IndicatorProperty: {"persist.spy.enabled"},
	})
	g := newTestGetProp(time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, g.Parse([]byte(testutil.FixtureGetprop)))
	g.SetIndicators(m)
	g.CheckIndicators()

	critical := domain.CountByLevel(g.Detected())[domain.AlertCritical]
	assert.Equal(t, 1, critical)
	assert.True(t, m.Queried("ro.build.version.sdk", domain.IndicatorProperty))
}

func TestGetProp_BadPatchFormat(t *testing.T) {
	g := newTestGetProp(time.Now())
	require.NoError(t, g.Parse([]byte("[ro.build.version.security_patch]: [January 2020]\n")))
	g.CheckIndicators()

	counts := domain.CountByLevel(g.Detected())
	assert.Zero(t, counts[domain.AlertMedium])
	assert.Equal(t, 1, counts[domain.AlertLog])
}
