// internal/artifacts/settings_test.go
package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/testutil"
)

func TestSettings_ParseAndCheck(t *testing.T) {
	s := NewSettings()
	input := testutil.FixtureSettingsGlobal + testutil.FixtureSettingsSecure
	require.NoError(t, s.Parse([]byte(input)))

	// "=orphan value" has no key and is skipped
	require.Len(t, s.Results(), 5)

	v, ok := s.Lookup("package_verifier_enable")
	require.True(t, ok)
	assert.Equal(t, "0", v)

	s.CheckIndicators()
	require.Len(t, s.Detected(), 2)
	for _, d := range s.Detected() {
		assert.Equal(t, domain.AlertInfo, d.Level)
	}
	assert.Contains(t, s.Detected()[0].Message, "disabled Google Play Protect")
	assert.Contains(t, s.Detected()[1].Message, "enabled accessibility services")
}

func TestSettings_SafeValuesAreQuiet(t *testing.T) {
	s := NewSettings()
	require.NoError(t, s.Parse([]byte("package_verifier_enable=1\naccessibility_enabled=0\nnot a setting\n")))
	assert.Len(t, s.Results(), 2)

	s.CheckIndicators()
	assert.Empty(t, s.Detected())
}

func TestSettings_RepeatedKeyLastValueWins(t *testing.T) {
	s := NewSettings()
	input := "package_verifier_enable=0\nadb_enabled=1\n" + // settings_global.txt
		"package_verifier_enable=1\n" + // settings_secure.txt
		"accessibility_enabled=1\naccessibility_enabled=1\n"
	require.NoError(t, s.Parse([]byte(input)))
	require.Len(t, s.Results(), 3)

	v, ok := s.Lookup("package_verifier_enable")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	s.CheckIndicators()
	require.Len(t, s.Detected(), 1, "each setting is reported once")
	assert.Contains(t, s.Detected()[0].Message, "accessibility_enabled")
}

func TestSettings_EmptyInput(t *testing.T) {
	s := NewSettings()
	require.NoError(t, s.Parse(nil))
	assert.Empty(t, s.Results())
	assert.Equal(t, []string{"settings_*.txt"}, s.Paths())
}
