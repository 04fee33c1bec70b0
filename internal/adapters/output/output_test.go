package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/core/usecases"
	"droidsweep/internal/indicators"
	"droidsweep/internal/platform/logx"
	"droidsweep/internal/testutil"
)

func testResult(t *testing.T) *usecases.RunResult {
	t.Helper()
	store := indicators.NewStore(map[domain.IndicatorType][]string{
		domain.IndicatorAppID: {"com.example.spyware"},
	})

	hit := &testutil.FakeArtifact{ModuleName: "packages"}
	require.NoError(t, hit.Parse([]byte("com.android.chrome\ncom.example.spyware\n")))
	hit.SetIndicators(store)
	hit.CheckIndicators()

	clean := &testutil.FakeArtifact{ModuleName: "getprop"}
	require.NoError(t, clean.Parse([]byte("[ro.build.version.sdk]: [34]\n")))

	empty := &testutil.FakeArtifact{ModuleName: "mounts"}

	started := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	return &usecases.RunResult{
		Source: "/cases/pixel 7.zip",
		Artifacts: map[string]ports.Artifact{
			"packages": hit,
			"getprop":  clean,
			"mounts":   empty,
		},
		Errors:   map[string]error{},
		Started:  started,
		Finished: started.Add(1200 * time.Millisecond),
	}
}

func TestWriteReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	result := testResult(t)
	report := usecases.NewReport(result, nil)

	path, err := WriteReport(fs, "/out", report)
	require.NoError(t, err)
	assert.Equal(t, "/out/droidsweep_pixel_7_zip_20240301_103000.json", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.ID, decoded["id"])
	assert.Len(t, decoded["modules"], 3)
	dets := decoded["detections"].([]any)
	require.Len(t, dets, 1)
	assert.Equal(t, "CRITICAL", dets[0].(map[string]any)["level"])

	// sin temporales
	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteReport_DefaultDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	path, err := WriteReport(fs, "", usecases.NewReport(testResult(t), nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "droidsweep_"))
}

func TestWriteReport_ReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := WriteReport(fs, "/out", usecases.NewReport(testResult(t), nil))
	assert.Error(t, err)
}

func TestEncodeReport(t *testing.T) {
	report := usecases.NewReport(testResult(t), nil)

	var compact, pretty bytes.Buffer
	require.NoError(t, EncodeReport(&compact, report, false))
	require.NoError(t, EncodeReport(&pretty, report, true))
	assert.Equal(t, 1, strings.Count(compact.String(), "\n"))
	assert.Greater(t, strings.Count(pretty.String(), "\n"), 10)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"/cases/pixel-7.zip": "pixel-7_zip",
		"/cases/acq/":        "acq",
		"bundle dir":         "bundle_dir",
		"":                   "bundle",
		"/":                  "bundle",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}

func TestModuleWriter_WriteAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewModuleWriter(fs, "/out", logx.Discard())

	written, err := w.WriteAll(testResult(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/getprop.json", "/out/packages.json", "/out/packages_detected.json"}, written)

	data, err := afero.ReadFile(fs, "/out/packages.json")
	require.NoError(t, err)
	var records []map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "com.example.spyware", records[1]["line"])

	exists, _ := afero.Exists(fs, "/out/mounts.json")
	assert.False(t, exists, "modules without records write nothing")
	exists, _ = afero.Exists(fs, "/out/getprop_detected.json")
	assert.False(t, exists)
}

func TestModuleWriter_WriteTimeline(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewModuleWriter(fs, "/out", nil)

	path, err := w.WriteTimeline(nil)
	require.NoError(t, err)
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	path, err = w.WriteTimeline(testResult(t).Detections())
	require.NoError(t, err)
	data, err = afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ioc": "com.example.spyware"`)
}

func TestWriteTable(t *testing.T) {
	result := testResult(t)
	result.Errors["settings"] = assert.AnError
	report := usecases.NewReport(result, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "=== droidsweep results ===")
	assert.Contains(t, out, "/cases/pixel 7.zip")
	assert.Contains(t, out, "1.2s")
	assert.Contains(t, out, "MODULE")
	assert.Contains(t, out, "packages")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "com.example.spyware")
	assert.Contains(t, out, "- CRITICAL: 1")
}

func TestWriteTable_NoDetections(t *testing.T) {
	report := usecases.NewReport(&usecases.RunResult{Source: "/b", Artifacts: map[string]ports.Artifact{}}, nil)
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, report))
	assert.Contains(t, buf.String(), "No detections.")
	assert.NotContains(t, buf.String(), "By level")
}
