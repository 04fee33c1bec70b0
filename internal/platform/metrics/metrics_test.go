// internal/platform/metrics/metrics_test.go
package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/platform/errors"
)

func TestObserveModule(t *testing.T) {
	m := New()
	m.ObserveModule("processes", 17, []domain.Detection{
		{Level: domain.AlertCritical},
		{Level: domain.AlertCritical},
		{Level: domain.AlertLog},
	}, nil, 3*time.Millisecond)
	m.ObserveModule("getprop", 0, nil, errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModulesRun.WithLabelValues("processes", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModulesRun.WithLabelValues("getprop", StatusError)))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.Records.WithLabelValues("processes")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Detections.WithLabelValues("CRITICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Detections.WithLabelValues("LOG")))
}

func TestIndicatorsAndFeeds(t *testing.T) {
	m := New()
	m.SetIndicators(map[domain.IndicatorType]int{domain.IndicatorDomain: 42, domain.IndicatorAppID: 3}, 1)
	m.FeedDownload(StatusOK)
	m.FeedDownload(StatusOK)
	m.FeedDownload(StatusError)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.IndicatorKeywords.WithLabelValues("DOMAIN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndicatorSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedDownloads.WithLabelValues(StatusOK)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveModule("x", 1, nil, nil, time.Second)
	m.ObserveRun(time.Second)
	m.FeedDownload(StatusOK)
	m.SetIndicators(nil, 0)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("ignored.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRun(2 * time.Second)

	path := filepath.Join(t.TempDir(), "droidsweep.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "droidsweep_run_duration_seconds 2")
}
