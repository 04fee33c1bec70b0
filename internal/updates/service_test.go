package updates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/indicators"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/httpclient"
	"droidsweep/internal/platform/logx"
	"droidsweep/internal/platform/metrics"
)

const pegasusStix = `{"type":"bundle","objects":[
	{"type":"indicator","pattern":"[domain-name:value = 'free247downloads.com']"},
	{"type":"indicator","pattern":"[app:id = 'com.network.android']"}
]}`

// feedServer serves an index, raw feed files and a fake GitHub commits API.
type feedServer struct {
	*httptest.Server

	mu      sync.Mutex
	index   string
	files   map[string]string // request path -> body
	commits map[string]string // "owner/repo/branch/path" -> RFC3339 date
	hits    map[string]int    // request path -> count
	status  map[string]int    // request path -> forced status
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fsrv := &feedServer{
		files:   map[string]string{},
		commits: map[string]string{},
		hits:    map[string]int{},
		status:  map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/index.yaml", func(w http.ResponseWriter, r *http.Request) {
		fsrv.hit(r.URL.Path)
		w.Write([]byte(fsrv.index))
	})
	mux.HandleFunc("/api/repos/", func(w http.ResponseWriter, r *http.Request) {
		fsrv.hit(r.URL.Path)
		fsrv.mu.Lock()
		code := fsrv.status[r.URL.Path]
		fsrv.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		// /api/repos/{owner}/{repo}/commits
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/repos/"), "/")
		if len(parts) != 3 || parts[2] != "commits" {
			http.NotFound(w, r)
			return
		}
		key := parts[0] + "/" + parts[1] + "/" + r.URL.Query().Get("sha") + "/" + r.URL.Query().Get("path")
		fsrv.mu.Lock()
		date, ok := fsrv.commits[key]
		fsrv.mu.Unlock()
		if !ok {
			http.Error(w, `{"message":"No commit found for SHA"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"sha":"abc","commit":{"author":{"name":"x","date":"` + date + `"}}}]`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fsrv.hit(r.URL.Path)
		fsrv.mu.Lock()
		body, ok := fsrv.files[r.URL.Path]
		code := fsrv.status[r.URL.Path]
		fsrv.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	})
	fsrv.Server = httptest.NewServer(mux)
	t.Cleanup(fsrv.Close)
	return fsrv
}

func (f *feedServer) hit(p string) {
	f.mu.Lock()
	f.hits[p]++
	f.mu.Unlock()
}

func (f *feedServer) hitCount(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[p]
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestService(t *testing.T, srv *feedServer, fs afero.Fs, clk *clock) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Fs:        fs,
		Dir:       "/data",
		IndexURL:  srv.URL + "/index.yaml",
		GitHubAPI: srv.URL + "/api",
		GitHubRaw: srv.URL + "/raw",
		HTTP:      httpclient.New(httpclient.Config{Timeout: 2 * time.Second}, logx.Discard()),
		Logger:    logx.Discard(),
		Now:       clk.Now,
	})
	require.NoError(t, err)
	return svc
}

// First run with a plain download_url entry downloads it and records the
// update time.
func TestUpdate_FirstRunDownloadsGenericEntry(t *testing.T) {
	srv := newFeedServer(t)
	srv.index = "indicators:\n  - name: pegasus\n    type: stix2\n    download_url: " + srv.URL + "/feeds/pegasus.stix2\n"
	srv.files["/feeds/pegasus.stix2"] = pegasusStix

	fs := afero.NewMemMapFs()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	svc := newTestService(t, srv, fs, clk)
	require.Zero(t, svc.LastUpdate())

	summary, err := svc.Update(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Downloaded, 1)
	assert.Empty(t, summary.Failed)
	d := summary.Downloaded[0]
	assert.Equal(t, "pegasus", d.Entry)
	wantName := strings.TrimPrefix(srv.URL, "http://") + "_feeds_pegasus.stix2"
	assert.Equal(t, filepath.Join("/data/indicators", wantName), d.Path)

	got, err := afero.ReadFile(fs, d.Path)
	require.NoError(t, err)
	assert.Equal(t, pegasusStix, string(got))

	assert.Equal(t, clk.t.Unix(), svc.LastUpdate())
	assert.Equal(t, clk.t.Unix(), svc.LastCheck())

	// Without a resolvable index commit time the entry is only fetched on
	// the first run.
	clk.t = clk.t.Add(48 * time.Hour)
	summary, err = svc.Update(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Downloaded)
	assert.Equal(t, []string{"pegasus"}, summary.Skipped)
	assert.Equal(t, int64(1_700_000_000), svc.LastUpdate())
	assert.Equal(t, clk.t.Unix(), svc.LastCheck())
	assert.Equal(t, 1, srv.hitCount("/feeds/pegasus.stix2"))
}

func TestUpdate_DownloadedFeedIsMatchable(t *testing.T) {
	srv := newFeedServer(t)
	srv.index = `{"indicators":[{"type":"stix2","download_url":"` + srv.URL + `/feeds/pegasus.stix2"}]}`
	srv.files["/feeds/pegasus.stix2"] = pegasusStix

	fs := afero.NewMemMapFs()
	svc := newTestService(t, srv, fs, &clock{t: time.Unix(1_700_000_000, 0)})
	_, err := svc.Update(context.Background())
	require.NoError(t, err)

	store, err := indicators.LoadFromDirectory(fs, svc.IndicatorsDir(), indicators.WithLogger(logx.Discard()))
	require.NoError(t, err)
	assert.NotEmpty(t, store.MatchString("free247downloads.com", domain.IndicatorDomain))
	assert.NotEmpty(t, store.MatchString("com.network.android", domain.IndicatorAppID))
}

func TestUpdate_GitHubFreshness(t *testing.T) {
	srv := newFeedServer(t)
	srv.index = `
indicators:
  - name: fresh
    type: github
    github:
      owner: mvt-project
      repo: mvt-indicators
      branch: dev
      path: 2024/fresh.stix2
  - name: stale
    type: github
    github:
      owner: mvt-project
      repo: mvt-indicators
      path: 2021/stale.stix2
  - name: legacy
    type: github
    github:
      owner: acme
      repo: iocs
      path: old.stix2
`
	// dev has no history for the file, main does
	srv.commits["mvt-project/mvt-indicators/main/2024/fresh.stix2"] = "2024-02-01T10:00:00Z"
	srv.commits["mvt-project/mvt-indicators/main/2021/stale.stix2"] = "2021-06-01T10:00:00Z"
	// only found on master
	srv.commits["acme/iocs/master/old.stix2"] = "2024-03-01T00:00:00Z"
	srv.files["/raw/mvt-project/mvt-indicators/dev/2024/fresh.stix2"] = pegasusStix
	srv.files["/raw/acme/iocs/main/old.stix2"] = pegasusStix

	fs := afero.NewMemMapFs()
	lastUpdate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, afero.WriteFile(fs, "/data/latest_indicators_update", []byte("1672531200\n"), 0o644))
	require.Equal(t, lastUpdate.Unix(), int64(1672531200))

	clk := &clock{t: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(t, srv, fs, clk)

	summary, err := svc.Update(context.Background())
	require.NoError(t, err)

	var names []string
	for _, d := range summary.Downloaded {
		names = append(names, d.Entry)
	}
	assert.Equal(t, []string{"fresh", "legacy"}, names)
	assert.Equal(t, []string{"stale"}, summary.Skipped)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, clk.t.Unix(), svc.LastUpdate())

	// the raw URL keeps the declared branch
	assert.Equal(t, 1, srv.hitCount("/raw/mvt-project/mvt-indicators/dev/2024/fresh.stix2"))
}

func TestUpdate_NetworkFailureSkipsOnlyThatEntry(t *testing.T) {
	srv := newFeedServer(t)
	srv.index = "indicators:\n" +
		"  - name: broken\n    download_url: " + srv.URL + "/feeds/broken.json\n" +
		"  - name: missing\n    download_url: " + srv.URL + "/feeds/missing.json\n" +
		"  - name: empty\n    type: github\n    github: {owner: x}\n" +
		"  - name: good\n    download_url: " + srv.URL + "/feeds/good.json\n"
	srv.status["/feeds/broken.json"] = http.StatusInternalServerError
	srv.files["/feeds/good.json"] = `{"indicators":[{"app:id":["com.bad"]}]}`

	fs := afero.NewMemMapFs()
	m := metrics.New()
	svc, err := NewService(Options{
		Fs:       fs,
		Dir:      "/data",
		IndexURL: srv.URL + "/index.yaml",
		HTTP:     httpclient.New(httpclient.Config{Timeout: 2 * time.Second}, logx.Discard()),
		Logger:   logx.Discard(),
		Metrics:  m,
	})
	require.NoError(t, err)

	summary, err := svc.Update(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Downloaded, 1)
	assert.Equal(t, "good", summary.Downloaded[0].Entry)
	require.Len(t, summary.Failed, 3)
	assert.Equal(t, "broken", summary.Failed[0].Entry)
	assert.True(t, errors.IsNetwork(summary.Failed[0].Err))
	assert.True(t, errors.IsNotFound(summary.Failed[1].Err))
	assert.True(t, errors.IsFormat(summary.Failed[2].Err))
	assert.NotZero(t, svc.LastUpdate())
}

func TestUpdate_NothingDownloadedKeepsLastUpdate(t *testing.T) {
	srv := newFeedServer(t)
	srv.index = "indicators:\n  - download_url: " + srv.URL + "/feeds/gone.json\n"

	fs := afero.NewMemMapFs()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	svc := newTestService(t, srv, fs, clk)

	summary, err := svc.Update(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Failed, 1)
	assert.Zero(t, svc.LastUpdate())
	assert.Equal(t, clk.t.Unix(), svc.LastCheck())
}

func TestUpdate_IndexErrors(t *testing.T) {
	srv := newFeedServer(t)
	fs := afero.NewMemMapFs()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}

	srv.index = "indicators: [unclosed"
	svc := newTestService(t, srv, fs, clk)
	_, err := svc.Update(context.Background())
	assert.True(t, errors.IsFormat(err))
	assert.Equal(t, clk.t.Unix(), svc.LastCheck(), "the check is recorded even when the index is bad")

	svc, err = NewService(Options{
		Fs:       fs,
		Dir:      "/data",
		IndexURL: srv.URL + "/nope.yaml",
		HTTP:     httpclient.New(httpclient.Config{}, logx.Discard()),
		Logger:   logx.Discard(),
	})
	require.NoError(t, err)
	_, err = svc.Update(context.Background())
	assert.True(t, errors.IsNetwork(err))
}

// An index served from the raw host resolves its own commit time, which then
// drives the freshness of generic entries.
func TestUpdate_IndexCommitTime(t *testing.T) {
	srv := newFeedServer(t)
	srv.files["/raw/mvt-project/mvt-indicators/main/indicators.yaml"] =
		"indicators:\n  - name: generic\n    download_url: " + srv.URL + "/feeds/generic.json\n"
	srv.files["/feeds/generic.json"] = `{"indicators":[{"app:id":["com.bad"]}]}`
	srv.commits["mvt-project/mvt-indicators/main/indicators.yaml"] = "2024-05-01T00:00:00Z"

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/latest_indicators_update", []byte("1700000000"), 0o644))

	svc, err := NewService(Options{
		Fs:        fs,
		Dir:       "/data",
		IndexURL:  srv.URL + "/raw/mvt-project/mvt-indicators/main/indicators.yaml",
		GitHubAPI: srv.URL + "/api",
		GitHubRaw: srv.URL + "/raw",
		HTTP:      httpclient.New(httpclient.Config{}, logx.Discard()),
		Logger:    logx.Discard(),
	})
	require.NoError(t, err)

	summary, err := svc.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Downloaded, 1, "index changed after the last update")
}

func TestUpdate_FileURLs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/feed.stix2", []byte(pegasusStix), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/index.yaml",
		[]byte("indicators:\n  - download_url: file:///src/feed.stix2\n"), 0o644))

	svc, err := NewService(Options{Fs: fs, Dir: "/data", IndexURL: "file:///src/index.yaml", Logger: logx.Discard()})
	require.NoError(t, err)

	summary, err := svc.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Downloaded, 1)
	assert.Equal(t, filepath.Join("/data/indicators", "file:___src_feed.stix2"), summary.Downloaded[0].Path)
}

func TestCommitTime_Cached(t *testing.T) {
	srv := newFeedServer(t)
	srv.commits["o/r/main/a.json"] = "2024-01-01T00:00:00Z"
	svc := newTestService(t, srv, afero.NewMemMapFs(), &clock{t: time.Now()})

	for i := 0; i < 3; i++ {
		got := svc.commitTime(context.Background(), "o", "r", "main", "a.json")
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got.UTC())
	}
	assert.Equal(t, 1, srv.hitCount("/api/repos/o/r/commits"))

	assert.True(t, svc.commitTime(context.Background(), "o", "r", "dev", "missing.json").IsZero())
}

func TestCommitTime_BreakerStopsLookups(t *testing.T) {
	srv := newFeedServer(t)
	srv.status["/api/repos/o/r/commits"] = http.StatusInternalServerError
	svc := newTestService(t, srv, afero.NewMemMapFs(), &clock{t: time.Now()})

	for i := 0; i < 6; i++ {
		got := svc.commitTime(context.Background(), "o", "r", "main", "feed"+strconv.Itoa(i)+".json")
		assert.True(t, got.IsZero())
	}
	// three failures open the breaker; the rest never reach the server
	assert.Equal(t, 3, srv.hitCount("/api/repos/o/r/commits"))
}

func TestShouldCheck(t *testing.T) {
	fs := afero.NewMemMapFs()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	svc, err := NewService(Options{Fs: fs, Dir: "/data", Logger: logx.Discard(), Now: clk.Now})
	require.NoError(t, err)

	assert.True(t, svc.ShouldCheck())
	require.NoError(t, svc.writeStamp(latestCheckFile, clk.t))
	assert.False(t, svc.ShouldCheck())
	clk.t = clk.t.Add(25 * time.Hour)
	assert.True(t, svc.ShouldCheck())

	require.NoError(t, afero.WriteFile(fs, "/data/"+latestCheckFile, []byte("garbage"), 0o644))
	assert.Zero(t, svc.LastCheck())
}

func TestNewService_RequiresDir(t *testing.T) {
	_, err := NewService(Options{})
	assert.True(t, errors.IsConfiguration(err))
}

func TestLocalFileName(t *testing.T) {
	tests := map[string]string{
		"https://raw.githubusercontent.com/mvt-project/mvt-indicators/main/2023-03-29_android_campaign/malware.stix2": "raw.githubusercontent.com_mvt-project_mvt-indicators_main_2023-03-29_android_campaign_malware.stix2",
		"http://example.org/iocs.json":   "example.org_iocs.json",
		`ftp://host\dir/file.json`:       "ftp:__host_dir_file.json",
		"https://example.org/a/b/c.json": "example.org_a_b_c.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, LocalFileName(in), in)
	}
}

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex([]byte(`
indicators:
  - name: NSO Group Pegasus
    type: github
    github:
      owner: mvt-project
      repo: mvt-indicators
      path: 2021-07-18_nso/pegasus.stix2
  - type: stix2
    download_url: https://example.org/feed.stix2
`))
	require.NoError(t, err)
	require.Len(t, idx.Indicators, 2)

	gh := idx.Indicators[0]
	assert.True(t, gh.IsGitHub())
	assert.Equal(t, "https://raw.githubusercontent.com/mvt-project/mvt-indicators/main/2021-07-18_nso/pegasus.stix2",
		gh.URL(DefaultGitHubRaw))
	assert.Equal(t, "NSO Group Pegasus", gh.Label())

	plain := idx.Indicators[1]
	assert.False(t, plain.IsGitHub())
	assert.Equal(t, "https://example.org/feed.stix2", plain.URL(DefaultGitHubRaw))
	assert.Equal(t, "https://example.org/feed.stix2", plain.Label())

	_, err = ParseIndex([]byte("   "))
	assert.True(t, errors.IsFormat(err))
	_, err = ParseIndex([]byte("indicators: {a: [}"))
	assert.True(t, errors.IsFormat(err))
}
