// Package updates keeps a local indicators directory in sync with the feeds
// listed in a remote index, downloading only what changed upstream.
package updates

import (
	"context"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"droidsweep/internal/platform/cache"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/httpclient"
	"droidsweep/internal/platform/logx"
	"droidsweep/internal/platform/metrics"
	"droidsweep/internal/platform/resilience"
	"droidsweep/internal/platform/validator"
)

const (
	DefaultIndexURL      = "https://raw.githubusercontent.com/mvt-project/mvt-indicators/main/indicators.yaml"
	DefaultGitHubAPI     = "https://api.github.com"
	DefaultGitHubRaw     = "https://raw.githubusercontent.com"
	DefaultTimeout       = 15 * time.Second
	DefaultCheckInterval = 24 * time.Hour

	latestCheckFile  = "latest_indicators_check"
	latestUpdateFile = "latest_indicators_update"
	indicatorsSubdir = "indicators"
)

// Options configures a Service. Only Dir is mandatory.
type Options struct {
	Fs afero.Fs

	// Dir holds the state files and the indicators subdirectory.
	Dir string

	IndexURL    string
	GitHubAPI   string
	GitHubRaw   string
	GitHubToken string

	// HTTP defaults to a client with Timeout and a small rate limit for the
	// GitHub API.
	HTTP    *httpclient.Client
	Timeout time.Duration

	CheckInterval time.Duration

	Logger  logx.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Service mirrors remote indicator feeds into Dir/indicators.
type Service struct {
	fs            afero.Fs
	dir           string
	indexURL      string
	apiBase       string
	rawBase       string
	token         string
	http          *httpclient.Client
	timeout       time.Duration
	checkInterval time.Duration
	logger        logx.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	// commits caches "owner/repo/branch/path" -> latest commit time. A zero
	// time means the lookup found nothing.
	commits *cache.LRU[string, time.Time]

	// api stops GitHub lookups after consecutive failures (rate limit, outage),
	// so the remaining entries fall back to unknown freshness fast.
	api *resilience.CircuitBreaker
}

// Download is a feed written to the indicators directory.
type Download struct {
	Entry string
	URL   string
	Path  string
	Bytes int
}

// Failure is a feed that could not be checked or downloaded.
type Failure struct {
	Entry string
	URL   string
	Err   error
}

// UpdateSummary reports what one Update did with each index entry.
type UpdateSummary struct {
	Started    time.Time
	Downloaded []Download
	Skipped    []string
	Failed     []Failure
}

func NewService(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "updates: data directory is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.IndexURL == "" {
		opts.IndexURL = DefaultIndexURL
	}
	if opts.GitHubAPI == "" {
		opts.GitHubAPI = DefaultGitHubAPI
	}
	if opts.GitHubRaw == "" {
		opts.GitHubRaw = DefaultGitHubRaw
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HTTP == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Timeout = opts.Timeout
		cfg.RateLimit = 5
		cfg.RateLimitBurst = 10
		opts.HTTP = httpclient.New(cfg, opts.Logger)
	}

	return &Service{
		fs:            opts.Fs,
		dir:           opts.Dir,
		indexURL:      opts.IndexURL,
		apiBase:       strings.TrimRight(opts.GitHubAPI, "/"),
		rawBase:       strings.TrimRight(opts.GitHubRaw, "/"),
		token:         opts.GitHubToken,
		http:          opts.HTTP,
		timeout:       opts.Timeout,
		checkInterval: opts.CheckInterval,
		logger:        opts.Logger.With("component", "updates"),
		metrics:       opts.Metrics,
		now:           opts.Now,
		commits:       cache.New[string, time.Time](256, 0),
		api:           resilience.NewCircuitBreaker(3, 5*time.Minute, 1),
	}, nil
}

// IndicatorsDir is where downloaded feeds are written.
func (s *Service) IndicatorsDir() string {
	return filepath.Join(s.dir, indicatorsSubdir)
}

// LastCheck returns the epoch seconds of the last Update, 0 if never.
func (s *Service) LastCheck() int64 { return s.readStamp(latestCheckFile) }

// LastUpdate returns the epoch seconds of the last Update that downloaded at
// least one feed, 0 if never.
func (s *Service) LastUpdate() int64 { return s.readStamp(latestUpdateFile) }

// ShouldCheck reports whether CheckInterval has elapsed since LastCheck.
func (s *Service) ShouldCheck() bool {
	last := s.LastCheck()
	if last == 0 {
		return true
	}
	return s.now().Sub(time.Unix(last, 0)) >= s.checkInterval
}

// Update fetches the index and downloads every entry that changed since the
// last update. Per entry failures are reported in the summary; only an index
// that cannot be fetched or parsed is returned as an error.
func (s *Service) Update(ctx context.Context) (*UpdateSummary, error) {
	started := s.now()
	summary := &UpdateSummary{Started: started}
	lastUpdate := s.LastUpdate()

	if err := s.writeStamp(latestCheckFile, started); err != nil {
		s.logger.Warn("could not record last check", "error", err.Error())
	}
	if err := s.fs.MkdirAll(s.IndicatorsDir(), 0o755); err != nil {
		return summary, errors.Classify(errors.ErrConfiguration, err, "create "+s.IndicatorsDir())
	}

	data, err := s.fetch(ctx, s.indexURL, nil)
	if err != nil {
		return summary, errors.Wrap(err, "fetch index")
	}
	index, err := ParseIndex(data)
	if err != nil {
		return summary, errors.Wrap(err, s.indexURL)
	}
	s.logger.Info("index fetched", "url", s.indexURL, "entries", len(index.Indicators), "last_update", lastUpdate)

	var indexTime *time.Time
	for _, entry := range index.Indicators {
		label := entry.Label()
		if ctx.Err() != nil {
			summary.Failed = append(summary.Failed, Failure{Entry: label, Err: ctx.Err()})
			continue
		}
		src := entry.URL(s.rawBase)
		if !validator.IsFeedURL(src) {
			summary.Failed = append(summary.Failed, Failure{
				Entry: label,
				URL:   src,
				Err:   errors.Wrap(errors.ErrFormat, "index entry has no usable source"),
			})
			s.metrics.FeedDownload(metrics.StatusError)
			continue
		}

		var changed bool
		if entry.IsGitHub() {
			gh := entry.GitHub
			t := s.commitTime(ctx, gh.Owner, gh.Repo, gh.branch(), gh.Path)
			changed = isNewer(t, lastUpdate)
		} else {
			if indexTime == nil {
				t := s.indexCommitTime(ctx)
				indexTime = &t
			}
			changed = isNewer(*indexTime, lastUpdate)
		}

		if !changed {
			s.logger.Debug("feed unchanged", "entry", label)
			summary.Skipped = append(summary.Skipped, label)
			s.metrics.FeedDownload(metrics.StatusSkipped)
			continue
		}

		d, err := s.download(ctx, src)
		if err != nil {
			s.logger.Warn("feed download failed", "entry", label, "url", src, "error", err.Error())
			summary.Failed = append(summary.Failed, Failure{Entry: label, URL: src, Err: err})
			s.metrics.FeedDownload(metrics.StatusError)
			continue
		}
		d.Entry = label
		summary.Downloaded = append(summary.Downloaded, d)
		s.metrics.FeedDownload(metrics.StatusOK)
		s.logger.Info("feed downloaded", "entry", label, "file", filepath.Base(d.Path), "bytes", d.Bytes)
	}

	if len(summary.Downloaded) > 0 {
		if err := s.writeStamp(latestUpdateFile, s.now()); err != nil {
			s.logger.Warn("could not record last update", "error", err.Error())
		}
	}
	return summary, nil
}

// Download fetches a single feed URL into the indicators directory and
// returns the local path.
func (s *Service) Download(ctx context.Context, src string) (string, error) {
	if err := s.fs.MkdirAll(s.IndicatorsDir(), 0o755); err != nil {
		return "", errors.Classify(errors.ErrConfiguration, err, "create "+s.IndicatorsDir())
	}
	d, err := s.download(ctx, src)
	if err != nil {
		return "", err
	}
	return d.Path, nil
}

func (s *Service) download(ctx context.Context, src string) (Download, error) {
	data, err := s.fetch(ctx, src, nil)
	if err != nil {
		return Download{}, err
	}
	dest := filepath.Join(s.IndicatorsDir(), LocalFileName(src))
	if err := s.writeAtomic(dest, data); err != nil {
		return Download{}, err
	}
	return Download{URL: src, Path: dest, Bytes: len(data)}, nil
}

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	pathSeps     = regexp.MustCompile(`[/\\]`)
)

// LocalFileName maps a feed URL to its file name in the indicators
// directory, so a feed downloaded twice overwrites itself.
func LocalFileName(src string) string {
	return pathSeps.ReplaceAllString(schemePrefix.ReplaceAllString(src, ""), "_")
}

// isNewer reports whether an upstream change at t is after lastUpdate. When
// the change time is unknown only a first run counts as changed.
func isNewer(t time.Time, lastUpdate int64) bool {
	if t.IsZero() {
		return lastUpdate == 0
	}
	return t.Unix() > lastUpdate
}

// indexCommitTime resolves the last change of the index document itself when
// it is served from raw.githubusercontent. Zero otherwise.
func (s *Service) indexCommitTime(ctx context.Context) time.Time {
	rest, ok := strings.CutPrefix(s.indexURL, s.rawBase+"/")
	if !ok {
		return time.Time{}
	}
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 4 {
		return time.Time{}
	}
	return s.commitTime(ctx, parts[0], parts[1], parts[2], parts[3])
}

// commitTime returns the date of the latest commit touching path, trying
// branch, then main, then master. Lookup errors yield zero.
func (s *Service) commitTime(ctx context.Context, owner, repo, branch, path string) time.Time {
	branches := []string{branch}
	for _, b := range []string{"main", "master"} {
		if b != branch {
			branches = append(branches, b)
		}
	}

	for _, b := range branches {
		key := owner + "/" + repo + "/" + b + "/" + path
		t, err := s.commits.GetOrLoad(key, func() (t time.Time, err error) {
			err = s.api.Execute(func() error {
				t, err = s.latestCommit(ctx, owner, repo, b, path)
				return err
			})
			return t, err
		})
		if err != nil {
			s.logger.Warn("commit lookup failed", "repo", owner+"/"+repo, "branch", b, "path", path, "error", err.Error())
			return time.Time{}
		}
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// latestCommit queries the GitHub commits API. A missing branch or an empty
// history returns a zero time and no error.
func (s *Service) latestCommit(ctx context.Context, owner, repo, branch, path string) (time.Time, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("sha", branch)
	q.Set("per_page", "1")
	endpoint := s.apiBase + "/repos/" + owner + "/" + repo + "/commits?" + q.Encode()

	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	body, err := s.fetch(ctx, endpoint, headers)
	if errors.IsNotFound(err) || errors.Is(err, errors.ErrInvalidResponse) {
		// GitHub answers 404 or 422 for an unknown sha.
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if !gjson.ValidBytes(body) {
		return time.Time{}, errors.Classify(errors.ErrFormat, errors.New("invalid json"), endpoint)
	}

	date := gjson.GetBytes(body, "0.commit.author.date")
	if !date.Exists() {
		date = gjson.GetBytes(body, "0.commit.committer.date")
	}
	if !date.Exists() {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, date.String())
	if err != nil {
		return time.Time{}, errors.Classify(errors.ErrFormat, err, "commit date")
	}
	return t, nil
}

// fetch reads a file:// URL from the filesystem or GETs anything else with
// the per request timeout.
func (s *Service) fetch(ctx context.Context, src string, headers map[string]string) ([]byte, error) {
	if strings.HasPrefix(src, "file://") {
		u, err := url.Parse(src)
		if err != nil {
			return nil, errors.Classify(errors.ErrConfiguration, err, src)
		}
		data, err := afero.ReadFile(s.fs, u.Path)
		if err != nil {
			return nil, errors.Classify(errors.ErrNetwork, err, src)
		}
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.http.Fetch(ctx, src, headers)
}

func (s *Service) readStamp(name string) int64 {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (s *Service) writeStamp(name string, t time.Time) error {
	return s.writeAtomic(filepath.Join(s.dir, name), []byte(strconv.FormatInt(t.Unix(), 10)))
}

// writeAtomic writes data next to dest and renames it into place.
func (s *Service) writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "temp file for %s", dest)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(name)
		return errors.Wrapf(err, "write %s", dest)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(name)
		return errors.Wrapf(err, "close %s", dest)
	}
	if err := s.fs.Rename(name, dest); err != nil {
		_ = s.fs.Remove(name)
		return errors.Wrapf(err, "rename into %s", dest)
	}
	return nil
}
