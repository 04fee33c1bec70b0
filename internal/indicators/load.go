package indicators

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
)

// Option configures LoadFromDirectory.
type Option func(*loadOptions)

type loadOptions struct {
	logger logx.Logger
}

// WithLogger sets the logger used to report skipped files.
func WithLogger(l logx.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// LoadFromDirectory reads every .json and .stix2 file in dir and builds a Store.
//
// A missing or unreadable directory is a configuration error. A file that is
// not valid JSON is skipped and reported through Store.Skipped; a file with
// neither a STIX2 nor an MVT shape contributes no keywords.
func LoadFromDirectory(fs afero.Fs, dir string, opts ...Option) (*Store, error) {
	o := loadOptions{logger: logx.New()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "indicators")

	ok, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, errors.Classify(errors.ErrConfiguration, err, "indicators directory "+dir)
	}
	if !ok {
		return nil, errors.Wrapf(errors.ErrConfiguration, "indicators directory %q does not exist", dir)
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.Classify(errors.ErrConfiguration, err, "read indicators directory "+dir)
	}

	b := newBuilder()
	for _, entry := range entries {
		if entry.IsDir() || !isIndicatorFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := afero.ReadFile(fs, path)
		if err != nil {
			b.skip(logger, errors.Classify(errors.ErrFormat, err, path))
			continue
		}
		added, err := parseIndicatorFile(data, b.add)
		if err != nil {
			b.skip(logger, errors.Classify(errors.ErrFormat, err, path))
			continue
		}

		sum := sha256.Sum256(data)
		b.files = append(b.files, LoadedFile{Path: path, SHA256: hex.EncodeToString(sum[:]), Keywords: added})
		logger.Debug("indicator file loaded", "file", entry.Name(), "keywords", added)
	}

	store := b.build()
	logger.Info("indicators loaded", "files", len(store.files), "skipped", len(store.skipped), "keywords", store.Total())
	return store, nil
}

func (b *builder) skip(logger logx.Logger, err error) {
	b.skipped = append(b.skipped, err)
	logger.Warn("skipping indicator file", "error", err.Error())
}

func isIndicatorFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".stix2":
		return true
	}
	return false
}

// parseIndicatorFile feeds every keyword in data to add and returns how many
// new keywords were accepted.
//
// Shapes, tried in order:
//   - STIX2 bundle: {"objects": [{"type": "indicator", "pattern": "[k = 'v']"}]}.
//     A top-level array is treated as the objects list.
//   - MVT collection list: {"indicators": [{"app:id": ["a", "b"], ...}]}.
func parseIndicatorFile(data []byte, add func(domain.IndicatorType, string) bool) (int, error) {
	if !gjson.ValidBytes(data) {
		return 0, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)

	added := 0
	accept := func(t domain.IndicatorType, v string) {
		if add(t, v) {
			added++
		}
	}

	objects := root
	if root.IsObject() {
		objects = root.Get("objects")
	}
	if objects.IsArray() {
		objects.ForEach(func(_, node gjson.Result) bool {
			if node.Get("type").String() != "indicator" {
				return true
			}
			if t, v, ok := parsePattern(node.Get("pattern").String()); ok {
				accept(t, v)
			}
			return true
		})
		return added, nil
	}

	root.Get("indicators").ForEach(func(_, coll gjson.Result) bool {
		if !coll.IsObject() {
			return true
		}
		// ForEach instead of Get: keys such as "file:hashes.sha256" clash with path syntax.
		coll.ForEach(func(key, val gjson.Result) bool {
			t, ok := domain.TypeForKey(key.String())
			if !ok {
				return true
			}
			if val.IsArray() {
				val.ForEach(func(_, item gjson.Result) bool {
					accept(t, item.String())
					return true
				})
			} else {
				accept(t, val.String())
			}
			return true
		})
		return true
	})
	return added, nil
}

// parsePattern reads a single-comparison STIX pattern such as
// "[domain-name:value = 'evil.com']". Brackets and quotes are optional.
func parsePattern(pattern string) (domain.IndicatorType, string, bool) {
	p := strings.TrimSpace(pattern)
	if strings.HasPrefix(p, "[") && strings.HasSuffix(p, "]") {
		p = p[1 : len(p)-1]
	}
	key, value, found := strings.Cut(p, "=")
	if !found {
		return "", "", false
	}
	t, ok := domain.TypeForKey(key)
	if !ok {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") {
		value = value[1 : len(value)-1]
	}
	if value == "" {
		return "", "", false
	}
	return t, value, true
}
