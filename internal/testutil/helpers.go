// internal/testutil/helpers.go
package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"path"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// WriteBundle creates dir on fs and writes files into it.
func WriteBundle(t *testing.T, fs afero.Fs, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}
}

// MemBundle returns an in-memory filesystem holding files under dir.
func MemBundle(t *testing.T, dir string, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	WriteBundle(t, fs, dir, files)
	return fs
}

// ZipBytes packs files into an in-memory zip archive. Parent directories get
// their own entries, like archives produced by "zip -r".
func ZipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	dirs := make(map[string]bool)
	for name := range files {
		names = append(names, name)
		for d := path.Dir(name); d != "." && d != "/"; d = path.Dir(d) {
			dirs[d+"/"] = true
		}
	}
	for d := range dirs {
		names = append(names, d)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if dirs[name] {
			continue
		}
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// MVTIndicators renders an MVT-style indicators document with one collection.
func MVTIndicators(fields map[string][]string) string {
	var b bytes.Buffer
	b.WriteString(`{"indicators":[{`)
	first := true
	for k, vs := range fields {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(quote(k))
		b.WriteString(":[")
		for i, v := range vs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(v))
		}
		b.WriteByte(']')
	}
	b.WriteString(`}]}`)
	return b.String()
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
