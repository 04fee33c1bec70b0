// internal/adapters/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"droidsweep/internal/core/usecases"
	"droidsweep/internal/platform/errors"
)

// sanitizeName convierte la ruta del bundle en un nombre de archivo válido.
// Ejemplo: "/cases/pixel-7.zip" -> "pixel-7_zip"
func sanitizeName(source string) string {
	base := filepath.Base(strings.TrimRight(source, `/\`))
	if base == "." || base == "/" || base == "" {
		return "bundle"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, base)
}

// ReportFilename devuelve droidsweep_<bundle>_<timestamp>.json.
func ReportFilename(r *usecases.Report) string {
	return fmt.Sprintf("droidsweep_%s_%s.json",
		sanitizeName(r.Source),
		r.Started.UTC().Format("20060102_150405"),
	)
}

// WriteReport exporta el reporte en JSON dentro de dir y retorna la ruta escrita.
func WriteReport(fs afero.Fs, dir string, r *usecases.Report) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode report")
	}

	path := filepath.Join(dir, ReportFilename(r))
	if err := writeAtomic(fs, path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// EncodeReport escribe el reporte en w, indentado si pretty.
func EncodeReport(w io.Writer, r *usecases.Report, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

// writeAtomic escribe a un temporal del mismo directorio y renombra.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = fs.Remove(name)
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(name)
		return errors.Wrapf(err, "close %s", path)
	}
	if err := fs.Rename(name, path); err != nil {
		_ = fs.Remove(name)
		return errors.Wrapf(err, "rename %s", path)
	}
	return nil
}
