// internal/adapters/output/streaming.go
package output

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/core/usecases"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
)

// ModuleWriter escribe los resultados de cada módulo en su propio archivo:
// <module>.json con los records y <module>_detected.json con las detecciones.
type ModuleWriter struct {
	fs      afero.Fs
	baseDir string
	logger  logx.Logger
}

// NewModuleWriter crea un writer sobre baseDir.
func NewModuleWriter(fs afero.Fs, baseDir string, logger logx.Logger) *ModuleWriter {
	if logger == nil {
		logger = logx.Discard()
	}
	return &ModuleWriter{
		fs:      fs,
		baseDir: baseDir,
		logger:  logger.With("component", "module-writer"),
	}
}

// WriteModule escribe los archivos de un módulo. Un módulo sin records no
// escribe nada y el archivo _detected solo existe si hay detecciones.
func (w *ModuleWriter) WriteModule(name string, a ports.Artifact) ([]string, error) {
	records := a.Results()
	if len(records) == 0 {
		return nil, nil
	}
	if err := w.fs.MkdirAll(w.baseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	var written []string
	path, err := w.writeJSON(w.ResultsFilename(name), records)
	if err != nil {
		return written, err
	}
	written = append(written, path)

	if detected := a.Detected(); len(detected) > 0 {
		path, err := w.writeJSON(w.DetectedFilename(name), detected)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	w.logger.Debug("module results written",
		"module", name,
		"records", len(records),
		"detections", len(a.Detected()),
	)
	return written, nil
}

// WriteAll escribe todos los módulos del resultado, en orden de nombre.
func (w *ModuleWriter) WriteAll(result *usecases.RunResult) ([]string, error) {
	var (
		written []string
		errs    []error
	)
	for _, name := range result.Names() {
		paths, err := w.WriteModule(name, result.Artifacts[name])
		written = append(written, paths...)
		if err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", name, err))
		}
	}
	return written, errors.Join(errs...)
}

// WriteTimeline escribe todas las detecciones del run en detected.json.
func (w *ModuleWriter) WriteTimeline(ds []domain.Detection) (string, error) {
	if err := w.fs.MkdirAll(w.baseDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}
	if ds == nil {
		ds = []domain.Detection{}
	}
	return w.writeJSON("detected.json", ds)
}

func (w *ModuleWriter) ResultsFilename(module string) string {
	return module + ".json"
}

func (w *ModuleWriter) DetectedFilename(module string) string {
	return module + "_detected.json"
}

func (w *ModuleWriter) writeJSON(filename string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "encode %s", filename)
	}
	path := filepath.Join(w.baseDir, filename)
	if err := writeAtomic(w.fs, path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}
