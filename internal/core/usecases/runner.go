// internal/core/usecases/runner.go
package usecases

import (
	"archive/zip"
	"bytes"
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
	"droidsweep/internal/platform/metrics"
	"droidsweep/internal/platform/registry"
	"droidsweep/internal/platform/workerpool"
)

// Runner ejecuta los módulos de análisis registrados contra un bundle.
type Runner struct {
	registry       *registry.ModuleRegistry
	fs             afero.Fs
	logger         logx.Logger
	pool           *workerpool.WorkerPool
	metrics        *metrics.Metrics
	backupPassword string
	modules        []string
	notifiers      []ports.Notifier

	mu      sync.RWMutex
	matcher ports.IndicatorMatcher
}

// RunnerOptions configura el runner.
type RunnerOptions struct {
	// Registry por defecto es registry.Global().
	Registry *registry.ModuleRegistry
	// Fs por defecto es el filesystem del sistema.
	Fs        afero.Fs
	Logger    logx.Logger
	Workers   int
	Scheduler workerpool.Scheduler
	Metrics   *metrics.Metrics

	// BackupPassword se pasa a los artifacts que leen backups cifrados.
	BackupPassword string

	// Modules limita RunAll a estos nombres. Vacío ejecuta todos.
	Modules []string

	// Observers reciben el progreso de cada módulo.
	Observers []ports.Notifier
}

// RunResult es el resultado de RunAll, RunZip o RunFile.
type RunResult struct {
	Source    string
	Artifacts map[string]ports.Artifact
	Errors    map[string]error
	Started   time.Time
	Finished  time.Time
}

func newRunResult(source string) *RunResult {
	return &RunResult{
		Source:    source,
		Artifacts: make(map[string]ports.Artifact),
		Errors:    make(map[string]error),
		Started:   time.Now(),
	}
}

// Names retorna los nombres de módulo del resultado, ordenados.
func (rr *RunResult) Names() []string {
	names := make([]string, 0, len(rr.Artifacts))
	for n := range rr.Artifacts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Detections reúne las detecciones de todos los módulos, más graves primero.
// Los módulos se recorren por nombre para que el orden sea estable.
func (rr *RunResult) Detections() []domain.Detection {
	var out []domain.Detection
	for _, n := range rr.Names() {
		out = append(out, rr.Artifacts[n].Detected()...)
	}
	domain.SortDetections(out)
	return out
}

// Duration retorna el tiempo total de la ejecución.
func (rr *RunResult) Duration() time.Duration {
	return rr.Finished.Sub(rr.Started)
}

// NewRunner crea un runner. El worker pool arranca en el primer RunAll.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Registry == nil {
		opts.Registry = registry.Global()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	logger := opts.Logger.With("component", "runner")
	return &Runner{
		registry: opts.Registry,
		fs:       opts.Fs,
		logger:   logger,
		pool: workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{
			Workers:   opts.Workers,
			Scheduler: opts.Scheduler,
			Logger:    opts.Logger,
		}),
		metrics:        opts.Metrics,
		backupPassword: opts.BackupPassword,
		modules:        append([]string(nil), opts.Modules...),
		notifiers:      append([]ports.Notifier(nil), opts.Observers...),
	}
}

func (r *Runner) notify(e ports.Event) {
	if len(r.notifiers) == 0 {
		return
	}
	e.Timestamp = time.Now()
	for _, n := range r.notifiers {
		n.Notify(e)
	}
}

// moduleDone registra métricas y emite el evento final de un módulo.
func (r *Runner) moduleDone(name, source string, a ports.Artifact, err error, took time.Duration) {
	r.metrics.ObserveModule(name, len(a.Results()), a.Detected(), err, took)
	e := ports.Event{
		Type:       ports.EventModuleFinished,
		Module:     name,
		Input:      source,
		Records:    len(a.Results()),
		Detections: len(a.Detected()),
		Err:        err,
		Duration:   took,
	}
	if err != nil {
		e.Type = ports.EventModuleFailed
	}
	r.notify(e)
}

// SetIndicators fija el matcher que recibe cada artifact antes de CheckIndicators.
func (r *Runner) SetIndicators(m ports.IndicatorMatcher) {
	r.mu.Lock()
	r.matcher = m
	r.mu.Unlock()
}

func (r *Runner) indicators() ports.IndicatorMatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matcher
}

// Close detiene el worker pool.
func (r *Runner) Close() {
	r.pool.Stop()
}

// RunModule ejecuta un módulo contra bundleDir en el filesystem del runner.
//
// Se parsea el primero de los paths del módulo que exista en bundleDir. Un path
// glob concatena todas las coincidencias por nombre. Si no hay nada, el módulo
// se parsea con entrada vacía, salvo que su metadata lo marque Required: en ese
// caso devuelve domain.ErrNoInput. CheckIndicators solo corre si hay matcher.
func (r *Runner) RunModule(ctx context.Context, name, bundleDir string) (ports.Artifact, error) {
	return r.runModule(ctx, r.fs, name, bundleDir)
}

func (r *Runner) runModule(ctx context.Context, fs afero.Fs, name, bundleDir string) (a ports.Artifact, err error) {
	start := time.Now()
	a, meta, err := r.registry.Build(name)
	if err != nil {
		return nil, err
	}
	var source string
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Wrapf(domain.ErrModulePanic, "module %s: %v", name, rec)
		}
		r.moduleDone(name, source, a, err, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return a, err
	}
	r.notify(ports.Event{Type: ports.EventModuleStarted, Module: name})

	data, source, err := readModuleInput(fs, bundleDir, meta.Paths)
	if err != nil {
		return a, errors.Wrapf(err, "module %s", name)
	}
	if source == "" && meta.Required {
		return a, errors.Wrapf(domain.ErrNoInput, "module %s: none of %v in %s", name, meta.Paths, bundleDir)
	}

	return a, r.process(a, name, source, data)
}

// process pasa data a un artifact ya construido.
func (r *Runner) process(a ports.Artifact, name, source string, data []byte) error {
	if pp, ok := a.(ports.PasswordProtected); ok && r.backupPassword != "" {
		pp.SetBackupPassword(r.backupPassword)
	}

	logger := r.logger.With("module", name)
	if source == "" {
		logger.Debug("no input found, parsing empty input")
	} else {
		logger.Debug("parsing", "file", source, "bytes", len(data))
	}

	if err := a.Parse(data); err != nil {
		return errors.Wrapf(err, "module %s: parse %s", name, source)
	}

	if m := r.indicators(); m != nil {
		a.SetIndicators(m)
		a.CheckIndicators()
	}
	logger.Debug("module finished", "records", len(a.Results()), "detections", len(a.Detected()))
	return nil
}

// readModuleInput retorna el contenido del primer path existente y el nombre
// del que se leyó. Un nombre vacío indica que no se encontró nada.
func readModuleInput(fs afero.Fs, dir string, paths []string) ([]byte, string, error) {
	for _, p := range paths {
		full := filepath.Join(dir, p)

		if !strings.ContainsAny(p, "*?[") {
			ok, err := afero.Exists(fs, full)
			if err != nil || !ok {
				continue
			}
			data, err := afero.ReadFile(fs, full)
			if err != nil {
				return nil, "", errors.Wrapf(err, "read %s", full)
			}
			return data, full, nil
		}

		matches, err := afero.Glob(fs, full)
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		var buf bytes.Buffer
		for _, m := range matches {
			data, err := afero.ReadFile(fs, m)
			if err != nil {
				return nil, "", errors.Wrapf(err, "read %s", m)
			}
			buf.Write(data)
			if len(data) > 0 && data[len(data)-1] != '\n' {
				buf.WriteByte('\n')
			}
		}
		return buf.Bytes(), full, nil
	}
	return nil, "", nil
}

// RunAll ejecuta en paralelo los módulos seleccionados contra bundleDir. El
// resultado tiene una entrada por módulo. Un módulo que falla conserva lo que
// llegó a parsear y su error queda en RunResult.Errors.
func (r *Runner) RunAll(ctx context.Context, bundleDir string) *RunResult {
	return r.runAll(ctx, r.fs, bundleDir, bundleDir)
}

func (r *Runner) runAll(ctx context.Context, fs afero.Fs, bundleDir, source string) *RunResult {
	result := newRunResult(source)

	names, selectErrs := r.registry.Select(r.modules)
	for _, err := range selectErrs {
		r.logger.Warn("skipping module", "error", err.Error())
	}
	r.logger.Info("running modules", "bundle", source, "modules", len(names))
	r.notify(ports.Event{Type: ports.EventRunStarted, Source: source, Modules: names})

	tasks := make([]workerpool.Task, 0, len(names))
	for _, name := range names {
		meta, _ := r.registry.GetMetadata(name)
		tasks = append(tasks, NewModuleTask(name, meta.Priority, meta.Weight,
			func(ctx context.Context) (ports.Artifact, error) {
				return r.runModule(ctx, fs, name, bundleDir)
			}))
	}

	for _, tr := range r.pool.Submit(ctx, tasks) {
		name := tr.Task.Name()
		if tr.Error != nil {
			r.logger.Warn("module failed", "module", name, "error", tr.Error.Error())
		}

		var a ports.Artifact
		err := tr.Error
		if mt, ok := tr.Task.(*ModuleTask); ok {
			a, _ = mt.Result()
		}
		if a == nil {
			// Sin artifact: cancelado antes de encolarse o panic en el worker.
			a, _, _ = r.registry.Build(name)
			if err == nil {
				err = errors.Wrapf(domain.ErrModulePanic, "module %s produced no artifact", name)
			}
		}
		result.Artifacts[name] = a
		if err != nil {
			result.Errors[name] = err
		}
	}

	result.Finished = time.Now()
	r.metrics.ObserveRun(result.Duration())
	r.notify(ports.Event{Type: ports.EventRunCompleted, Source: source, Duration: result.Duration()})
	r.logger.Info("modules finished",
		"modules", len(result.Artifacts),
		"errors", len(result.Errors),
		"detections", len(result.Detections()),
		"duration_ms", result.Duration().Milliseconds(),
	)
	return result
}

// RunZip ejecuta los módulos contra un bundle zip del filesystem del runner.
// La raíz del bundle es el directorio menos profundo con un archivo que algún
// módulo acepta. Sirven tanto zips planos como con carpeta raíz.
func (r *Runner) RunZip(ctx context.Context, zipPath string) (*RunResult, error) {
	f, err := r.fs.Open(zipPath)
	if err != nil {
		return nil, errors.Classify(errors.ErrConfiguration, err, "open bundle "+zipPath)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", zipPath)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, errors.Classify(errors.ErrFormat, err, "read zip "+zipPath)
	}

	root := r.zipBundleRoot(zr)
	r.logger.Debug("zip bundle", "path", zipPath, "root", root, "entries", len(zr.File))
	return r.runAll(ctx, zipfs.New(zr), root, zipPath), nil
}

func (r *Runner) zipBundleRoot(zr *zip.Reader) string {
	root := ""
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || len(r.registry.ForFile(zf.Name)) == 0 {
			continue
		}
		dir := path.Dir("/" + zf.Name)
		if root == "" || strings.Count(dir, "/") < strings.Count(root, "/") ||
			(strings.Count(dir, "/") == strings.Count(root, "/") && dir < root) {
			root = dir
		}
	}
	if root == "" {
		return "/"
	}
	return root
}

// RunFile ejecuta sobre data cada módulo que acepta fileName, para un archivo
// suelto sin bundle. Los módulos corren en secuencia.
func (r *Runner) RunFile(ctx context.Context, fileName string, data []byte) *RunResult {
	result := newRunResult(fileName)

	names := r.registry.ForFile(fileName)
	if len(r.modules) > 0 {
		allowed := make(map[string]bool, len(r.modules))
		for _, m := range r.modules {
			allowed[m] = true
		}
		kept := names[:0]
		for _, n := range names {
			if allowed[n] {
				kept = append(kept, n)
			}
		}
		names = kept
	}

	r.notify(ports.Event{Type: ports.EventRunStarted, Source: fileName, Modules: names})
	for _, name := range names {
		if ctx.Err() != nil {
			result.Errors[name] = ctx.Err()
			continue
		}
		a, err := r.runOnData(name, fileName, data)
		if a != nil {
			result.Artifacts[name] = a
		}
		if err != nil {
			result.Errors[name] = err
			r.logger.Warn("module failed", "module", name, "error", err.Error())
		}
	}
	if len(names) == 0 {
		r.logger.Warn("no module accepts file", "file", fileName)
	}

	result.Finished = time.Now()
	r.notify(ports.Event{Type: ports.EventRunCompleted, Source: fileName, Duration: result.Duration()})
	return result
}

func (r *Runner) runOnData(name, fileName string, data []byte) (a ports.Artifact, err error) {
	start := time.Now()
	a, _, err = r.registry.Build(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Wrapf(domain.ErrModulePanic, "module %s: %v", name, rec)
		}
		r.moduleDone(name, fileName, a, err, time.Since(start))
	}()
	r.notify(ports.Event{Type: ports.EventModuleStarted, Module: name})
	return a, r.process(a, name, fileName, data)
}
