// cmd/droidsweep/check.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"droidsweep/internal/adapters/output"
	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/core/usecases"
	"droidsweep/internal/indicators"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/ui"
	"droidsweep/internal/platform/workerpool"
)

func newCheckBundleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-bundle [dir|zip]",
		Short: "Analyze an acquisition bundle directory or zip archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.BundlePath
			if len(args) == 1 {
				path = args[0]
			}
			if strings.TrimSpace(path) == "" {
				return errors.Wrap(errors.ErrConfiguration, "bundle path is required")
			}
			return a.checkBundle(cmd.Context(), path)
		},
	}
}

func newCheckFileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-file <file>",
		Short: "Analyze a single extracted file with every module that accepts its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.checkFile(cmd.Context(), args[0])
		},
	}
}

func (a *app) checkBundle(ctx context.Context, path string) error {
	start := time.Now()
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	// 4. Indicators (refrescados si toca)
	a.autoUpdate(ctx)
	store := a.loadIndicators()

	// 5. Runner
	runner := a.newRunner()
	defer runner.Close()
	runner.SetIndicators(store)

	a.presenter.Start(ui.RunInfo{
		Source:         path,
		IndicatorFiles: len(store.Files()),
		Keywords:       store.Total(),
		Workers:        a.cfg.Workers,
		TimeoutSeconds: a.cfg.TimeoutS,
	})

	// 6. Ejecutar módulos
	result, err := a.runBundle(ctx, runner, path)
	if err != nil {
		a.logger.Err(err, "phase", "run", "bundle", path)
		return err
	}

	// 7. Outputs
	return a.finish(result, store, start)
}

// runBundle elige entre directorio y zip.
func (a *app) runBundle(ctx context.Context, runner *usecases.Runner, path string) (*usecases.RunResult, error) {
	isDir, err := afero.IsDir(a.fs, path)
	if err != nil {
		return nil, errors.Classify(errors.ErrConfiguration, err, "bundle "+path)
	}
	if isDir {
		return runner.RunAll(ctx, path), nil
	}
	return runner.RunZip(ctx, path)
}

func (a *app) checkFile(ctx context.Context, path string) error {
	start := time.Now()
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return errors.Classify(errors.ErrConfiguration, err, "read "+path)
	}

	a.autoUpdate(ctx)
	store := a.loadIndicators()

	runner := a.newRunner()
	defer runner.Close()
	runner.SetIndicators(store)

	a.presenter.Start(ui.RunInfo{
		Source:         path,
		IndicatorFiles: len(store.Files()),
		Keywords:       store.Total(),
		Workers:        1,
		TimeoutSeconds: a.cfg.TimeoutS,
	})

	result := runner.RunFile(ctx, filepath.Base(path), data)
	if len(result.Artifacts) == 0 && len(result.Errors) == 0 {
		a.presenter.Warning(fmt.Sprintf("no module accepts %s", filepath.Base(path)))
	}
	result.Source = path
	return a.finish(result, store, start)
}

func (a *app) newRunner() *usecases.Runner {
	return usecases.NewRunner(usecases.RunnerOptions{
		Fs:             a.fs,
		Logger:         a.logger,
		Workers:        a.cfg.Workers,
		Scheduler:      workerpool.SchedulerByName(a.cfg.Scheduler),
		Metrics:        a.metrics,
		BackupPassword: a.cfg.BackupPassword,
		Modules:        a.cfg.Modules,
		Observers:      []ports.Notifier{a.presenter},
	})
}

// loadIndicators carga el directorio de indicadores. Si no existe, el análisis
// sigue con un store vacío y las heurísticas se aplican igual.
func (a *app) loadIndicators() *indicators.Store {
	store, err := indicators.LoadFromDirectory(a.fs, a.cfg.IndicatorsDir, indicators.WithLogger(a.logger))
	if err != nil {
		a.logger.Warn("indicators not loaded", "dir", a.cfg.IndicatorsDir, "error", err.Error())
		a.presenter.Warning("No indicators loaded, only heuristics will run. Use download-iocs or --iocs.")
		return indicators.NewStore(nil)
	}

	counts := make(map[domain.IndicatorType]int)
	for _, t := range domain.AllIndicatorTypes() {
		if n := store.Count(t); n > 0 {
			counts[t] = n
		}
	}
	a.metrics.SetIndicators(counts, len(store.Skipped()))
	for _, skipped := range store.Skipped() {
		a.logger.Warn("indicator file skipped", "error", skipped.Error())
	}
	a.logger.Info("indicators loaded",
		"files", len(store.Files()),
		"keywords", store.Total(),
		"fingerprint", store.Fingerprint(),
	)
	return store
}

// finish muestra el resumen y escribe reporte, módulos y summary.txt.
func (a *app) finish(result *usecases.RunResult, store *indicators.Store, start time.Time) error {
	report := usecases.NewReport(result, store)

	summary := ui.RunSummary{Duration: result.Duration(), Detections: report.Detections}
	for _, m := range report.Modules {
		summary.Modules = append(summary.Modules, ui.ModuleRow{
			Name:       m.Name,
			Records:    m.Records,
			Detections: m.Detections,
			Err:        m.Error,
		})
	}
	a.presenter.Finish(summary)

	if !a.cfg.Output.NoJSON {
		if err := a.writeOutputs(result, report); err != nil {
			a.logger.Err(err, "phase", "output")
			return err
		}
	}

	a.logger.Info("droidsweep finished",
		"elapsed_ms", elapsedMs(start),
		"modules", len(report.Modules),
		"detections", len(report.Detections),
		"errors", len(report.Errors),
	)
	a.exitCode = exitStatus(report)
	return nil
}

// exitStatus es exitDetections solo si hay alertas de nivel MEDIUM o superior.
func exitStatus(report *usecases.Report) int {
	if report.Alerts(exitAlertLevel) > 0 {
		return exitDetections
	}
	return exitOK
}

func (a *app) writeOutputs(result *usecases.RunResult, report *usecases.Report) error {
	dir := a.cfg.OutputDir

	path, err := output.WriteReport(a.fs, dir, report)
	if err != nil {
		return err
	}
	a.presenter.Info("Report written to " + path)

	mw := output.NewModuleWriter(a.fs, dir, a.logger)
	if _, err := mw.WriteAll(result); err != nil {
		return err
	}
	if _, err := mw.WriteTimeline(report.Detections); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := output.WriteTable(&buf, report); err != nil {
		return err
	}
	return afero.WriteFile(a.fs, filepath.Join(dir, "summary.txt"), buf.Bytes(), 0o644)
}
