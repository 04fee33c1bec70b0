// cmd/droidsweep/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/platform/config"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
	"droidsweep/internal/platform/metrics"
	"droidsweep/internal/platform/ui"

	// Importar artifacts para auto-registro via init()
	_ "droidsweep/internal/artifacts"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Códigos de salida
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitDetections = 3
)

// exitAlertLevel es el nivel mínimo que cuenta para exitDetections.
const exitAlertLevel = domain.AlertMedium

// app reúne lo que comparten los subcomandos.
type app struct {
	cfg       config.Config
	fs        afero.Fs
	logger    logx.Logger
	presenter ui.Presenter
	metrics   *metrics.Metrics

	// exitCode lo fija el subcomando; main lo usa al salir
	exitCode int
}

func main() {
	a := &app{fs: afero.NewOsFs()}
	root := newRootCommand(a)

	// 1. Contexto y señales para un cierre limpio
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		if errors.IsConfiguration(err) {
			os.Exit(exitUsage)
		}
		os.Exit(exitFailure)
	}
	cancel()
	os.Exit(a.exitCode)
}

func newRootCommand(a *app) *cobra.Command {
	a.cfg = config.FromEnv()

	root := &cobra.Command{
		Use:           "droidsweep",
		Short:         "Android forensic triage against indicators of compromise",
		Long:          config.LongHelp,
		Example:       config.Examples,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	config.BindFlags(root.PersistentFlags(), &a.cfg)
	root.SetUsageTemplate(root.UsageTemplate() + "\n" + config.EnvHelp + "\n")

	root.AddCommand(
		newCheckBundleCommand(a),
		newCheckFileCommand(a),
		newDownloadIOCsCommand(a),
		newListModulesCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup normaliza la config y construye logger, presenter y métricas.
func (a *app) setup(cmd *cobra.Command) error {
	// 2. Normalizar configuración
	if err := a.cfg.Normalize(); err != nil {
		return err
	}

	// 3. Logger compartido
	a.logger = logx.NewWithWriter(cmd.ErrOrStderr(), logx.ParseLevel(a.cfg.LogLevel))
	a.presenter = ui.New(cmd.OutOrStdout(), a.cfg.Output.NoTable)
	a.metrics = metrics.New()

	a.logger.Debug("droidsweep starting",
		"version", version,
		"commit", commit,
		"command", cmd.Name(),
		"data_dir", a.cfg.DataDir,
		"indicators_dir", a.cfg.IndicatorsDir,
		"workers", a.cfg.Workers,
	)
	return nil
}

func (a *app) teardown() error {
	if a.presenter != nil {
		_ = a.presenter.Close()
	}
	if a.cfg.Output.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
			a.logger.Err(err, "phase", "metrics")
			return err
		}
		a.logger.Debug("metrics written", "file", a.cfg.Output.MetricsFile)
	}
	return nil
}

// withTimeout aplica el timeout global si está configurado.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.cfg.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			config.PrintVersion(cmd.OutOrStdout(), version, commit, date)
		},
	}
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
