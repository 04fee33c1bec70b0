// cmd/droidsweep/iocs.go
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"droidsweep/internal/platform/registry"
	"droidsweep/internal/platform/ui"
	"droidsweep/internal/updates"
)

func newDownloadIOCsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download-iocs",
		Short: "Mirror the indicator feeds listed in the remote index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()
			return a.downloadIOCs(ctx)
		},
	}
}

func newListModulesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-modules",
		Short: "List the registered analysis modules and the files they read",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			reg := registry.Global()
			for _, name := range reg.Ordered() {
				meta, _ := reg.GetMetadata(name)
				fmt.Fprintf(out, "%-28s %s\n", name, meta.Description)
				if len(meta.Paths) > 0 {
					fmt.Fprintf(out, "%-28s   reads: %s\n", "", strings.Join(meta.Paths, ", "))
				}
			}
		},
	}
}

func (a *app) newUpdateService() (*updates.Service, error) {
	return updates.NewService(updates.Options{
		Fs:            a.fs,
		Dir:           a.cfg.DataDir,
		IndexURL:      a.cfg.Updates.IndexURL,
		GitHubAPI:     a.cfg.Updates.GitHubAPI,
		GitHubToken:   a.cfg.Updates.GitHubToken,
		Timeout:       a.cfg.Updates.RequestTimeout,
		CheckInterval: a.cfg.Updates.CheckInterval,
		Logger:        a.logger,
		Metrics:       a.metrics,
	})
}

func (a *app) downloadIOCs(ctx context.Context) error {
	svc, err := a.newUpdateService()
	if err != nil {
		return err
	}
	summary, err := svc.Update(ctx)
	if summary != nil {
		a.presenter.Feeds(feedRows(summary))
	}
	if err != nil {
		a.logger.Err(err, "phase", "update")
		return err
	}
	a.presenter.Info(fmt.Sprintf("%d feeds downloaded into %s", len(summary.Downloaded), svc.IndicatorsDir()))

	if custom := filepath.Clean(a.cfg.IndicatorsDir); custom != filepath.Clean(svc.IndicatorsDir()) {
		a.presenter.Warning("--iocs points to " + custom + ", analyses will not use the downloaded feeds")
	}
	return nil
}

// autoUpdate refresca los indicadores si la última comprobación es antigua.
// Los fallos se loguean: un feed caído no detiene el análisis.
func (a *app) autoUpdate(ctx context.Context) {
	if !a.cfg.Updates.AutoCheck {
		return
	}
	svc, err := a.newUpdateService()
	if err != nil {
		a.logger.Warn("indicator update disabled", "error", err.Error())
		return
	}
	if !svc.ShouldCheck() {
		return
	}
	a.presenter.Info("Checking for indicator updates")
	summary, err := svc.Update(ctx)
	if err != nil {
		a.logger.Warn("indicator update failed", "error", err.Error())
		return
	}
	if len(summary.Downloaded) > 0 || len(summary.Failed) > 0 {
		a.presenter.Feeds(feedRows(summary))
	}
}

func feedRows(s *updates.UpdateSummary) []ui.FeedRow {
	rows := make([]ui.FeedRow, 0, len(s.Downloaded)+len(s.Skipped)+len(s.Failed))
	for _, d := range s.Downloaded {
		rows = append(rows, ui.FeedRow{
			Entry:  d.Entry,
			Status: ui.StatusSuccess,
			Detail: fmt.Sprintf("%s (%d bytes)", filepath.Base(d.Path), d.Bytes),
		})
	}
	for _, name := range s.Skipped {
		rows = append(rows, ui.FeedRow{Entry: name, Status: ui.StatusSkipped, Detail: "up to date"})
	}
	for _, f := range s.Failed {
		rows = append(rows, ui.FeedRow{Entry: f.Entry, Status: ui.StatusError, Detail: f.Err.Error()})
	}
	return rows
}
