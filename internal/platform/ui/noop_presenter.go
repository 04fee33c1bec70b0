// internal/platform/ui/noop_presenter.go
package ui

import "droidsweep/internal/core/ports"

// NoopPresenter no produce ninguna salida. Útil para modo quiet o headless.
type NoopPresenter struct{}

func NewNoopPresenter() *NoopPresenter {
	return &NoopPresenter{}
}

func (n *NoopPresenter) Notify(ports.Event) {}
func (n *NoopPresenter) Start(RunInfo)      {}
func (n *NoopPresenter) Info(string)        {}
func (n *NoopPresenter) Warning(string)     {}
func (n *NoopPresenter) Error(string)       {}
func (n *NoopPresenter) Finish(RunSummary)  {}
func (n *NoopPresenter) Feeds([]FeedRow)    {}
func (n *NoopPresenter) Close() error       { return nil }
