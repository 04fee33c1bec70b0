// internal/platform/ui/presenter.go
package ui

import (
	"io"
	"time"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
)

// Presenter muestra el progreso y el resultado de un análisis. Recibe los
// eventos de módulo del runner como ports.Notifier.
type Presenter interface {
	ports.Notifier

	// Start muestra la configuración del análisis
	Start(info RunInfo)

	Info(msg string)
	Warning(msg string)
	Error(msg string)

	// Finish muestra las tablas de módulos y detecciones
	Finish(summary RunSummary)

	// Feeds muestra el resultado de una actualización de indicadores
	Feeds(rows []FeedRow)

	Close() error
}

// RunInfo contiene información inicial del análisis
type RunInfo struct {
	Source         string
	IndicatorFiles int
	Keywords       int
	Workers        int
	TimeoutSeconds int
}

// RunSummary contiene el resultado final
type RunSummary struct {
	Duration   time.Duration
	Modules    []ModuleRow
	Detections []domain.Detection
}

type ModuleRow struct {
	Name       string
	Records    int
	Detections int
	Err        string
}

// FeedRow es una fila de la tabla de actualización
type FeedRow struct {
	Entry  string
	Status Status
	Detail string
}

// New retorna un PTermPresenter que escribe en out, o un NoopPresenter en modo quiet.
func New(out io.Writer, quiet bool) Presenter {
	if quiet {
		return NewNoopPresenter()
	}
	return NewPTermPresenter(out)
}
