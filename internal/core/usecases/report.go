// internal/core/usecases/report.go
package usecases

import (
	"time"

	"github.com/google/uuid"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/indicators"
)

// Report es el resumen serializable de un análisis.
type Report struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	Started    time.Time          `json:"started"`
	Finished   time.Time          `json:"finished"`
	Indicators IndicatorsSummary  `json:"indicators"`
	Modules    []ModuleSummary    `json:"modules"`
	Detections []domain.Detection `json:"detections"`
	Errors     map[string]string  `json:"errors,omitempty"`
}

// IndicatorsSummary identifica el conjunto de indicadores usado en el run.
type IndicatorsSummary struct {
	Fingerprint string                  `json:"fingerprint,omitempty"`
	Keywords    int                     `json:"keywords"`
	Files       []indicators.LoadedFile `json:"files,omitempty"`
}

// ModuleSummary resume la ejecución de un módulo.
type ModuleSummary struct {
	Name       string `json:"name"`
	Records    int    `json:"records"`
	Detections int    `json:"detections"`
	Error      string `json:"error,omitempty"`
}

// NewReport construye el reporte de result. store puede ser nil si el run no
// tenía indicadores.
func NewReport(result *RunResult, store *indicators.Store) *Report {
	r := &Report{
		ID:         uuid.NewString(),
		Source:     result.Source,
		Started:    result.Started,
		Finished:   result.Finished,
		Detections: result.Detections(),
		Indicators: IndicatorsSummary{
			Fingerprint: store.Fingerprint(),
			Keywords:    store.Total(),
			Files:       store.Files(),
		},
	}
	if r.Detections == nil {
		r.Detections = []domain.Detection{}
	}

	for _, name := range result.Names() {
		a := result.Artifacts[name]
		ms := ModuleSummary{
			Name:       name,
			Records:    len(a.Results()),
			Detections: len(a.Detected()),
		}
		if err := result.Errors[name]; err != nil {
			ms.Error = err.Error()
		}
		r.Modules = append(r.Modules, ms)
	}

	if len(result.Errors) > 0 {
		r.Errors = make(map[string]string, len(result.Errors))
		for name, err := range result.Errors {
			r.Errors[name] = err.Error()
		}
	}
	return r
}

// CountByLevel cuenta las detecciones del reporte por nivel.
func (r *Report) CountByLevel() map[domain.AlertLevel]int {
	return domain.CountByLevel(r.Detections)
}

// Alerts cuenta las detecciones de nivel min o superior. Las entradas LOG e
// INFO son contexto, no hallazgos.
func (r *Report) Alerts(min domain.AlertLevel) int {
	n := 0
	for _, d := range r.Detections {
		if d.Level.AtLeast(min) {
			n++
		}
	}
	return n
}
