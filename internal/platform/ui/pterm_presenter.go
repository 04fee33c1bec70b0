// internal/platform/ui/pterm_presenter.go
package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/pterm/pterm"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
)

// PTermPresenter implementa Presenter con pterm. Todo se renderiza a string
// y se escribe en out, así la salida se puede capturar.
type PTermPresenter struct {
	mu  sync.Mutex
	out io.Writer

	total int
	done  int
}

func NewPTermPresenter(out io.Writer) *PTermPresenter {
	return &PTermPresenter{out: out}
}

// Start muestra el header y la configuración del análisis
func (p *PTermPresenter) Start(info RunInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	header := pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Sprint("droidsweep - Android triage")
	fmt.Fprintln(p.out, header)

	body := fmt.Sprintf("%s Bundle: %s\n", IconBundle, pterm.Cyan(info.Source))
	body += fmt.Sprintf("%s Indicators: %d keywords in %d files\n", IconIndicators, info.Keywords, info.IndicatorFiles)
	body += fmt.Sprintf("%s Workers: %d\n", IconWorkers, info.Workers)
	if info.TimeoutSeconds > 0 {
		body += fmt.Sprintf("%s Timeout: %ds", IconTime, info.TimeoutSeconds)
	} else {
		body += fmt.Sprintf("%s Timeout: %s", IconTime, boolToString(false))
	}
	box := pterm.DefaultBox.
		WithTitle("Analysis").
		WithTitleTopCenter().
		WithLeftPadding(2).
		WithRightPadding(2).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).
		Sprint(body)
	fmt.Fprintln(p.out, box)
	fmt.Fprintln(p.out)
}

// Notify pinta una línea por módulo terminado.
func (p *PTermPresenter) Notify(e ports.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case ports.EventRunStarted:
		p.total, p.done = len(e.Modules), 0
		fmt.Fprint(p.out, pterm.DefaultSection.Sprintln(fmt.Sprintf("%s Modules (%d)", IconModules, len(e.Modules))))
	case ports.EventModuleFinished, ports.EventModuleFailed:
		p.done++
		fmt.Fprintln(p.out, p.moduleLine(e))
	case ports.EventRunCompleted:
		fmt.Fprintln(p.out)
		fmt.Fprint(p.out, pterm.Info.Sprintln(fmt.Sprintf("%d modules finished in %s", p.done, formatDuration(e.Duration))))
	}
}

func (p *PTermPresenter) moduleLine(e ports.Event) string {
	status := ModuleStatus(e.Err, e.Detections)
	line := fmt.Sprintf("  [%d/%d] %s %-26s %s",
		p.done, p.total,
		status.Symbol(),
		pterm.NewStyle(status.Color()).Sprint(e.Module),
		StyleSecondary.Sprint(formatDuration(e.Duration)),
	)
	if e.Records > 0 {
		line += fmt.Sprintf("  %d records", e.Records)
	}
	if e.Detections > 0 {
		line += "  " + StyleWarning.Sprint(fmt.Sprintf("%d detections", e.Detections))
	}
	if e.Err != nil {
		line += "  " + StyleError.Sprint(truncate(e.Err.Error(), 80))
	}
	return line
}

func (p *PTermPresenter) Info(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, pterm.Info.Sprintln(msg))
}

func (p *PTermPresenter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, pterm.Warning.Sprintln(msg))
}

func (p *PTermPresenter) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, pterm.Error.Sprintln(msg))
}

// Finish muestra el resumen por módulo y las detecciones, más graves primero
func (p *PTermPresenter) Finish(s RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, pterm.LightBlue(SeparatorHeavy))
	fmt.Fprint(p.out, pterm.DefaultSection.Sprintln("Modules"))
	p.renderTable(moduleTable(s.Modules))

	fmt.Fprint(p.out, pterm.DefaultSection.Sprintln(fmt.Sprintf("Detections (%d)", len(s.Detections))))
	if len(s.Detections) == 0 {
		fmt.Fprint(p.out, pterm.Success.Sprintln("No detections"))
	} else {
		fmt.Fprintln(p.out, levelCounts(s.Detections))
		p.renderTable(detectionTable(s.Detections))
	}
	fmt.Fprintf(p.out, "%s Total: %s\n\n", IconTime, formatDuration(s.Duration))
}

// Feeds muestra la tabla de actualización de indicadores
func (p *PTermPresenter) Feeds(rows []FeedRow) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, pterm.DefaultSection.Sprintln("Indicator feeds"))
	if len(rows) == 0 {
		fmt.Fprint(p.out, pterm.Info.Sprintln("Index lists no feeds"))
		return
	}
	data := pterm.TableData{{"Feed", "Status", "Detail"}}
	for _, r := range rows {
		data = append(data, []string{truncate(r.Entry, 60), r.Status.Label(), truncate(r.Detail, 70)})
	}
	p.renderTable(data)
}

func (p *PTermPresenter) Close() error { return nil }

func (p *PTermPresenter) renderTable(data pterm.TableData) {
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		fmt.Fprintln(p.out, StyleError.Sprint("render table: "+err.Error()))
		return
	}
	fmt.Fprintln(p.out, out)
}

func moduleTable(rows []ModuleRow) pterm.TableData {
	data := pterm.TableData{{"Module", "Status", "Records", "Detections", "Error"}}
	for _, r := range rows {
		var err error
		if r.Err != "" {
			err = fmt.Errorf("%s", r.Err)
		}
		data = append(data, []string{
			r.Name,
			ModuleStatus(err, r.Detections).Label(),
			strconv.Itoa(r.Records),
			strconv.Itoa(r.Detections),
			truncate(r.Err, 60),
		})
	}
	return data
}

func detectionTable(ds []domain.Detection) pterm.TableData {
	data := pterm.TableData{{"Level", "Title", "Indicator", "Detail"}}
	for _, d := range ds {
		ioc := d.IOC
		if ioc == "" {
			ioc = "-"
		}
		data = append(data, []string{
			LevelStyle(d.Level).Sprint(d.Level.String()),
			truncate(d.Title, 40),
			truncate(ioc, 40),
			truncate(d.Message, 70),
		})
	}
	return data
}

// levelCounts resume las detecciones por nivel: "CRITICAL 2 · MEDIUM 1".
func levelCounts(ds []domain.Detection) string {
	counts := domain.CountByLevel(ds)
	levels := make([]domain.AlertLevel, 0, len(counts))
	for l := range counts {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] > levels[j] })

	out := ""
	for i, l := range levels {
		if i > 0 {
			out += " · "
		}
		out += LevelStyle(l).Sprint(fmt.Sprintf("%s %d", l, counts[l]))
	}
	return out
}
