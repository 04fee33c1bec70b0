// internal/platform/ui/symbols.go
package ui

import "github.com/pterm/pterm"

// Status representa el estado de un módulo o feed
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccess
	StatusWarning
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "ok"
	case StatusWarning:
		return "detections"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Symbol retorna el símbolo Unicode para cada estado
func (s Status) Symbol() string {
	switch s {
	case StatusPending:
		return "⏸"
	case StatusRunning:
		return "⣾"
	case StatusSuccess:
		return "✓"
	case StatusWarning:
		return "⚠"
	case StatusError:
		return "✗"
	case StatusSkipped:
		return "⊘"
	default:
		return "?"
	}
}

func (s Status) Color() pterm.Color {
	switch s {
	case StatusRunning:
		return pterm.FgCyan
	case StatusSuccess:
		return pterm.FgGreen
	case StatusWarning:
		return pterm.FgYellow
	case StatusError:
		return pterm.FgRed
	default:
		return pterm.FgGray
	}
}

// Label devuelve símbolo y nombre coloreados.
func (s Status) Label() string {
	return pterm.NewStyle(s.Color()).Sprint(s.Symbol() + " " + s.String())
}

// ModuleStatus deriva el estado a mostrar para un módulo terminado.
func ModuleStatus(err error, detections int) Status {
	switch {
	case err != nil:
		return StatusError
	case detections > 0:
		return StatusWarning
	default:
		return StatusSuccess
	}
}

var (
	IconBundle     = "📱"
	IconIndicators = "🛡"
	IconTime       = "⏱"
	IconModules    = "🔌"
	IconWorkers    = "⚙️"
)

var SeparatorHeavy = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
