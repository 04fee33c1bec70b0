// internal/platform/ui/colors.go
package ui

import (
	"github.com/pterm/pterm"

	"droidsweep/internal/core/domain"
)

// Paleta base
var (
	EmberOrange = pterm.NewRGB(255, 107, 53)
	InfernoRed  = pterm.NewRGB(215, 38, 56)
	MoltenGold  = pterm.NewRGB(255, 182, 39)
	AshGray     = pterm.NewRGB(120, 120, 120)
	SmokeWhite  = pterm.NewRGB(232, 232, 232)
	GhostCyan   = pterm.NewRGB(0, 206, 209)
	DeepPurple  = pterm.NewRGB(138, 92, 246)
)

// Estilos preconfigurados
var (
	StylePrimary   = EmberOrange.ToRGBStyle()
	StyleSuccess   = GhostCyan.ToRGBStyle()
	StyleWarning   = MoltenGold.ToRGBStyle()
	StyleError     = InfernoRed.ToRGBStyle()
	StyleSecondary = AshGray.ToRGBStyle()
	StyleText      = SmokeWhite.ToRGBStyle()
	StyleInfo      = DeepPurple.ToRGBStyle()
)

// LevelStyle colorea un nivel de alerta.
func LevelStyle(l domain.AlertLevel) pterm.RGBStyle {
	switch {
	case l >= domain.AlertHigh:
		return StyleError
	case l == domain.AlertMedium:
		return StyleWarning
	case l == domain.AlertLow:
		return StylePrimary
	case l == domain.AlertInfo:
		return StyleInfo
	default:
		return StyleSecondary
	}
}
