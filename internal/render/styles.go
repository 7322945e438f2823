package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hamed0406/fedihealth/internal/probe"
)

var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarn  = lipgloss.NewStyle().Foreground(colorYellow)
	styleFail  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleDim   = lipgloss.NewStyle().Foreground(colorGray)
	styleTitle = lipgloss.NewStyle().Bold(true)
)

const (
	markOK   = "✅"
	markWarn = "⚠️ "
	markFail = "❌"
)

const ruleWidth = 80

func mark(s probe.Status) string {
	switch s {
	case probe.StatusOK:
		return styleOK.Render(markOK)
	case probe.StatusWarning:
		return styleWarn.Render(markWarn)
	default:
		return styleFail.Render(markFail)
	}
}

func check(ok bool) string {
	if ok {
		return styleOK.Render(markOK)
	}
	return styleFail.Render(markFail)
}

// scoreStyle colours a score the way its label reads.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 75:
		return styleOK.Bold(true)
	case score >= 40:
		return styleWarn.Bold(true)
	default:
		return styleFail
	}
}
