package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-proof-must-flow/internal/cli"
)

// Styles contains all styling definitions for report formatting.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	Subtle   lipgloss.Style
	Normal   lipgloss.Style

	Box   lipgloss.Style
	Score lipgloss.Style
}

// NewStyles creates a new Styles instance with default styling.
func NewStyles() *Styles {
	return &Styles{
		Title:    cli.TitleStyle,
		Subtitle: cli.SubtitleStyle,
		Success:  cli.SuccessStyle,
		Warning:  cli.WarningStyle,
		Error:    cli.ErrorStyle,
		Info:     cli.InfoStyle,
		Subtle:   cli.SubtleStyle,
		Normal:   lipgloss.NewStyle(),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cli.SubtleColor).
			Padding(0, 1),
		Score: lipgloss.NewStyle().
			Bold(true).
			Foreground(cli.PrimaryColor),
	}
}

// ForStatus returns the style for a check status.
func (s *Styles) ForStatus(status Status) lipgloss.Style {
	switch status {
	case StatusPass:
		return s.Success
	case StatusPartial:
		return s.Warning
	default:
		return s.Error
	}
}

// RenderProgressBar renders progress in [0,1] as a bar of width cells.
func (s *Styles) RenderProgressBar(progress float64, width int) string {
	if width <= 0 {
		width = 30
	}

	filled := int(float64(width) * progress)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
