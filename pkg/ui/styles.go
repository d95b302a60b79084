package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Spacing constants for consistent layout (in characters)
const (
	SpaceXS = 1
	SpaceSM = 2
)

// Adaptive colors for light and dark terminals.
var (
	ColorBg          = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorBgSubtle    = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	// Status badge backgrounds, subtle.
	ColorOKBg    = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
	ColorWarnBg  = lipgloss.AdaptiveColor{Light: "#FFE8CC", Dark: "#3D2A1A"}
	ColorErrorBg = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}
	ColorStaleBg = lipgloss.AdaptiveColor{Light: "#E2E3E5", Dark: "#2A2A3D"}
)

var (
	// TileStyle is the default style for unfocused tiles.
	TileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBgHighlight)

	// FocusedTileStyle marks the tile keyboard focus is on.
	FocusedTileStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	// ErrorTileStyle outlines tiles whose derived status is error.
	ErrorTileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDanger)

	TileTitleStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	TileBodyStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext)

	StatusLineStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ToastStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorBgHighlight).
			Padding(0, 1)
)

// statusColors returns foreground and background colors for a status.
func statusColors(s Status) (fg, bg lipgloss.AdaptiveColor) {
	switch s {
	case StatusOK:
		return ColorSuccess, ColorOKBg
	case StatusWarn:
		return ColorWarning, ColorWarnBg
	case StatusError:
		return ColorDanger, ColorErrorBg
	case StatusStale:
		return ColorMuted, ColorStaleBg
	case StatusLoading:
		return ColorInfo, ColorBgSubtle
	default:
		return ColorMuted, ColorBgSubtle
	}
}

// RenderStatusBadge returns a styled status badge.
func RenderStatusBadge(s Status) string {
	var label string
	switch s {
	case StatusOK:
		label = "OK"
	case StatusWarn:
		label = "WARN"
	case StatusError:
		label = "ERR"
	case StatusStale:
		label = "STALE"
	case StatusLoading:
		label = "LOAD"
	default:
		label = "????"
	}
	fg, bg := statusColors(s)
	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		Bold(true).
		Render(label)
}

// RenderCacheBadge marks content served from the fallback cache.
func RenderCacheBadge() string {
	return lipgloss.NewStyle().
		Foreground(ColorWarning).
		Background(ColorWarnBg).
		Render("CACHED")
}

// RenderDivider renders a horizontal divider line.
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}
