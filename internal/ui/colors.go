package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tastemixer/internal/models"
)

var styles = NewPalette("#1DB954", "#1ED760", "#E91429", "#FFA42B", "#727272")

// Tier colors for graph nodes.
var tierStyles = map[string]lipgloss.Style{
	models.TierMainstream:  NewBold("#1ED760"),
	models.TierPopular:     NewBold("#509BF5"),
	models.TierUnderground: NewBold("#AF2896"),
}

var edgeStyle = NewStyle("#404040")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func tierStyle(tier string) lipgloss.Style {
	if s, ok := tierStyles[tier]; ok {
		return s
	}
	return styles.help
}
