package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF5F5F", "#FFA500", "#626262")

// struct Palette is the stylesheet for the sync views, built with named [lipgloss.Style] fields
type Palette struct {
	title   lipgloss.Style
	added   lipgloss.Style
	failed  lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	spinner lipgloss.Style
}

func NewPalette(title, added, failed, warn, muted string) *Palette {
	return &Palette{
		title:   NewBold(title).MarginBottom(1),
		added:   NewBold(added),
		failed:  NewBold(failed),
		warn:    NewStyle(warn),
		muted:   NewEm(muted),
		spinner: NewStyle(title),
	}
}

// Counts renders "Added: n  Failed: n" with each count colored.
func (p *Palette) Counts(added, failed int) string {
	return fmt.Sprintf("%s  %s",
		p.added.Render(fmt.Sprintf("Added: %d", added)),
		p.failed.Render(fmt.Sprintf("Failed: %d", failed)),
	)
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
