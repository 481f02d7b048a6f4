// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output for the overlay CLI: lipgloss styles
// for interactive terminals and plain JSON when output is piped.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorAccent  = lipgloss.Color("#2CD7C7")
	ColorPrimary = lipgloss.Color("#20B9B4")
	ColorBorder  = lipgloss.Color("#16858E")
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
}

// Icon is a status marker.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconAdded   Icon = "+"
	IconRemoved Icon = "-"
	IconChanged Icon = "~"
	IconArrow   Icon = "→"
)

// Render returns the icon with its style.
func (i Icon) Render() string {
	switch i {
	case IconSuccess, IconAdded:
		return Styles.Success.Render(string(i))
	case IconWarning, IconChanged:
		return Styles.Warning.Render(string(i))
	case IconError, IconRemoved:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// Format selects how a Printer writes.
type Format int

const (
	// FormatText is styled, human-readable output.
	FormatText Format = iota

	// FormatJSON is one JSON document per call.
	FormatJSON
)

// DetectFormat returns FormatText for a terminal and FormatJSON otherwise.
func DetectFormat(f *os.File) Format {
	if f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// Printer writes command output in one format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Stdout returns a printer for os.Stdout; forceJSON overrides detection.
func Stdout(forceJSON bool) *Printer {
	format := DetectFormat(os.Stdout)
	if forceJSON {
		format = FormatJSON
	}
	return NewPrinter(os.Stdout, format)
}

// IsJSON reports whether the printer writes JSON.
func (p *Printer) IsJSON() bool {
	return p.format == FormatJSON
}

// Emit writes v as JSON in JSON mode, or calls text otherwise.
func (p *Printer) Emit(v any, text func(p *Printer)) error {
	if p.IsJSON() {
		return p.JSON(v)
	}
	text(p)
	return nil
}

// JSON writes v as a single line of JSON.
func (p *Printer) JSON(v any) error {
	return json.NewEncoder(p.w).Encode(v)
}

// Title writes a styled heading.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Line writes a formatted line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Item writes an icon followed by text.
func (p *Printer) Item(icon Icon, text string) {
	fmt.Fprintf(p.w, "  %s %s\n", icon.Render(), text)
}

// KeyValue writes an aligned key and value.
func (p *Printer) KeyValue(key, value string) {
	fmt.Fprintf(p.w, "  %s %s\n", Styles.Muted.Render(fmt.Sprintf("%-12s", key+":")), value)
}

// Muted writes de-emphasized text.
func (p *Printer) Muted(text string) {
	fmt.Fprintln(p.w, Styles.Muted.Render(text))
}

// Box writes content in a bordered box under a title.
func (p *Printer) Box(title string, lines []string) {
	content := Styles.Bold.Render(title)
	if len(lines) > 0 {
		content += "\n" + strings.Join(lines, "\n")
	}
	fmt.Fprintln(p.w, Styles.Box.Render(content))
}
