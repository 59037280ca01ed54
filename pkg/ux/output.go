// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the MarketPulse CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// MarketPulse palette - ticker-tape greens and reds on cool slate chrome.
var (
	// Accent palette
	ColorAccent     = lipgloss.Color("#2CD7C7") // bright cyan - titles, highlights
	ColorAccentDim  = lipgloss.Color("#1D9EA3") // dimmed cyan - secondary chrome
	ColorChartBlue  = lipgloss.Color("#4A90D9") // chart blue - informational
	ColorChartSteel = lipgloss.Color("#3A5A6E") // steel - borders

	// Directional palette (tape conventions)
	ColorGain = lipgloss.Color("#2ECC71") // green - gains, success
	ColorLoss = lipgloss.Color("#E74C3C") // red - losses, errors
	ColorHold = lipgloss.Color("#F4D03F") // amber - caution, warnings
	ColorFlat = lipgloss.Color("#5C6F7B") // grey - unchanged, muted text
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

	Box      lipgloss.Style
	AlertBox lipgloss.Style

	Gain lipgloss.Style
	Loss lipgloss.Style
	Flat lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAccentDim),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorFlat),
	Success:   lipgloss.NewStyle().Foreground(ColorGain),
	Warning:   lipgloss.NewStyle().Foreground(ColorHold),
	Error:     lipgloss.NewStyle().Foreground(ColorLoss),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorChartSteel).
		Padding(0, 1),
	AlertBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorHold).
		Padding(0, 1),

	Gain: lipgloss.NewStyle().Foreground(ColorGain),
	Loss: lipgloss.NewStyle().Foreground(ColorLoss),
	Flat: lipgloss.NewStyle().Foreground(ColorFlat),
}

// Icon is a themed status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconUp      Icon = "▲"
	IconDown    Icon = "▼"
	IconFlat    Icon = "─"
)

// Render returns the icon with its semantic color applied.
func (i Icon) Render() string {
	switch i {
	case IconSuccess, IconUp:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError, IconDown:
		return Styles.Error.Render(string(i))
	case IconPending, IconFlat:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// DirectionIcon maps a signed percentage change to a tape arrow.
func DirectionIcon(changePct float64) Icon {
	switch {
	case changePct > 0:
		return IconUp
	case changePct < 0:
		return IconDown
	default:
		return IconFlat
	}
}

// Print helpers. All of them degrade to plain parseable text under the
// machine personality so that piped output stays script-friendly.

// Title prints a styled section title.
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success line.
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityPlain:
		fmt.Printf("%s %s\n", IconSuccess, text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning line.
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityPlain:
		fmt.Printf("%s %s\n", IconWarning, text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error line.
func Error(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityPlain:
		fmt.Printf("%s %s\n", IconError, text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational line with a gutter mark.
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Suppressed entirely under machine output.
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// FileStatus prints an artifact or ticker with its status and an
// optional detail suffix.
func FileStatus(name string, status Icon, detail string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Printf("%s\t%s\t%s\n", status, name, detail)
	case PersonalityPlain:
		fmt.Printf("%s %s\n", status, name)
	default:
		if detail != "" {
			fmt.Printf("%s %s %s\n", status.Render(), name, Styles.Muted.Render("("+detail+")"))
		} else {
			fmt.Printf("%s %s\n", status.Render(), name)
		}
	}
}

// Summary prints an accepted/rejected tally after a batch submission.
func Summary(accepted, rejected, total int) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("SUMMARY: accepted=%d rejected=%d total=%d\n", accepted, rejected, total)
		return
	}
	fmt.Printf("\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", accepted)), Styles.Muted.Render("accepted"),
		Styles.Warning.Render(fmt.Sprintf("%d", rejected)), Styles.Muted.Render("rejected"),
		Styles.Bold.Render(fmt.Sprintf("%d", total)), Styles.Muted.Render("total"),
	)
}

// ChangePct formats a percentage move with tape coloring and a
// directional arrow, e.g. "▲ +1.25%".
func ChangePct(pct float64) string {
	icon := DirectionIcon(pct)
	text := fmt.Sprintf("%+.2f%%", pct)
	if GetPersonality().Level == PersonalityMachine {
		return text
	}
	switch icon {
	case IconUp:
		return Styles.Gain.Render(string(icon) + " " + text)
	case IconDown:
		return Styles.Loss.Render(string(icon) + " " + text)
	default:
		return Styles.Flat.Render(string(icon) + " " + text)
	}
}
