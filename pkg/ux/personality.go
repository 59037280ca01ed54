// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel controls how rich CLI output is.
type PersonalityLevel string

const (
	// PersonalityRich enables colors, icons, and live TUI views.
	PersonalityRich PersonalityLevel = "rich"

	// PersonalityPlain uses icons and plain formatting without color.
	PersonalityPlain PersonalityLevel = "plain"

	// PersonalityMachine emits tab-separated, prefix-tagged text for
	// scripts and cron jobs.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the active output configuration.
type Personality struct {
	// Level controls overall richness (rich, plain, machine).
	Level PersonalityLevel

	// ShowTips enables hint lines after command output.
	ShowTips bool
}

var (
	currentPersonality = Personality{
		Level:    PersonalityRich,
		ShowTips: true,
	}
	personalityMu sync.RWMutex
)

// GetPersonality returns the active personality settings.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality replaces the active personality settings.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// ParsePersonalityLevel converts a flag or env value to a level.
// Unrecognized values fall back to plain.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(s) {
	case "rich", "full", "r":
		return PersonalityRich
	case "plain", "minimal", "p":
		return PersonalityPlain
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityPlain
	}
}

// InitPersonality picks the level from MARKETPULSE_PERSONALITY, falling
// back to machine output when stdout is not a terminal.
func InitPersonality() {
	if envLevel := os.Getenv("MARKETPULSE_PERSONALITY"); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}
	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityRich)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// IsInteractive reports whether prompts and live TUI views are safe to
// show: requires a terminal and a non-machine level.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && isTerminal()
}
