// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// watchPollInterval is how often the watch TUI asks the service for
// the pipeline status.
const watchPollInterval = 2 * time.Second

// runAck mirrors the POST /v1/pipeline/run payload.
type runAck struct {
	Status            string `json:"status"`
	RunID             string `json:"run_id"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	Detail            string `json:"detail"`
}

func runPipelineRun(cmd *cobra.Command, args []string) {
	baseURL := getServiceBaseURL()
	payload := map[string]interface{}{"fast": fastRun}

	var ack runAck
	if err := postJSON(fmt.Sprintf("%s/v1/pipeline/run", baseURL), payload, &ack); err != nil {
		log.Fatalf("Failed to trigger the pipeline: %v", err)
	}

	switch ack.Status {
	case "started":
		ux.Success(fmt.Sprintf("Pipeline run started (id %s)", ack.RunID))
		ux.Muted("Follow it with: marketpulse pipeline watch")
	case "busy":
		ux.Warning("A run is already in progress")
	case "cooldown":
		ux.Warning(fmt.Sprintf("Pipeline finished recently, retry in %ds", ack.RetryAfterSeconds))
	default:
		ux.Info("Service reported state: " + ack.Status)
	}
}

func runPipelineWatch(cmd *cobra.Command, args []string) {
	// Non-interactive callers get a single status snapshot instead of
	// a TUI they cannot render.
	if !ux.IsInteractive() {
		runStatus(cmd, args)
		return
	}

	m := newWatchModel(getServiceBaseURL())
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		log.Fatalf("Watch failed: %v", err)
	}

	result, ok := finalModel.(watchModel)
	if !ok {
		log.Fatalf("unexpected model type from bubbletea: %T", finalModel)
	}
	if result.err != nil {
		log.Fatalf("Failed to fetch pipeline status: %v", result.err)
	}
	if result.gotRec {
		renderStatusRecord(result.rec)
	}
}

// =============================================================================
// Watch TUI
// =============================================================================

type watchStatusMsg statusRecord

type watchErrMsg struct{ err error }

type watchTickMsg time.Time

// watchModel polls the pipeline status endpoint and renders a spinner
// plus a stage progress bar until the run reaches a terminal state.
type watchModel struct {
	baseURL string
	spin    spinner.Model
	bar     progress.Model
	rec     statusRecord
	gotRec  bool
	done    bool
	err     error
}

func newWatchModel(baseURL string) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ux.ColorAccent)

	return watchModel{
		baseURL: baseURL,
		spin:    s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// pollPipelineStatus fetches the status once and reports it as a message.
func pollPipelineStatus(baseURL string) tea.Cmd {
	return func() tea.Msg {
		var rec statusRecord
		if err := getJSON(fmt.Sprintf("%s/v1/pipeline/status", baseURL), &rec); err != nil {
			return watchErrMsg{err}
		}
		return watchStatusMsg(rec)
	}
}

func scheduleNextPoll() tea.Cmd {
	return tea.Tick(watchPollInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// Init starts the spinner and issues the first poll.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, pollPipelineStatus(m.baseURL))
}

// Update handles poll results, poll scheduling, and key events.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case watchStatusMsg:
		m.rec = statusRecord(msg)
		m.gotRec = true
		if m.rec.State == "completed" || m.rec.State == "failed" {
			m.done = true
			return m, tea.Quit
		}
		return m, scheduleNextPoll()

	case watchTickMsg:
		return m, pollPipelineStatus(m.baseURL)

	case watchErrMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the live status. The final record is printed by the
// command after the program exits, so a finished model renders nothing.
func (m watchModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	switch {
	case !m.gotRec:
		b.WriteString(fmt.Sprintf("%s contacting service...\n", m.spin.View()))
	case m.rec.State == "running":
		b.WriteString(fmt.Sprintf("%s stage %s %s\n",
			m.spin.View(), ux.Styles.Highlight.Render(m.rec.Stage), m.rec.progress()))
		if m.rec.Total > 0 {
			b.WriteString(m.bar.ViewAs(float64(m.rec.Completed)/float64(m.rec.Total)) + "\n")
		}
	default:
		b.WriteString(fmt.Sprintf("%s waiting for a run (state: %s)\n", m.spin.View(), m.rec.State))
	}
	b.WriteString(ux.Styles.Muted.Render("press q to quit") + "\n")
	return b.String()
}
