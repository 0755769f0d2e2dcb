package watch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/executor/internal/events"
)

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderActive(),
		m.renderModules(),
		m.renderEventStream(),
	}
	if m.lastError != "" {
		sections = append(sections, m.theme.StatusFailed.Render(" "+m.lastError))
	}
	sections = append(sections, m.theme.Dim.Render(" q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	innerWidth := m.width - 4

	status := m.theme.StatusOK.Render("HEALTHY")
	if !m.health.Connected {
		status = m.theme.StatusFailed.Render("CONNECTING")
	} else if m.health.Status != "ok" && m.health.Status != "" {
		status = m.theme.StatusFailed.Render("DEGRADED")
	}

	lastEvent := "never"
	if !m.spinner.LastEvent().IsZero() {
		lastEvent = fmt.Sprintf("%s ago", time.Since(m.spinner.LastEvent()).Round(time.Second))
	}

	title := fmt.Sprintf(" EXECUTOR WATCH %s", m.theme.Highlight.Render(m.ticker.Current()))
	clock := m.theme.Dim.Render(time.Now().Format("15:04:05"))
	pad := max(1, innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4)

	content := lipgloss.JoinVertical(lipgloss.Left,
		title+strings.Repeat(" ", pad)+clock+" ",
		fmt.Sprintf(" %s  ⏱ %s  Modules: %d  Commands: %d",
			status,
			formatDuration(time.Duration(m.health.UptimeSeconds)*time.Second),
			m.health.ModulesLoaded,
			m.health.CommandsExecuted,
		),
		fmt.Sprintf(" Last event: %s %s", lastEvent, m.spinner.Render(m.theme)),
	)
	return m.theme.Border.Width(innerWidth).Render(content)
}

func (m Model) renderActive() string {
	var line string
	if m.active == nil {
		line = m.theme.Dim.Render(" idle")
	} else {
		line = fmt.Sprintf(" %s %s %s  %s",
			m.theme.StatusRunning.Render("▶"),
			m.active.Module,
			m.theme.Dim.Render(m.active.Mode),
			filepath.Base(m.active.Source),
		)
	}
	content := lipgloss.JoinVertical(lipgloss.Left, m.theme.Header.Render(" ACTIVE"), line)
	return m.theme.Border.Width(m.width - 4).Render(content)
}

func (m Model) renderModules() string {
	lines := []string{m.theme.Header.Render(" MODULES")}
	states := m.moduleStates()
	if len(states) == 0 {
		lines = append(lines, m.theme.Dim.Render(" no forwards yet"))
	}
	for _, s := range states {
		line := fmt.Sprintf(" %-20s %s %s  %s",
			s.ID,
			m.theme.StatusOK.Render(fmt.Sprintf("✓%d", s.Succeeded)),
			m.theme.StatusFailed.Render(fmt.Sprintf("✗%d", s.Failed)),
			m.theme.Dim.Render(s.LastRun.Local().Format("15:04:05")),
		)
		if s.LastError != "" {
			line += "  " + m.theme.StatusFailed.Render(firstLine(s.LastError))
		}
		lines = append(lines, line)
	}
	return m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderEventStream() string {
	// Header, three bordered panels above and the footer take roughly 16 rows.
	limit := max(3, m.height-16-len(m.modules))
	lines := []string{m.theme.Header.Render(" EVENTS")}
	for i, e := range m.eventLog {
		if i >= limit {
			break
		}
		lines = append(lines, formatEvent(e, m.theme))
	}
	return m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatEvent(e events.Event, theme Theme) string {
	style := theme.Dim
	switch e.Type {
	case events.ForwardCompleted:
		style = theme.StatusOK
	case events.ForwardFailed:
		style = theme.StatusFailed
	case events.ForwardStarted:
		style = theme.StatusRunning
	}

	desc := ""
	var f events.Forward
	if json.Unmarshal(e.Data, &f) == nil && f.Module != "" {
		desc = fmt.Sprintf("%s %s", f.Module, filepath.Base(f.Source))
		if f.Mode == "batch" && e.Type != events.ForwardStarted {
			desc += fmt.Sprintf(" %d/%d", f.Succeeded, f.Attempted)
		}
	}
	return fmt.Sprintf(" %s %s %s",
		theme.Dim.Render(e.At.Local().Format("15:04:05")),
		style.Render(fmt.Sprintf("%-18s", e.Type)),
		desc,
	)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}

func firstLine(s string) string {
	return strings.SplitN(s, "\n", 2)[0]
}
