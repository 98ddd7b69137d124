package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/rbright/consult/internal/session"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	noticeStyles = map[session.Level]lipgloss.Style{
		session.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		session.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		session.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		session.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func (m *model) View() string {
	var b strings.Builder
	wrap := max(20, m.width-4)

	b.WriteString(titleStyle.Render(m.cfg.Title))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Input: "))
	b.WriteString(modeLabel(session.ModeVoice, m.view.Mode))
	b.WriteString("  ")
	b.WriteString(modeLabel(session.ModeText, m.view.Mode))
	b.WriteString("\n")

	switch {
	case m.view.Recording:
		b.WriteString(fmt.Sprintf("%s Recording %ds (x to stop)\n", m.spinner.View(), m.view.ElapsedSecs))
	case m.view.Transcribing:
		b.WriteString(m.spinner.View() + " Transcribing...\n")
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Symptoms"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if line := m.statusLine(); line != "" {
		b.WriteString(wordwrap.String(line, wrap))
		b.WriteString("\n\n")
	}

	if m.view.Summary != "" {
		b.WriteString(summaryStyle.Render(wordwrap.String(m.view.Summary, wrap-4)))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Document: " + m.view.Filename))
		b.WriteString("\n")
		if m.saved != "" {
			b.WriteString(mutedStyle.Render("Saved to " + m.saved))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render(m.helpLine()))
	return b.String()
}

func modeLabel(mode, current session.Mode) string {
	if mode == current {
		return activeStyle.Render("(*) " + string(mode))
	}
	return mutedStyle.Render("( ) " + string(mode))
}

func (m *model) statusLine() string {
	switch {
	case m.err != "":
		return noticeStyles[session.LevelError].Render(m.err)
	case m.busy == summarizing:
		return m.spinner.View() + " Generating summary..."
	case m.busy == sharing:
		return m.spinner.View() + " Sharing with the consultant..."
	case m.info != "":
		return noticeStyles[session.LevelSuccess].Render(m.info)
	case m.view.Notice.Text != "":
		style, ok := noticeStyles[m.view.Notice.Level]
		if !ok {
			return m.view.Notice.Text
		}
		return style.Render(m.view.Notice.Text)
	}
	return ""
}

func (m *model) helpLine() string {
	if m.input.Focused() {
		return "esc done editing • ctrl+g generate summary • ctrl+c quit"
	}
	parts := []string{"tab switch input", "i edit text", "r record", "x stop", "g generate summary"}
	if m.view.Filename != "" {
		parts = append(parts, "d download", "s share")
		if len(m.cfg.Document.CopyCmd.Argv) > 0 {
			parts = append(parts, "c copy")
		}
	}
	parts = append(parts, "q quit")
	return strings.Join(parts, " • ")
}
