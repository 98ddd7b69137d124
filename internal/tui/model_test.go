package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/store"
	"github.com/rbright/consult/internal/summary"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type harness struct {
	state   *session.State
	shared  []store.Record
	summErr error
}

func newHarness(t *testing.T) (*harness, *model) {
	t.Helper()
	h := &harness{}
	h.state = session.New("tui", session.Deps{
		Summarizer: summary.SummarizerFunc(func(_ context.Context, input string) (string, error) {
			if h.summErr != nil {
				return "", h.summErr
			}
			return "Chief complaint:\n" + input, nil
		}),
		Renderer: document.RenderFunc(func(lines []string) ([]byte, error) {
			return []byte(strings.Join(lines, "\n")), nil
		}),
		Store: session.AppendFunc(func(_ context.Context, rec store.Record) (int64, error) {
			h.shared = append(h.shared, rec)
			return int64(len(h.shared)), nil
		}),
		Now: func() time.Time { return fixedNow },
	})
	m := newModel(Config{
		Session:  h.state,
		Document: config.DocumentConfig{OutputDir: t.TempDir()},
	})
	return h, m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+g":
		return tea.KeyMsg{Type: tea.KeyCtrlG}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *model, s string) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(key(s))
	return cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func TestNewModelStartsInVoiceMode(t *testing.T) {
	_, m := newHarness(t)

	require.Equal(t, session.ModeVoice, m.view.Mode)
	require.False(t, m.input.Focused())
	require.Contains(t, m.View(), "(*) voice")
	require.Contains(t, m.View(), "Patient Consultation")
}

func TestTabTogglesModeAndFocus(t *testing.T) {
	_, m := newHarness(t)

	press(t, m, "tab")
	require.Equal(t, session.ModeText, m.view.Mode)
	require.True(t, m.input.Focused())

	press(t, m, "esc")
	require.False(t, m.input.Focused())

	press(t, m, "tab")
	require.Equal(t, session.ModeVoice, m.view.Mode)
	require.False(t, m.input.Focused())
}

func TestTypedInputSummarizesOnCtrlG(t *testing.T) {
	h, m := newHarness(t)

	press(t, m, "i")
	require.True(t, m.input.Focused())
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("headache for three days")})

	cmd := press(t, m, "ctrl+g")
	require.Equal(t, summarizing, m.busy)
	require.Equal(t, "headache for three days", h.state.Input())
	require.Contains(t, m.View(), "Generating summary")

	run(t, m, cmd)
	require.Equal(t, idle, m.busy)
	require.Empty(t, m.err)
	require.Equal(t, "patient_summary_20240309140507.pdf", m.view.Filename)
	require.Contains(t, m.View(), "Chief complaint:")
	require.Contains(t, m.View(), "d download")
}

func TestSummarizeRejectsBlankInput(t *testing.T) {
	_, m := newHarness(t)

	run(t, m, press(t, m, "g"))

	require.Equal(t, "Please provide input via voice or text.", m.err)
	require.Empty(t, m.view.Filename)
}

func TestSummarizeReportsServiceFailure(t *testing.T) {
	h, m := newHarness(t)
	h.summErr = errors.New("quota exceeded")
	h.state.SetInputFromText("cough")

	run(t, m, press(t, m, "enter"))

	require.Equal(t, "Summary service error: quota exceeded", m.err)
}

func TestSummarizeIgnoredWhileBusy(t *testing.T) {
	h, m := newHarness(t)
	h.state.SetInputFromText("cough")

	first := press(t, m, "g")
	require.NotNil(t, first)
	require.Nil(t, press(t, m, "g"))
	require.Nil(t, press(t, m, "s"))
}

func TestShareAppendsOneRecord(t *testing.T) {
	h, m := newHarness(t)
	h.state.SetInputFromText("cough")
	run(t, m, press(t, m, "g"))

	run(t, m, press(t, m, "s"))

	require.Len(t, h.shared, 1)
	require.Equal(t, "patient_summary_20240309140507.pdf", h.shared[0].Filename)
	require.Equal(t, "2024-03-09 14:05:07", h.shared[0].Timestamp)
	require.Equal(t, int64(1), m.view.SharedID)
	require.Contains(t, m.View(), "Summary shared with the consultant.")
}

func TestShareWithoutSummaryWarns(t *testing.T) {
	h, m := newHarness(t)

	run(t, m, press(t, m, "s"))

	require.Empty(t, h.shared)
	require.Equal(t, "Generate a summary first.", m.err)
}

func TestDownloadWritesDocument(t *testing.T) {
	h, m := newHarness(t)
	h.state.SetInputFromText("cough")
	run(t, m, press(t, m, "g"))

	run(t, m, press(t, m, "d"))

	require.Empty(t, m.err)
	require.Equal(t, filepath.Join(m.cfg.Document.OutputDir, "patient_summary_20240309140507.pdf"), m.saved)
	data, err := os.ReadFile(m.saved)
	require.NoError(t, err)
	require.Contains(t, string(data), "cough")
	require.Contains(t, m.View(), "Saved to")
}

func TestDownloadWithoutSummaryWarns(t *testing.T) {
	_, m := newHarness(t)

	require.Nil(t, press(t, m, "d"))
	require.Equal(t, "Generate a summary first.", m.err)
}

func TestRecordWithoutMicrophoneShowsError(t *testing.T) {
	_, m := newHarness(t)

	press(t, m, "r")

	require.Contains(t, m.err, "audio input is not configured")
	require.False(t, m.view.Recording)
}

func TestTickPicksUpExternalInput(t *testing.T) {
	h, m := newHarness(t)
	h.state.SetInputFromVoice("transcribed cough")

	_, cmd := m.Update(tickMsg(fixedNow))

	require.NotNil(t, cmd)
	require.Equal(t, "transcribed cough", m.input.Value())
}

func TestQuitKeys(t *testing.T) {
	_, m := newHarness(t)

	cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())

	press(t, m, "i")
	press(t, m, "q")
	require.Equal(t, "q", m.input.Value())

	cmd = press(t, m, "ctrl+c")
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWindowResizeWrapsSummary(t *testing.T) {
	h, m := newHarness(t)
	h.state.SetInputFromText(strings.Repeat("word ", 40))
	run(t, m, press(t, m, "g"))

	m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})

	require.Equal(t, 40, m.width)
	for _, line := range strings.Split(m.View(), "\n") {
		if strings.Contains(line, "word") {
			require.LessOrEqual(t, lipgloss.Width(line), 40)
		}
	}
}

func TestCopySendsSummaryToClipboardCommand(t *testing.T) {
	h, m := newHarness(t)
	dir := t.TempDir()
	clip := filepath.Join(dir, "clipboard.txt")
	script := filepath.Join(dir, "copy.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env bash\ncat > \"$1\"\n"), 0o755))
	m.cfg.Document.CopyCmd = config.CommandConfig{Argv: []string{script, clip}}

	h.state.SetInputFromText("cough")
	run(t, m, press(t, m, "g"))
	require.Contains(t, m.View(), "c copy")

	run(t, m, press(t, m, "c"))

	require.Empty(t, m.err)
	require.Contains(t, m.View(), "Summary copied to clipboard.")
	data, err := os.ReadFile(clip)
	require.NoError(t, err)
	require.Equal(t, "Chief complaint:\ncough", string(data))
}

func TestCopyWithoutCommandShowsHint(t *testing.T) {
	h, m := newHarness(t)
	h.state.SetInputFromText("cough")
	run(t, m, press(t, m, "g"))

	run(t, m, press(t, m, "c"))

	require.Contains(t, m.err, "document.copy_cmd")
}
