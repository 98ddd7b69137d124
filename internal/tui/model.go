// Package tui is the terminal rendition of the consultation form.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/session"
)

// Config wires runtime options into the form.
type Config struct {
	Title    string
	Session  *session.State
	Document config.DocumentConfig
	// Poll is the refresh interval while recording; one second when zero.
	Poll time.Duration
}

// Run mounts the form and blocks until the user quits or ctx ends.
func Run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(cfg), opts...).Run()
	return err
}

type busyKind int

const (
	idle busyKind = iota
	summarizing
	sharing
)

type model struct {
	cfg   Config
	state *session.State

	input   textarea.Model
	spinner spinner.Model

	view  session.View
	busy  busyKind
	saved string
	info  string
	err   string

	width  int
	height int
}

func New(cfg Config) tea.Model {
	return newModel(cfg)
}

func newModel(cfg Config) *model {
	if cfg.Title == "" {
		cfg.Title = "Patient Consultation"
	}
	if cfg.Poll <= 0 {
		cfg.Poll = time.Second
	}

	input := textarea.New()
	input.Placeholder = "Describe what you are experiencing, for how long, and how severe it is."
	input.ShowLineNumbers = false
	input.CharLimit = 8000
	input.SetWidth(76)
	input.SetHeight(6)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &model{
		cfg:     cfg,
		state:   cfg.Session,
		input:   input,
		spinner: spin,
		width:   80,
	}
	m.refresh()
	m.input.SetValue(m.view.Input)
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, tick(m.cfg.Poll))
}

func (m *model) refresh() {
	m.view = m.state.Snapshot()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(max(20, msg.Width-4))
		return m, nil

	case tickMsg:
		before := m.view.Input
		m.refresh()
		if m.view.Input != before && !m.input.Focused() {
			m.input.SetValue(m.view.Input)
		}
		return m, tick(m.cfg.Poll)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case summaryMsg:
		m.busy = idle
		m.err, m.info = "", ""
		if msg.err != nil {
			m.err = session.UserMessage(msg.err).Text
		}
		m.refresh()
		return m, nil

	case shareMsg:
		m.busy = idle
		m.err, m.info = "", ""
		if msg.err != nil {
			m.err = session.UserMessage(msg.err).Text
		}
		m.refresh()
		return m, nil

	case savedMsg:
		m.err, m.info = "", ""
		if msg.path != "" {
			m.saved = msg.path
		}
		if msg.err != nil {
			m.err = msg.err.Error()
		}
		return m, nil

	case copiedMsg:
		m.err, m.info = "", ""
		if msg.err != nil {
			m.err = msg.err.Error()
		} else {
			m.info = "Summary copied to clipboard."
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.String() {
		case "esc":
			m.commitText()
			return m, nil
		case "ctrl+g":
			m.commitText()
			return m, m.summarize()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		return m, m.toggleMode()
	case "i", "e":
		m.state.SetMode(session.ModeText)
		m.refresh()
		return m, m.input.Focus()
	case "r":
		return m, m.startRecording()
	case "x":
		m.state.StopRecording()
		m.refresh()
		return m, nil
	case "g", "enter":
		return m, m.summarize()
	case "d":
		return m, m.download()
	case "s":
		return m, m.share()
	case "c":
		return m, m.copySummary()
	}
	return m, nil
}

// commitText applies the edited text to the session and leaves edit mode.
func (m *model) commitText() {
	m.input.Blur()
	if m.input.Value() != m.view.Input {
		m.state.SetInputFromText(m.input.Value())
	}
	m.refresh()
}

func (m *model) toggleMode() tea.Cmd {
	next := session.ModeText
	if m.view.Mode == session.ModeText {
		next = session.ModeVoice
	}
	m.state.SetMode(next)
	m.refresh()
	if next == session.ModeText {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m *model) startRecording() tea.Cmd {
	m.err = ""
	m.state.SetMode(session.ModeVoice)
	if err := m.state.StartRecording(context.Background()); err != nil {
		m.err = session.UserMessage(err).Text
	}
	m.refresh()
	return nil
}

func (m *model) summarize() tea.Cmd {
	if m.busy != idle {
		return nil
	}
	m.busy = summarizing
	m.err = ""
	return summarizeCmd(m.state)
}

func (m *model) share() tea.Cmd {
	if m.busy != idle {
		return nil
	}
	m.busy = sharing
	m.err = ""
	return shareCmd(m.state)
}

func (m *model) download() tea.Cmd {
	doc, ok := m.state.Document()
	if !ok {
		m.err = session.UserMessage(session.ErrNoDocument).Text
		return nil
	}
	return saveCmd(m.cfg.Document, doc)
}

func (m *model) copySummary() tea.Cmd {
	if m.view.Summary == "" {
		m.err = session.UserMessage(session.ErrNoDocument).Text
		return nil
	}
	return copyCmd(m.cfg.Document.CopyCmd.Argv, m.view.Summary)
}
