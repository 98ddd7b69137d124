package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/output"
	"github.com/rbright/consult/internal/session"
)

type tickMsg time.Time

type summaryMsg struct {
	result session.Result
	err    error
}

type shareMsg struct {
	id  int64
	err error
}

type savedMsg struct {
	path string
	err  error
}

type copiedMsg struct {
	err error
}

func tick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func summarizeCmd(st *session.State) tea.Cmd {
	return func() tea.Msg {
		res, err := st.RequestSummary(context.Background())
		return summaryMsg{result: res, err: err}
	}
}

func shareCmd(st *session.State) tea.Cmd {
	return func() tea.Msg {
		id, err := st.Share(context.Background())
		return shareMsg{id: id, err: err}
	}
}

// saveCmd writes the document to the output directory and hands it to the
// configured viewer, if any.
func saveCmd(cfg config.DocumentConfig, doc document.Document) tea.Cmd {
	return func() tea.Msg {
		path, err := document.Save(cfg.OutputDir, doc)
		if err != nil {
			return savedMsg{err: err}
		}
		if len(cfg.OpenCmd.Argv) > 0 {
			if err := output.Open(cfg.OpenCmd.Argv, path); err != nil {
				return savedMsg{path: path, err: fmt.Errorf("saved %s but could not open it: %w", path, err)}
			}
		}
		return savedMsg{path: path}
	}
}

func copyCmd(argv []string, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: output.Copy(context.Background(), argv, text)}
	}
}
