package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/ipc"
	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/tui"
)

// commandTUI runs the terminal form and serves its control socket so
// record, stop, and status work from another shell.
func (r Runner) commandTUI(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath := ipc.RuntimeSocketPath()
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: %v (socket %s)\n", err, socketPath)
			return 1
		}
		return r.fail(logger, "acquire control socket failed", err)
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	svc := r.buildServices(ctx, cfg, logger, nil, true)
	defer svc.Close()

	state := session.New("tui", svc.deps)
	defer state.Close()

	g, gctx := errgroup.WithContext(ctx)
	formCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		return ipc.Serve(formCtx, listener, state)
	})
	g.Go(func() error {
		defer cancel()
		err := tui.Run(formCtx, tui.Config{
			Title:    cfg.Document.Title,
			Session:  state,
			Document: cfg.Document,
		})
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return r.fail(logger, "terminal form failed", err)
	}
	logger.Info("terminal form closed", "input_chars", len(state.Input()))
	return 0
}
