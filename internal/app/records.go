package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rbright/consult/internal/cli"
	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/mcpserver"
	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/store"
)

const maxStdinBytes = 1 << 20

// commandSummarize runs one typed-input consultation without a form.
func (r Runner) commandSummarize(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	text, err := r.summaryInput(parsed.Args)
	if err != nil {
		return r.fail(logger, "read input failed", err)
	}

	svc := r.buildServices(ctx, cfg, logger, nil, false)
	defer svc.Close()

	state := session.New("cli", svc.deps)
	state.SetInputFromText(text)

	res, err := state.RequestSummary(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", session.UserMessage(err).Text)
		logger.Error("summarize failed", "error", err.Error())
		return 1
	}
	fmt.Fprintln(r.Stdout, strings.TrimSpace(res.Summary))

	dir := parsed.Out
	if dir == "" {
		dir = cfg.Document.OutputDir
	}
	path, err := document.Save(dir, res.Document)
	if err != nil {
		return r.fail(logger, "save document failed", err)
	}
	fmt.Fprintf(r.Stdout, "saved %s\n", path)

	if parsed.Share {
		id, err := state.Share(ctx)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %s\n", session.UserMessage(err).Text)
			logger.Error("share failed", "error", err.Error())
			return 1
		}
		fmt.Fprintf(r.Stdout, "shared as record %d\n", id)
	}
	return 0
}

// summaryInput joins the argument words, or reads stdin when there are
// none or the only argument is "-".
func (r Runner) summaryInput(args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if r.Stdin == nil {
		return "", errors.New("no input text given")
	}
	data, err := io.ReadAll(io.LimitReader(r.Stdin, maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func (r Runner) commandRecords(ctx context.Context, cfg config.Config, limit int) int {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	entries, err := st.List(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "no shared summaries")
		return 0
	}
	for _, e := range entries {
		fmt.Fprintf(r.Stdout, "%d | %s | %s | %d bytes\n", e.ID, e.Timestamp, e.Filename, e.Size)
	}
	return 0
}

func (r Runner) commandExport(ctx context.Context, cfg config.Config, id int64, out string) int {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	rec, err := st.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(r.Stderr, "error: record %d not found\n", id)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if out == "" {
		out = cfg.Document.OutputDir
	}
	path, err := document.Save(out, document.Document{Filename: rec.Filename, Data: rec.Data})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, path)
	return 0
}

// commandMCP serves the record store to an MCP client on stdio. Nothing
// else may write to stdout while it runs.
func (r Runner) commandMCP(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return r.fail(logger, "open record store failed", err)
	}
	defer st.Close()

	logger.Info("mcp server starting")
	if err := mcpserver.New(st, logger).Run(ctx); err != nil && ctx.Err() == nil {
		return r.fail(logger, "mcp server failed", err)
	}
	return 0
}
