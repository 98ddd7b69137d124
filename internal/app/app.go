package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rbright/consult/internal/cli"
	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/doctor"
	"github.com/rbright/consult/internal/logging"
	"github.com/rbright/consult/internal/summary"
	"github.com/rbright/consult/internal/version"
)

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Summarizer replaces the configured LLM backend when set.
	Summarizer summary.Summarizer
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(version.Name))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(version.Name))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if parsed.Command != cli.CommandMCP {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	envFiles, err := config.LoadEnv(cfgLoaded.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load env failed", "error", err.Error())
		return 1
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"env_files", envFiles,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandRecord:
		return r.forwardOrFail(ctx, "record")
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandTUI:
		return r.commandTUI(ctx, cfg, logger)
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, parsed.Addr, logger)
	case cli.CommandSummarize:
		return r.commandSummarize(ctx, cfg, parsed, logger)
	case cli.CommandRecords:
		return r.commandRecords(ctx, cfg, parsed.Limit)
	case cli.CommandExport:
		return r.commandExport(ctx, cfg, parsed.Record, parsed.Out)
	case cli.CommandMCP:
		return r.commandMCP(ctx, cfg, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) fail(logger *slog.Logger, msg string, err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	if logger != nil {
		logger.Error(msg, "error", err.Error())
	}
	return 1
}
