package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/rbright/consult/internal/audio"
	"github.com/rbright/consult/internal/capture"
	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/cue"
	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/logging"
	"github.com/rbright/consult/internal/observe"
	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/store"
	"github.com/rbright/consult/internal/summary"
	"github.com/rbright/consult/internal/transcribe"
)

// services are the collaborators built for one command run.
type services struct {
	deps  session.Deps
	store store.Store
}

func (s services) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// buildServices wires session dependencies from config. Backends that fail
// to build are reported and left unset; the session turns their absence into
// inline errors instead of refusing to start.
func (r Runner) buildServices(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observe.Metrics, voice bool) services {
	svc := services{deps: session.Deps{
		Capture:  captureOptions(cfg, logger),
		Renderer: document.PDF{Title: cfg.Document.Title},
		Metrics:  metrics,
		Logger:   logger,
	}}

	if voice {
		svc.deps.Open = microphone(cfg.Audio, logger)
		if cfg.Audio.Cues {
			svc.deps.Cues = cue.NewPulse(logger)
		}
		if t, err := transcribe.New(cfg.STT, logger); err != nil {
			r.warn(logger, "speech backend unavailable", err)
		} else {
			svc.deps.Transcriber = t
		}
	}

	if r.Summarizer != nil {
		svc.deps.Summarizer = r.Summarizer
	} else if s, err := summary.New(cfg.LLM, logger); err != nil {
		r.warn(logger, "summarizer unavailable", err)
	} else {
		svc.deps.Summarizer = s
	}

	if cfg.Store.Enable {
		if st, err := store.Open(ctx, cfg.Store); err != nil {
			r.warn(logger, "record store unavailable", err)
		} else {
			svc.store = st
			svc.deps.Store = st
		}
	}
	return svc
}

func (r Runner) warn(logger *slog.Logger, msg string, err error) {
	fmt.Fprintf(r.Stderr, "warning: %s: %v\n", msg, err)
	logger.Warn(msg, "error", err.Error())
}

func captureOptions(cfg config.Config, logger *slog.Logger) capture.Options {
	opts := capture.Options{
		MaxDuration:  cfg.Capture.MaxDuration(),
		Calibration:  cfg.Capture.Calibration(),
		Silence:      cfg.Capture.Silence(),
		Multiplier:   cfg.Capture.Multiplier,
		MinThreshold: cfg.Capture.MinThreshold,
	}
	if cfg.Debug.EnableAudioDump {
		if dir, err := logging.StateDir(); err == nil {
			opts.DumpDir = filepath.Join(dir, "audio")
		} else {
			logger.Warn("audio dump disabled", "error", err.Error())
		}
	}
	return opts
}

// microphone opens the configured Pulse source for each capture.
func microphone(cfg config.AudioConfig, logger *slog.Logger) capture.OpenFunc {
	return func(ctx context.Context) (capture.Recorder, string, error) {
		rec, selection, err := audio.Open(ctx, cfg.Input, cfg.Fallback)
		if err != nil {
			return nil, "", err
		}
		if selection.Warning != "" {
			logger.Warn("audio device fallback", "warning", selection.Warning)
		}
		return rec, selection.Device.Describe(), nil
	}
}

var errStoreDisabled = errors.New("record store is disabled (store.enable is false)")

// openStore opens the record store for read-side commands.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if !cfg.Enable {
		return nil, errStoreDisabled
	}
	return store.Open(ctx, cfg)
}
