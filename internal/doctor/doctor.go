// Package doctor runs runtime readiness diagnostics for config, audio, the
// speech and summary backends, and the record store.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rbright/consult/internal/audio"
	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/health"
	"github.com/rbright/consult/internal/store"
	"github.com/rbright/consult/internal/transcribe"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, config, and backend checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: configMessage(loaded),
	}}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkOutputDir(cfg.Document.OutputDir))
	if len(cfg.Document.OpenCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Document.OpenCmd.Argv, "document.open_cmd"))
	}
	if len(cfg.Document.CopyCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Document.CopyCmd.Argv, "document.copy_cmd"))
	}

	checkers := []health.Checker{SpeechCheck(cfg.STT), LLMCheck(cfg.LLM)}
	if cfg.Store.Enable {
		checkers = append(checkers, health.Checker{Name: "store", Check: func(ctx context.Context) error {
			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Ping(ctx)
		}})
	}
	for _, s := range health.Evaluate(ctx, checkers) {
		checks = append(checks, fromStatus(s))
	}

	return Report{Checks: checks}
}

func configMessage(loaded config.Loaded) string {
	if !loaded.Exists {
		return fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	return fmt.Sprintf("loaded %q", loaded.Path)
}

func fromStatus(s health.Status) Check {
	if s.Err != nil {
		return Check{Name: s.Name, Pass: false, Message: s.Err.Error()}
	}
	return Check{Name: s.Name, Pass: true, Message: "ready"}
}

// SpeechCheck probes the configured speech backend: a whisper server must
// answer HTTP, a deepgram key must be present in the environment.
func SpeechCheck(cfg config.STTConfig) health.Checker {
	return health.Checker{Name: "stt." + strings.ToLower(cfg.Backend), Check: func(ctx context.Context) error {
		switch strings.ToLower(cfg.Backend) {
		case "deepgram":
			if strings.TrimSpace(os.Getenv(cfg.DeepgramAPIKeyEnv)) == "" {
				return fmt.Errorf("%s is not set", cfg.DeepgramAPIKeyEnv)
			}
			return nil
		default:
			w, err := transcribe.NewWhisper(cfg.WhisperURL)
			if err != nil {
				return err
			}
			return w.Ping(ctx)
		}
	}}
}

// LLMCheck verifies the summary backend has credentials in the environment.
func LLMCheck(cfg config.LLMConfig) health.Checker {
	return health.Checker{Name: "llm." + strings.ToLower(cfg.Provider), Check: func(context.Context) error {
		if keylessProvider(cfg.Provider) && cfg.Backend != "openai" {
			return nil
		}
		if cfg.APIKeyEnv == "" {
			return nil
		}
		if strings.TrimSpace(os.Getenv(cfg.APIKeyEnv)) == "" {
			return fmt.Errorf("%s is not set", cfg.APIKeyEnv)
		}
		return nil
	}}
}

func keylessProvider(provider string) bool {
	switch strings.ToLower(provider) {
	case "ollama", "llamacpp", "llamafile":
		return true
	default:
		return false
	}
}

// StoreCheck pings an already open record store.
func StoreCheck(st store.Store) health.Checker {
	return health.Checker{Name: "store", Check: func(ctx context.Context) error {
		if st == nil {
			return errors.New("record store is disabled")
		}
		return st.Ping(ctx)
	}}
}

// checkOutputDir verifies downloaded documents can be written.
func checkOutputDir(dir string) Check {
	name := "document.output_dir"
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	f, err := os.CreateTemp(abs, ".consult-doctor-*")
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("not writable: %v", err)}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("writable at %s", abs)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
