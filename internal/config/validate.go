package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Capture.MaxSeconds <= 0 {
		return nil, fmt.Errorf("capture.max_seconds must be > 0")
	}
	if cfg.Capture.MaxSeconds > 300 {
		return nil, fmt.Errorf("capture.max_seconds must be <= 300")
	}
	if cfg.Capture.CalibrationMS < 0 {
		return nil, fmt.Errorf("capture.calibration_ms must be >= 0")
	}
	if cfg.Capture.SilenceMS <= 0 {
		return nil, fmt.Errorf("capture.silence_ms must be > 0")
	}
	if cfg.Capture.Multiplier <= 0 {
		return nil, fmt.Errorf("capture.threshold_multiplier must be > 0")
	}
	if cfg.Capture.MinThreshold < 0 {
		return nil, fmt.Errorf("capture.min_threshold must be >= 0")
	}

	switch strings.ToLower(cfg.STT.Backend) {
	case "whisper":
		if cfg.STT.WhisperURL == "" {
			return nil, fmt.Errorf("stt.whisper_url must not be empty when stt.backend=whisper")
		}
	case "deepgram":
		if cfg.STT.DeepgramAPIKeyEnv == "" {
			return nil, fmt.Errorf("stt.deepgram_api_key_env must not be empty when stt.backend=deepgram")
		}
	default:
		return nil, fmt.Errorf("stt.backend must be one of: whisper, deepgram")
	}
	if cfg.STT.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("stt.timeout_seconds must be >= 0")
	}

	switch strings.ToLower(cfg.LLM.Backend) {
	case "anyllm":
		if cfg.LLM.Provider == "" {
			return nil, fmt.Errorf("llm.provider must not be empty when llm.backend=anyllm")
		}
	case "openai":
	default:
		return nil, fmt.Errorf("llm.backend must be one of: anyllm, openai")
	}
	if cfg.LLM.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("llm.timeout_seconds must be >= 0")
	}
	if cfg.LLM.APIKeyEnv == "" {
		warnings = append(warnings, Warning{Message: "llm.api_key_env is empty; the provider default environment variable is used"})
	}

	if cfg.Store.Enable {
		switch strings.ToLower(cfg.Store.Driver) {
		case "sqlite":
			if cfg.Store.Path == "" {
				return nil, fmt.Errorf("store.path must not be empty when store.driver=sqlite")
			}
		case "postgres":
			if cfg.Store.DSN == "" && cfg.Store.DSNEnv == "" {
				return nil, fmt.Errorf("store.dsn or store.dsn_env is required when store.driver=postgres")
			}
		default:
			return nil, fmt.Errorf("store.driver must be one of: sqlite, postgres")
		}
	} else {
		warnings = append(warnings, Warning{Message: "store.enable=false; sharing summaries is unavailable"})
	}

	if strings.TrimSpace(cfg.Document.OutputDir) == "" {
		return nil, fmt.Errorf("document.output_dir must not be empty")
	}
	if cfg.Document.OpenCmd.Raw != "" && len(cfg.Document.OpenCmd.Argv) == 0 {
		return nil, fmt.Errorf("document.open_cmd is configured but empty")
	}
	if cfg.Document.CopyCmd.Raw != "" && len(cfg.Document.CopyCmd.Argv) == 0 {
		return nil, fmt.Errorf("document.copy_cmd is configured but empty")
	}

	if cfg.Server.Addr == "" {
		return nil, fmt.Errorf("server.addr must not be empty")
	}
	if cfg.Server.SessionTTLSeconds < 0 {
		return nil, fmt.Errorf("server.session_ttl_seconds must be >= 0")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
