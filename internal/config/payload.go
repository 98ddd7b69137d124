package config

import (
	"fmt"
	"strings"
)

// filePayload mirrors the on-disk layout for both JSONC and YAML. Pointer
// fields distinguish "unset" from zero values so defaults survive.
type filePayload struct {
	Audio    *audioPayload    `json:"audio" yaml:"audio"`
	Capture  *capturePayload  `json:"capture" yaml:"capture"`
	STT      *sttPayload      `json:"stt" yaml:"stt"`
	LLM      *llmPayload      `json:"llm" yaml:"llm"`
	Store    *storePayload    `json:"store" yaml:"store"`
	Document *documentPayload `json:"document" yaml:"document"`
	Server   *serverPayload   `json:"server" yaml:"server"`
	Log      *logPayload      `json:"log" yaml:"log"`
	Debug    *debugPayload    `json:"debug" yaml:"debug"`
}

type audioPayload struct {
	Input    *string `json:"input" yaml:"input"`
	Fallback *string `json:"fallback" yaml:"fallback"`
	Cues     *bool   `json:"cues" yaml:"cues"`
}

type capturePayload struct {
	MaxSeconds    *int     `json:"max_seconds" yaml:"max_seconds"`
	CalibrationMS *int     `json:"calibration_ms" yaml:"calibration_ms"`
	SilenceMS     *int     `json:"silence_ms" yaml:"silence_ms"`
	Multiplier    *float64 `json:"threshold_multiplier" yaml:"threshold_multiplier"`
	MinThreshold  *float64 `json:"min_threshold" yaml:"min_threshold"`
}

type sttPayload struct {
	Backend             *string `json:"backend" yaml:"backend"`
	WhisperURL          *string `json:"whisper_url" yaml:"whisper_url"`
	DeepgramURL         *string `json:"deepgram_url" yaml:"deepgram_url"`
	DeepgramAPIKeyEnv   *string `json:"deepgram_api_key_env" yaml:"deepgram_api_key_env"`
	Model               *string `json:"model" yaml:"model"`
	Language            *string `json:"language" yaml:"language"`
	TimeoutSeconds      *int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	CapitalizeSentences *bool   `json:"capitalize_sentences" yaml:"capitalize_sentences"`
}

type llmPayload struct {
	Backend        *string `json:"backend" yaml:"backend"`
	Provider       *string `json:"provider" yaml:"provider"`
	Model          *string `json:"model" yaml:"model"`
	APIKeyEnv      *string `json:"api_key_env" yaml:"api_key_env"`
	BaseURL        *string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds *int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type storePayload struct {
	Enable *bool   `json:"enable" yaml:"enable"`
	Driver *string `json:"driver" yaml:"driver"`
	Path   *string `json:"path" yaml:"path"`
	DSN    *string `json:"dsn" yaml:"dsn"`
	DSNEnv *string `json:"dsn_env" yaml:"dsn_env"`
}

type documentPayload struct {
	Title     *string `json:"title" yaml:"title"`
	OutputDir *string `json:"output_dir" yaml:"output_dir"`
	OpenCmd   *string `json:"open_cmd" yaml:"open_cmd"`
	CopyCmd   *string `json:"copy_cmd" yaml:"copy_cmd"`
}

type serverPayload struct {
	Addr              *string `json:"addr" yaml:"addr"`
	SessionTTLSeconds *int    `json:"session_ttl_seconds" yaml:"session_ttl_seconds"`
	Metrics           *bool   `json:"metrics" yaml:"metrics"`
}

type logPayload struct {
	Level *string `json:"level" yaml:"level"`
}

type debugPayload struct {
	AudioDump *bool `json:"audio_dump" yaml:"audio_dump"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (payload filePayload) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if p := payload.Audio; p != nil {
		set(&cfg.Audio.Input, p.Input)
		set(&cfg.Audio.Fallback, p.Fallback)
		set(&cfg.Audio.Cues, p.Cues)
	}

	if p := payload.Capture; p != nil {
		set(&cfg.Capture.MaxSeconds, p.MaxSeconds)
		set(&cfg.Capture.CalibrationMS, p.CalibrationMS)
		set(&cfg.Capture.SilenceMS, p.SilenceMS)
		set(&cfg.Capture.Multiplier, p.Multiplier)
		set(&cfg.Capture.MinThreshold, p.MinThreshold)
	}

	if p := payload.STT; p != nil {
		setString(&cfg.STT.Backend, p.Backend)
		setString(&cfg.STT.WhisperURL, p.WhisperURL)
		setString(&cfg.STT.DeepgramURL, p.DeepgramURL)
		setString(&cfg.STT.DeepgramAPIKeyEnv, p.DeepgramAPIKeyEnv)
		setString(&cfg.STT.Model, p.Model)
		setString(&cfg.STT.Language, p.Language)
		set(&cfg.STT.TimeoutSeconds, p.TimeoutSeconds)
		set(&cfg.STT.CapitalizeSentences, p.CapitalizeSentences)
	}

	if p := payload.LLM; p != nil {
		setString(&cfg.LLM.Backend, p.Backend)
		setString(&cfg.LLM.Provider, p.Provider)
		setString(&cfg.LLM.Model, p.Model)
		setString(&cfg.LLM.APIKeyEnv, p.APIKeyEnv)
		setString(&cfg.LLM.BaseURL, p.BaseURL)
		set(&cfg.LLM.TimeoutSeconds, p.TimeoutSeconds)
	}

	if p := payload.Store; p != nil {
		set(&cfg.Store.Enable, p.Enable)
		setString(&cfg.Store.Driver, p.Driver)
		setString(&cfg.Store.Path, p.Path)
		setString(&cfg.Store.DSN, p.DSN)
		setString(&cfg.Store.DSNEnv, p.DSNEnv)
		if p.DSN != nil && strings.TrimSpace(*p.DSN) != "" {
			warnings = append(warnings, Warning{Message: "store.dsn embeds credentials in the config file; prefer store.dsn_env"})
		}
	}

	if p := payload.Document; p != nil {
		set(&cfg.Document.Title, p.Title)
		setString(&cfg.Document.OutputDir, p.OutputDir)
		if err := setCommand(&cfg.Document.OpenCmd, "document.open_cmd", p.OpenCmd); err != nil {
			return nil, err
		}
		if err := setCommand(&cfg.Document.CopyCmd, "document.copy_cmd", p.CopyCmd); err != nil {
			return nil, err
		}
	}

	if p := payload.Server; p != nil {
		setString(&cfg.Server.Addr, p.Addr)
		set(&cfg.Server.SessionTTLSeconds, p.SessionTTLSeconds)
		set(&cfg.Server.Metrics, p.Metrics)
	}

	if p := payload.Log; p != nil {
		setString(&cfg.Log.Level, p.Level)
	}

	if p := payload.Debug; p != nil {
		set(&cfg.Debug.EnableAudioDump, p.AudioDump)
	}

	return warnings, nil
}

func setCommand(dst *CommandConfig, key string, raw *string) error {
	if raw == nil {
		return nil
	}
	argv, err := parseArgv(*raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = CommandConfig{Raw: *raw, Argv: argv}
	return nil
}
