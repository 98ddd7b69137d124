// Package config resolves, parses, validates, and defaults consult configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Audio    AudioConfig
	Capture  CaptureConfig
	STT      STTConfig
	LLM      LLMConfig
	Store    StoreConfig
	Document DocumentConfig
	Server   ServerConfig
	Log      LogConfig
	Debug    DebugConfig
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
	// Cues plays a short tone when listening starts and ends.
	Cues bool
}

// CaptureConfig bounds one voice capture and tunes end-of-speech detection.
type CaptureConfig struct {
	MaxSeconds    int
	CalibrationMS int
	SilenceMS     int
	Multiplier    float64
	MinThreshold  float64
}

func (c CaptureConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxSeconds) * time.Second
}

func (c CaptureConfig) Calibration() time.Duration {
	return time.Duration(c.CalibrationMS) * time.Millisecond
}

func (c CaptureConfig) Silence() time.Duration {
	return time.Duration(c.SilenceMS) * time.Millisecond
}

// STTConfig selects and configures the speech backend.
type STTConfig struct {
	Backend             string
	WhisperURL          string
	DeepgramURL         string
	DeepgramAPIKeyEnv   string
	Model               string
	Language            string
	TimeoutSeconds      int
	CapitalizeSentences bool
}

// LLMConfig selects and configures the summarization backend.
type LLMConfig struct {
	Backend        string
	Provider       string
	Model          string
	APIKeyEnv      string
	BaseURL        string
	TimeoutSeconds int
}

// StoreConfig selects the record store shared with consultants.
type StoreConfig struct {
	Enable bool
	Driver string
	Path   string
	DSN    string
	DSNEnv string
}

// DocumentConfig controls PDF output.
type DocumentConfig struct {
	Title     string
	OutputDir string
	// OpenCmd runs with the saved PDF path appended, when set.
	OpenCmd CommandConfig
	// CopyCmd receives the summary text on stdin, when set.
	CopyCmd CommandConfig
}

// ServerConfig controls the browser form.
type ServerConfig struct {
	Addr              string
	SessionTTLSeconds int
	Metrics           bool
}

func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLSeconds) * time.Second
}

// LogConfig controls the JSONL log.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
