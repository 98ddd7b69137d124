package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJSONCOverridesDefaults(t *testing.T) {
	cfg, warnings, err := Parse(`{
  // speech
  "stt": {"backend": "deepgram", "model": "nova-3", "capitalize_sentences": false},
  "llm": {"backend": "openai", "model": "gpt-4o-mini", "api_key_env": "OPENAI_API_KEY"},
  "capture": {"max_seconds": 120, "silence_ms": 900},
  "store": {"driver": "postgres", "dsn_env": "DATABASE_URL"},
  "document": {"open_cmd": "xdg-open", "copy_cmd": "wl-copy --trim-newline"},
  "server": {"addr": ":9000", "metrics": false},
  "log": {"level": "debug"},
  "debug": {"audio_dump": true},
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "deepgram", cfg.STT.Backend)
	require.Equal(t, "nova-3", cfg.STT.Model)
	require.False(t, cfg.STT.CapitalizeSentences)
	require.Equal(t, "DEEPGRAM_API_KEY", cfg.STT.DeepgramAPIKeyEnv)
	require.Equal(t, "openai", cfg.LLM.Backend)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, 120, cfg.Capture.MaxSeconds)
	require.Equal(t, 900, cfg.Capture.SilenceMS)
	require.Equal(t, 500, cfg.Capture.CalibrationMS)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.Equal(t, []string{"xdg-open"}, cfg.Document.OpenCmd.Argv)
	require.Equal(t, []string{"wl-copy", "--trim-newline"}, cfg.Document.CopyCmd.Argv)
	require.Equal(t, ":9000", cfg.Server.Addr)
	require.False(t, cfg.Server.Metrics)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Debug.EnableAudioDump)
}

func TestParseYAML(t *testing.T) {
	cfg, _, err := Parse(`
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  api_key_env: ANTHROPIC_API_KEY
audio:
  input: USB Microphone
  cues: true
document:
  title: Intake Summary
`, Default())
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.LLM.Provider)
	require.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.Model)
	require.Equal(t, "USB Microphone", cfg.Audio.Input)
	require.True(t, cfg.Audio.Cues)
	require.Equal(t, "Intake Summary", cfg.Document.Title)
	require.Equal(t, "anyllm", cfg.LLM.Backend)
}

func TestParseYAMLUnknownKeyFails(t *testing.T) {
	_, _, err := Parse("llm:\n  temperature: 0.2\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "temperature")
}

func TestParseYAMLRejectsMultipleDocuments(t *testing.T) {
	_, _, err := Parse("log:\n  level: info\n---\nlog:\n  level: debug\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple YAML documents")
}

func TestParseEmptyContentReturnsDefaults(t *testing.T) {
	cfg, _, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseWarnsOnInlineDSN(t *testing.T) {
	_, warnings, err := Parse(`{"store": {"driver": "postgres", "dsn": "postgres://u:p@db/consult"}}`, Default())
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0].Message, "store.dsn_env")
}

func TestParseValidationFailureIsReturned(t *testing.T) {
	_, _, err := Parse(`{"capture": {"max_seconds": 600}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "capture.max_seconds")
}
