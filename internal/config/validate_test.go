package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero max seconds", mutate: func(c *Config) { c.Capture.MaxSeconds = 0 }, wantErr: "capture.max_seconds"},
		{name: "max seconds above bound", mutate: func(c *Config) { c.Capture.MaxSeconds = 301 }, wantErr: "<= 300"},
		{name: "negative calibration", mutate: func(c *Config) { c.Capture.CalibrationMS = -1 }, wantErr: "capture.calibration_ms"},
		{name: "zero silence", mutate: func(c *Config) { c.Capture.SilenceMS = 0 }, wantErr: "capture.silence_ms"},
		{name: "zero multiplier", mutate: func(c *Config) { c.Capture.Multiplier = 0 }, wantErr: "threshold_multiplier"},
		{name: "unknown stt backend", mutate: func(c *Config) { c.STT.Backend = "vosk" }, wantErr: "stt.backend"},
		{name: "whisper without url", mutate: func(c *Config) { c.STT.WhisperURL = "" }, wantErr: "stt.whisper_url"},
		{name: "deepgram without key env", mutate: func(c *Config) {
			c.STT.Backend = "deepgram"
			c.STT.DeepgramAPIKeyEnv = ""
		}, wantErr: "deepgram_api_key_env"},
		{name: "unknown llm backend", mutate: func(c *Config) { c.LLM.Backend = "local" }, wantErr: "llm.backend"},
		{name: "anyllm without provider", mutate: func(c *Config) { c.LLM.Provider = "" }, wantErr: "llm.provider"},
		{name: "unknown store driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Path = "" }, wantErr: "store.path"},
		{name: "postgres without dsn", mutate: func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DSNEnv = ""
		}, wantErr: "store.dsn"},
		{name: "empty output dir", mutate: func(c *Config) { c.Document.OutputDir = " " }, wantErr: "document.output_dir"},
		{name: "open cmd raw but empty argv", mutate: func(c *Config) {
			c.Document.OpenCmd = CommandConfig{Raw: "# comment"}
		}, wantErr: "document.open_cmd"},
		{name: "copy cmd raw but empty argv", mutate: func(c *Config) {
			c.Document.CopyCmd = CommandConfig{Raw: "  "}
		}, wantErr: "document.copy_cmd"},
		{name: "empty server addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: "server.addr"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsWhenStoreDisabled(t *testing.T) {
	cfg := Default()
	cfg.Store.Enable = false
	cfg.Store.Driver = ""

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "store.enable=false")
}

func TestCaptureDurations(t *testing.T) {
	c := Default().Capture
	require.Equal(t, "5m0s", c.MaxDuration().String())
	require.Equal(t, "500ms", c.Calibration().String())
	require.Equal(t, "1.2s", c.Silence().String())
}
