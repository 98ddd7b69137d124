package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Capture: CaptureConfig{
			MaxSeconds:    300,
			CalibrationMS: 500,
			SilenceMS:     1200,
			Multiplier:    1.5,
			MinThreshold:  300,
		},
		STT: STTConfig{
			Backend:             "whisper",
			WhisperURL:          "http://127.0.0.1:8080",
			DeepgramAPIKeyEnv:   "DEEPGRAM_API_KEY",
			Language:            "en",
			TimeoutSeconds:      60,
			CapitalizeSentences: true,
		},
		LLM: LLMConfig{
			Backend:        "anyllm",
			Provider:       "gemini",
			Model:          "gemini-1.5-flash",
			APIKeyEnv:      "GEMINI_API_KEY",
			TimeoutSeconds: 60,
		},
		Store: StoreConfig{
			Enable: true,
			Driver: "sqlite",
			Path:   "consultations.db",
			DSNEnv: "CONSULT_DATABASE_URL",
		},
		Document: DocumentConfig{
			Title:     "Patient Consultation Summary",
			OutputDir: ".",
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8501",
			SessionTTLSeconds: 3600,
			Metrics:           true,
		},
		Log: LogConfig{Level: "info"},
	}
}
