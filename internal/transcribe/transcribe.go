// Package transcribe converts a captured audio buffer into symptom text and
// classifies recognition failures.
package transcribe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/consult/internal/audio"
	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/transcript"
)

var (
	// ErrUnintelligible means audio reached the backend but held no words.
	ErrUnintelligible = errors.New("audio could not be understood")
	// ErrServiceUnavailable means the speech backend failed or was unreachable.
	ErrServiceUnavailable = errors.New("speech service unavailable")
)

// Audio is one captured buffer of 16-bit little-endian PCM.
type Audio struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// WAV returns the buffer wrapped in a RIFF/WAV container.
func (a Audio) WAV() []byte {
	return audio.EncodeWAV(a.PCM, a.sampleRate(), a.channels())
}

func (a Audio) sampleRate() int {
	if a.SampleRate <= 0 {
		return audio.SampleRate
	}
	return a.SampleRate
}

func (a Audio) channels() int {
	if a.Channels <= 0 {
		return audio.Channels
	}
	return a.Channels
}

// ReadWAV loads a PCM WAV file written by the capture step.
func ReadWAV(path string) (Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Audio{}, fmt.Errorf("read captured audio: %w", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, fmt.Errorf("read captured audio: %s is not a WAV file", path)
	}
	return Audio{
		PCM:        data[44:],
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
	}, nil
}

// Result is the tagged outcome of one transcription: Text when Err is nil,
// otherwise Err wraps ErrUnintelligible or ErrServiceUnavailable.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the transcription produced text.
func (r Result) OK() bool {
	return r.Err == nil
}

// Transcriber turns a captured buffer into a Result. It never retries.
type Transcriber interface {
	Transcribe(ctx context.Context, in Audio) Result
}

// Backend is one speech recognition service returning raw final segments.
type Backend interface {
	Name() string
	Recognize(ctx context.Context, in Audio) ([]string, error)
}

// Service applies transcript normalization and failure classification on top
// of a Backend.
type Service struct {
	backend Backend
	opts    transcript.Options
	timeout time.Duration
	logger  *slog.Logger
}

// NewService wraps backend. A zero timeout leaves ctx untouched.
func NewService(backend Backend, opts transcript.Options, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{backend: backend, opts: opts, timeout: timeout, logger: logger}
}

// Transcribe implements Transcriber.
func (s *Service) Transcribe(ctx context.Context, in Audio) Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	segments, err := s.backend.Recognize(ctx, in)
	res := Classify(transcript.Assemble(segments, s.opts), err)

	attrs := []any{
		"backend", s.backend.Name(),
		"audio_ms", audio.Duration(in.PCM, in.sampleRate()).Milliseconds(),
		"latency_ms", time.Since(started).Milliseconds(),
	}
	if res.OK() {
		s.logger.Info("transcription complete", append(attrs, "chars", len(res.Text))...)
	} else {
		s.logger.Warn("transcription failed", append(attrs, "error", res.Err.Error())...)
	}
	return res
}

// Classify maps a backend result onto the two recognizable failure modes.
func Classify(text string, err error) Result {
	if err != nil {
		if errors.Is(err, ErrUnintelligible) || errors.Is(err, ErrServiceUnavailable) {
			return Result{Err: err}
		}
		return Result{Err: fmt.Errorf("%w: %w", ErrServiceUnavailable, err)}
	}
	text = strings.TrimSpace(text)
	if transcript.IsNonSpeech(text) {
		return Result{Err: ErrUnintelligible}
	}
	return Result{Text: text}
}

// New builds the configured backend wrapped in a Service.
func New(cfg config.STTConfig, logger *slog.Logger) (*Service, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "whisper":
		backend, err = NewWhisper(cfg.WhisperURL, WithWhisperModel(cfg.Model), WithWhisperLanguage(cfg.Language))
	case "deepgram":
		key := strings.TrimSpace(os.Getenv(cfg.DeepgramAPIKeyEnv))
		opts := []DeepgramOption{WithDeepgramLanguage(cfg.Language)}
		if cfg.Model != "" {
			opts = append(opts, WithDeepgramModel(cfg.Model))
		}
		if cfg.DeepgramURL != "" {
			opts = append(opts, WithDeepgramEndpoint(cfg.DeepgramURL))
		}
		backend, err = NewDeepgram(key, opts...)
	default:
		return nil, fmt.Errorf("unsupported stt backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return NewService(backend, transcript.Options{CapitalizeSentences: cfg.CapitalizeSentences}, timeout, logger), nil
}
