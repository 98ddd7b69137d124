// Package summary sends patient input to a hosted LLM under the
// consultation template and returns the generated summary.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/rbright/consult/internal/config"
)

var (
	// ErrEmptySummary is returned when the model answers with no text.
	ErrEmptySummary = errors.New("model returned an empty summary")
	// ErrUnavailable classifies a model call that failed outright.
	ErrUnavailable = errors.New("summary service error")
)

// Summarizer produces a consultation summary for raw patient input.
type Summarizer interface {
	Summarize(ctx context.Context, input string) (string, error)
}

// SummarizerFunc adapts a plain function to Summarizer.
type SummarizerFunc func(ctx context.Context, input string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Completer sends one prompt to a model and returns its text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service renders the prompt and calls the model once per Summarize.
type Service struct {
	completer Completer
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

// WithClock overrides the date stamped into the prompt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize implements Summarizer.
func (s *Service) Summarize(ctx context.Context, input string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := s.completer.Complete(ctx, BuildPrompt(input, s.now()))
	latency := time.Since(started).Milliseconds()
	if err != nil {
		s.logger.Warn("summary failed", "backend", s.completer.Name(), "latency_ms", latency, "error", err.Error())
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", s.completer.Name(), ErrEmptySummary)
	}
	s.logger.Info("summary generated", "backend", s.completer.Name(), "latency_ms", latency, "chars", len(text))
	return text, nil
}

// New builds the configured backend.
func New(cfg config.LLMConfig, logger *slog.Logger) (*Service, error) {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	}

	var (
		completer Completer
		err       error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "anyllm":
		var opts []anyllmlib.Option
		if apiKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(apiKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		completer, err = NewAnyLLM(cfg.Provider, cfg.Model, opts...)
	case "openai":
		completer, err = NewOpenAI(apiKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported llm backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewService(completer,
		WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		WithLogger(logger),
	), nil
}
