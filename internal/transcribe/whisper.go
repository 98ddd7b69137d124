package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/consult/internal/version"
)

// Whisper posts WAV audio to a whisper.cpp server's /inference endpoint.
type Whisper struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

type WhisperOption func(*Whisper)

func WithWhisperModel(model string) WhisperOption {
	return func(w *Whisper) { w.model = model }
}

func WithWhisperLanguage(lang string) WhisperOption {
	return func(w *Whisper) { w.language = lang }
}

func WithWhisperHTTPClient(c *http.Client) WhisperOption {
	return func(w *Whisper) { w.httpClient = c }
}

func NewWhisper(serverURL string, opts ...WhisperOption) (*Whisper, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	w := &Whisper{
		serverURL:  serverURL,
		language:   "en",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

func (w *Whisper) Name() string { return "whisper" }

// Recognize uploads the whole buffer and returns the server's text as a
// single segment.
func (w *Whisper) Recognize(ctx context.Context, in Audio) ([]string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(in.WAV()); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if w.language != "" {
		if err := mw.WriteField("language", w.language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if w.model != "" {
		if err := mw.WriteField("model", w.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, fmt.Errorf("whisper: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return []string{result.Text}, nil
}

// Ping checks that the server answers HTTP at all.
func (w *Whisper) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.serverURL+"/", nil)
	if err != nil {
		return fmt.Errorf("whisper: create request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: http request: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	return nil
}
