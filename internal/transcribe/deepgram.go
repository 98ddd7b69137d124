package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	deepgramModel     = "nova-3"
	deepgramChunkSize = 8192
)

// Deepgram streams the buffer over Deepgram's live websocket API and collects
// the final results.
type Deepgram struct {
	apiKey   string
	endpoint string
	model    string
	language string
}

type DeepgramOption func(*Deepgram)

func WithDeepgramModel(model string) DeepgramOption {
	return func(d *Deepgram) { d.model = model }
}

func WithDeepgramLanguage(lang string) DeepgramOption {
	return func(d *Deepgram) {
		if lang != "" {
			d.language = lang
		}
	}
}

func WithDeepgramEndpoint(endpoint string) DeepgramOption {
	return func(d *Deepgram) { d.endpoint = endpoint }
}

func NewDeepgram(apiKey string, opts ...DeepgramOption) (*Deepgram, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	d := &Deepgram{
		apiKey:   apiKey,
		endpoint: deepgramEndpoint,
		model:    deepgramModel,
		language: "en",
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) buildURL(in Audio) (string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", d.model)
	q.Set("language", d.language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(in.sampleRate()))
	q.Set("channels", strconv.Itoa(in.channels()))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Recognize sends the buffer, closes the stream, and returns every final
// transcript Deepgram emits before it closes the socket.
func (d *Deepgram) Recognize(ctx context.Context, in Audio) ([]string, error) {
	wsURL, err := d.buildURL(in)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- d.send(ctx, conn, in.PCM)
	}()

	var finals []string
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return nil, fmt.Errorf("deepgram: read: %w", err)
		}
		text, final, ok := parseDeepgramResponse(msg)
		if ok && final && text != "" {
			finals = append(finals, text)
		}
	}

	if err := <-writeErr; err != nil {
		return nil, err
	}
	return finals, nil
}

func (d *Deepgram) send(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += deepgramChunkSize {
		end := min(start+deepgramChunkSize, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[start:end]); err != nil {
			return fmt.Errorf("deepgram: write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

func parseDeepgramResponse(data []byte) (string, bool, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return "", false, false
	}
	return resp.Channel.Alternatives[0].Transcript, resp.IsFinal, true
}
