package session

import (
	"errors"
	"strings"

	"github.com/rbright/consult/internal/capture"
	"github.com/rbright/consult/internal/summary"
	"github.com/rbright/consult/internal/transcribe"
)

var (
	// ErrEmptyInput rejects a summary request for blank input.
	ErrEmptyInput = errors.New("please provide input via voice or text")
	// ErrPersistence wraps record store failures.
	ErrPersistence = errors.New("could not save the summary")
	// ErrNoDocument rejects download or share before a summary exists.
	ErrNoDocument = errors.New("generate a summary first")

	ErrAlreadyRecording   = capture.ErrAlreadyRecording
	ErrTimedOut           = capture.ErrTimedOut
	ErrUnintelligible     = transcribe.ErrUnintelligible
	ErrServiceUnavailable = transcribe.ErrServiceUnavailable
	ErrSummaryUnavailable = summary.ErrUnavailable
)

// Level grades an inline notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the inline status message shown next to the form.
type Notice struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// UserMessage renders err as inline text. Nothing here is fatal to a session.
func UserMessage(err error) Notice {
	switch {
	case err == nil:
		return Notice{}
	case errors.Is(err, ErrEmptyInput):
		return Notice{Level: LevelWarning, Text: "Please provide input via voice or text."}
	case errors.Is(err, ErrAlreadyRecording):
		return Notice{Level: LevelWarning, Text: "Recording already in progress. Please wait..."}
	case errors.Is(err, ErrTimedOut):
		return Notice{Level: LevelWarning, Text: "Listening timed out. No speech detected. Try recording again."}
	case errors.Is(err, ErrUnintelligible):
		return Notice{Level: LevelError, Text: "Could not understand audio. Try recording again."}
	case errors.Is(err, ErrNoDocument):
		return Notice{Level: LevelWarning, Text: "Generate a summary first."}
	case errors.Is(err, ErrPersistence):
		return Notice{Level: LevelError, Text: "Could not share the summary: " + err.Error()}
	case errors.Is(err, summary.ErrEmptySummary):
		return Notice{Level: LevelError, Text: "The summary service returned no text. Try again."}
	case errors.Is(err, ErrSummaryUnavailable):
		return Notice{Level: LevelError, Text: "Summary service error: " + detail(err, ErrSummaryUnavailable)}
	case errors.Is(err, ErrServiceUnavailable):
		return Notice{Level: LevelError, Text: "Speech service error: " + detail(err, ErrServiceUnavailable)}
	default:
		return Notice{Level: LevelError, Text: "Error: " + err.Error()}
	}
}

// detail drops the sentinel prefix so the backend's own text reads verbatim.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimLeft(msg, ": \n")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
