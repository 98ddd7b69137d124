// Package session holds the per-client interaction state: the input text,
// the voice capture in flight, and the memoized summary document.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/consult/internal/capture"
	"github.com/rbright/consult/internal/cue"
	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/fsm"
	"github.com/rbright/consult/internal/observe"
	"github.com/rbright/consult/internal/store"
	"github.com/rbright/consult/internal/summary"
	"github.com/rbright/consult/internal/transcribe"
)

// Mode is the input-mode selector.
type Mode string

const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// ParseMode accepts "voice" or "text".
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeVoice:
		return ModeVoice, nil
	case ModeText:
		return ModeText, nil
	default:
		return "", fmt.Errorf("unknown input mode %q", raw)
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Open        capture.OpenFunc
	Capture     capture.Options
	Transcriber transcribe.Transcriber
	Summarizer  summary.Summarizer
	Renderer    document.Renderer
	Store       Appender
	// Cues is told when listening starts and ends; nil plays nothing.
	Cues    cue.Player
	Metrics *observe.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Renderer == nil {
		d.Renderer = document.PDF{Title: "Patient Consultation Summary"}
	}
	if d.Capture.Now == nil {
		d.Capture.Now = d.Now
	}
	return d
}

// voiceRun is the result of one capture. text and err are final once done
// is closed.
type voiceRun struct {
	done chan struct{}
	text string
	err  error
}

// State is one client's interaction state. Summary and share calls run one
// at a time; reads never wait on them.
type State struct {
	id      string
	deps    Deps
	logger  *slog.Logger
	capture *capture.Controller

	// op serializes summary and share so each runs at most once at a time.
	op sync.Mutex

	mu           sync.Mutex
	mode         Mode
	input        string
	summary      string
	doc          *document.Document
	memoKey      string
	transcribing bool
	voiceBusy    bool
	voice        *voiceRun
	sharedID     int64
	notice       Notice
	lastActive   time.Time
}

// New creates a session in voice mode with empty input.
func New(id string, deps Deps) *State {
	deps = deps.withDefaults()
	logger := deps.Logger.With("session", id)
	return &State{
		id:         id,
		deps:       deps,
		logger:     logger,
		capture:    capture.NewController(deps.Open, deps.Capture, logger),
		mode:       ModeVoice,
		lastActive: deps.Now(),
	}
}

func (s *State) ID() string { return s.id }

func memoKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func (s *State) touchLocked() {
	s.lastActive = s.deps.Now()
}

func (s *State) setNoticeLocked(n Notice) {
	s.notice = n
}

// SetMode switches the input-mode selector.
func (s *State) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	s.touchLocked()
}

// SetInputFromText overwrites the input with typed text.
func (s *State) SetInputFromText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setInputLocked(text)
}

// SetInputFromVoice overwrites the input with a transcript.
func (s *State) SetInputFromVoice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setInputLocked(text)
}

// setInputLocked clears the summary and document when they were produced
// for different text.
func (s *State) setInputLocked(text string) {
	s.input = text
	s.touchLocked()
	if s.memoKey != "" && memoKey(text) == s.memoKey {
		return
	}
	s.summary = ""
	s.doc = nil
	s.memoKey = ""
	s.sharedID = 0
}

func (s *State) playCue(kind cue.Kind) {
	if s.deps.Cues != nil {
		s.deps.Cues.Play(kind)
	}
}

// Input returns the current input text.
func (s *State) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// StartRecording begins a capture and transcribes it in the background once
// it finishes. Until that transcript has been applied, another start fails
// with ErrAlreadyRecording.
func (s *State) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.voiceBusy {
		s.mu.Unlock()
		s.fail(ErrAlreadyRecording)
		return ErrAlreadyRecording
	}
	s.voiceBusy = true
	s.mu.Unlock()

	h, err := s.capture.Start(ctx)
	if err != nil {
		s.capture.Reset()
		s.mu.Lock()
		s.voiceBusy = false
		s.mu.Unlock()
		s.fail(err)
		return err
	}

	run := &voiceRun{done: make(chan struct{})}
	s.mu.Lock()
	s.voice = run
	s.touchLocked()
	s.setNoticeLocked(Notice{Level: LevelInfo, Text: "Listening... describe your symptoms."})
	s.mu.Unlock()
	s.playCue(cue.Start)

	go s.completeVoice(context.WithoutCancel(ctx), h, run)
	return nil
}

// StopRecording ends the current listen early.
func (s *State) StopRecording() bool {
	h := s.capture.Active()
	if h == nil || s.capture.State() != fsm.StateRecording {
		return false
	}
	h.Stop()
	return true
}

func (s *State) completeVoice(ctx context.Context, h *capture.Handle, run *voiceRun) {
	defer close(run.done)

	<-h.Done()
	out, _ := h.Outcome()
	s.deps.Metrics.RecordCapture(ctx, string(out.Status), out.FinishedAt.Sub(out.StartedAt))

	if out.Status != fsm.StateCompleted {
		err := out.Err
		if err == nil {
			err = ErrTimedOut
		}
		s.finishVoice(run, "", err)
		return
	}

	s.playCue(cue.Stop)
	s.mu.Lock()
	s.transcribing = true
	s.setNoticeLocked(Notice{Level: LevelInfo, Text: "Transcribing..."})
	s.mu.Unlock()

	in, err := transcribe.ReadWAV(out.AudioPath)
	if rerr := out.Release(); rerr != nil {
		s.logger.Warn("remove capture file failed", "path", out.AudioPath, "error", rerr.Error())
	}
	if err != nil {
		s.finishVoice(run, "", err)
		return
	}

	if s.deps.Transcriber == nil {
		s.finishVoice(run, "", fmt.Errorf("%w: speech backend is not configured", ErrServiceUnavailable))
		return
	}

	started := time.Now()
	res := s.deps.Transcriber.Transcribe(ctx, in)
	outcome := "ok"
	switch {
	case errors.Is(res.Err, ErrUnintelligible):
		outcome = "unintelligible"
	case res.Err != nil:
		outcome = "unavailable"
	}
	s.deps.Metrics.RecordTranscription(ctx, outcome, time.Since(started))
	s.finishVoice(run, res.Text, res.Err)
}

// finishVoice applies a voice result and returns capture to Idle. Failures
// leave the input unchanged.
func (s *State) finishVoice(run *voiceRun, text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capture.Reset()
	s.transcribing = false
	s.voiceBusy = false
	run.text, run.err = text, err
	if err != nil {
		s.setNoticeLocked(UserMessage(err))
		s.logger.Warn("voice input failed", "error", err.Error())
		s.playCue(cue.Fail)
		return
	}
	s.setInputLocked(text)
	s.playCue(cue.Complete)
	s.setNoticeLocked(Notice{Level: LevelSuccess, Text: "Transcription complete."})
}

// AwaitVoice blocks until the latest capture has been transcribed.
func (s *State) AwaitVoice(ctx context.Context) (string, error) {
	s.mu.Lock()
	run := s.voice
	s.mu.Unlock()
	if run == nil {
		return "", errors.New("no recording has been started")
	}

	select {
	case <-run.done:
		return run.text, run.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RunVoiceCapture records, transcribes, and applies the transcript in one
// blocking call.
func (s *State) RunVoiceCapture(ctx context.Context) (string, error) {
	if err := s.StartRecording(ctx); err != nil {
		return "", err
	}
	return s.AwaitVoice(ctx)
}

// Result is the outcome of one summary request.
type Result struct {
	Summary  string
	Document document.Document
	// Cached is set when the memoized document was returned unchanged.
	Cached bool
}

// RequestSummary summarizes the current input and renders it. Blank input
// is rejected with ErrEmptyInput and changes nothing. Unchanged input returns
// the memoized document without calling the summarizer or renderer again.
func (s *State) RequestSummary(ctx context.Context) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	input := s.input
	s.touchLocked()
	if strings.TrimSpace(input) == "" {
		s.setNoticeLocked(UserMessage(ErrEmptyInput))
		s.mu.Unlock()
		s.deps.Metrics.RecordSummary(ctx, "empty_input", 0)
		return Result{}, ErrEmptyInput
	}
	key := memoKey(input)
	if s.doc != nil && s.memoKey == key {
		res := Result{Summary: s.summary, Document: *s.doc, Cached: true}
		s.mu.Unlock()
		s.deps.Metrics.RecordSummary(ctx, "cached", 0)
		return res, nil
	}
	s.setNoticeLocked(Notice{Level: LevelInfo, Text: "Generating summary..."})
	s.mu.Unlock()

	if s.deps.Summarizer == nil {
		return Result{}, s.fail(fmt.Errorf("%w: summarizer is not configured", ErrSummaryUnavailable))
	}

	started := time.Now()
	text, err := s.deps.Summarizer.Summarize(ctx, input)
	if err != nil {
		s.deps.Metrics.RecordSummary(ctx, "failed", time.Since(started))
		if !errors.Is(err, ErrSummaryUnavailable) && !errors.Is(err, summary.ErrEmptySummary) {
			err = fmt.Errorf("%w: %w", ErrSummaryUnavailable, err)
		}
		return Result{}, s.fail(err)
	}

	doc, err := document.Build(s.deps.Renderer, text, s.deps.Now())
	if err != nil {
		s.deps.Metrics.RecordSummary(ctx, "failed", time.Since(started))
		return Result{}, s.fail(err)
	}
	s.deps.Metrics.RecordSummary(ctx, "generated", time.Since(started))

	s.mu.Lock()
	defer s.mu.Unlock()
	if memoKey(s.input) != key {
		// Input changed while the model was answering; keep the result out
		// of the memo so the next request regenerates.
		return Result{Summary: text, Document: doc}, nil
	}
	s.summary = text
	s.doc = &doc
	s.memoKey = key
	s.sharedID = 0
	s.setNoticeLocked(Notice{Level: LevelSuccess, Text: "Summary ready: " + doc.Filename})
	s.logger.Info("summary ready", "filename", doc.Filename, "bytes", len(doc.Data))
	return Result{Summary: text, Document: doc}, nil
}

// Document returns the memoized document, if any.
func (s *State) Document() (document.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return document.Document{}, false
	}
	return *s.doc, true
}

// Share appends the current document to the record store. Each call
// inserts exactly one row.
func (s *State) Share(ctx context.Context) (int64, error) {
	s.op.Lock()
	defer s.op.Unlock()

	doc, ok := s.Document()
	if !ok {
		return 0, s.fail(ErrNoDocument)
	}
	if s.deps.Store == nil {
		s.deps.Metrics.RecordShare(ctx, "failed")
		return 0, s.fail(fmt.Errorf("%w: record store is not configured", ErrPersistence))
	}

	id, err := s.deps.Store.Append(ctx, store.NewRecord(doc.Filename, doc.Data, s.deps.Now()))
	if err != nil {
		s.deps.Metrics.RecordShare(ctx, "failed")
		return 0, s.fail(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	s.deps.Metrics.RecordShare(ctx, "ok")

	s.mu.Lock()
	s.sharedID = id
	s.setNoticeLocked(Notice{Level: LevelSuccess, Text: "Summary shared with the consultant."})
	s.mu.Unlock()
	s.logger.Info("summary shared", "filename", doc.Filename, "record_id", id)
	return id, nil
}

func (s *State) fail(err error) error {
	s.mu.Lock()
	s.setNoticeLocked(UserMessage(err))
	s.mu.Unlock()
	return err
}

// Close stops any capture in flight.
func (s *State) Close() {
	s.StopRecording()
}

// View is a read-only snapshot for rendering.
type View struct {
	ID           string        `json:"id"`
	Mode         Mode          `json:"mode"`
	Input        string        `json:"input"`
	Recording    bool          `json:"recording"`
	Transcribing bool          `json:"transcribing"`
	CaptureState fsm.State     `json:"capture_state"`
	Elapsed      time.Duration `json:"-"`
	ElapsedSecs  int           `json:"elapsed_seconds"`
	Summary      string        `json:"summary,omitempty"`
	Filename     string        `json:"filename,omitempty"`
	SharedID     int64         `json:"shared_id,omitempty"`
	Notice       Notice        `json:"notice"`
}

// Snapshot reads the current state.
func (s *State) Snapshot() View {
	captureState := s.capture.State()
	var elapsed time.Duration
	if h := s.capture.Active(); h != nil && captureState == fsm.StateRecording {
		elapsed = h.Elapsed()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:           s.id,
		Mode:         s.mode,
		Input:        s.input,
		Recording:    captureState == fsm.StateRecording,
		Transcribing: s.transcribing,
		CaptureState: captureState,
		Elapsed:      elapsed,
		ElapsedSecs:  int(elapsed / time.Second),
		Summary:      s.summary,
		SharedID:     s.sharedID,
		Notice:       s.notice,
	}
	if s.doc != nil {
		v.Filename = s.doc.Filename
	}
	return v
}

// IdleSince reports the last time the session was used.
func (s *State) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
