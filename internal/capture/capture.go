// Package capture runs bounded voice captures: one listen per session,
// ambient calibration, end-of-speech detection, and a hard deadline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rbright/consult/internal/audio"
	"github.com/rbright/consult/internal/fsm"
)

// DefaultMaxDuration bounds both the listen session and a single phrase.
const DefaultMaxDuration = 300 * time.Second

var (
	// ErrAlreadyRecording rejects a start while a capture is still running.
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	// ErrTimedOut reports a capture that ended without a completed phrase.
	ErrTimedOut = errors.New("listening timed out before any speech was captured")
)

// Recorder is a live PCM source. *audio.Stream satisfies it.
type Recorder interface {
	Chunks() <-chan []byte
	Stop() error
}

// byteCounter is implemented by recorders that count what the device
// delivered, including frames the controller never saw.
type byteCounter interface {
	BytesCaptured() int64
}

// OpenFunc opens the audio input for one capture and describes the device.
type OpenFunc func(ctx context.Context) (Recorder, string, error)

// Options tunes one controller.
type Options struct {
	MaxDuration  time.Duration
	Calibration  time.Duration
	Silence      time.Duration
	Multiplier   float64
	MinThreshold float64
	// TempDir receives the captured WAV file; os.TempDir when empty.
	TempDir string
	// DumpDir keeps a copy of every completed capture when set.
	DumpDir string
	Now     func() time.Time
}

// Outcome is the terminal record of one capture session.
type Outcome struct {
	Status        fsm.State
	PCM           []byte
	AudioPath     string
	Device        string
	BytesCaptured int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Err           error
}

// Release removes the temporary WAV file once the audio has been consumed.
func (o Outcome) Release() error {
	if o.AudioPath == "" {
		return nil
	}
	if err := os.Remove(o.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Controller owns at most one running capture.
type Controller struct {
	open   OpenFunc
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	state  fsm.State
	active *Handle
}

func NewController(open OpenFunc, opts Options, logger *slog.Logger) *Controller {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{open: open, opts: opts, logger: logger, state: fsm.StateIdle}
}

// State returns the controller's capture state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the most recent capture handle, running or finished.
func (c *Controller) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Reset returns a finished capture to Idle once its outcome has been
// consumed. It does nothing while recording.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		c.state, _ = fsm.Transition(c.state, fsm.EventReset)
	}
}

// Start opens the input and begins listening. The capture outlives ctx's
// cancellation but not the configured deadline.
func (c *Controller) Start(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		c.state, _ = fsm.Transition(c.state, fsm.EventReset)
	}
	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		if c.state == fsm.StateRecording {
			return nil, ErrAlreadyRecording
		}
		return nil, err
	}
	if c.open == nil {
		return nil, errors.New("audio input is not configured")
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.MaxDuration)
	recorder, device, err := c.open(runCtx)
	if err != nil {
		cancel()
		c.state = fsm.StateFailed
		return nil, fmt.Errorf("open audio input: %w", err)
	}

	h := &Handle{
		startedAt: c.opts.Now(),
		now:       c.opts.Now,
		done:      make(chan struct{}),
		stopCh:    make(chan struct{}),
		device:    device,
	}
	c.state = next
	c.active = h

	c.logger.Info("capture started", "device", device, "max_duration", c.opts.MaxDuration.String())
	go c.run(runCtx, cancel, h, recorder)
	return h, nil
}

// run is the single capture goroutine; it always closes h.done.
func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, h *Handle, rec Recorder) {
	defer cancel()

	detector := audio.NewDetector(audio.DetectorConfig{
		SampleRate:   audio.SampleRate,
		Calibration:  c.opts.Calibration,
		Silence:      c.opts.Silence,
		Multiplier:   c.opts.Multiplier,
		MinThreshold: c.opts.MinThreshold,
	})

	var (
		pcm   []byte
		total int64
		event fsm.Event
		err   error
	)

listen:
	for {
		select {
		case <-ctx.Done():
			event, err = fsm.EventTimeout, ErrTimedOut
			break listen
		case <-h.stopCh:
			pcm, total = drainPending(rec, detector, pcm, total)
			if detector.Heard() {
				event = fsm.EventSpeechEnd
			} else {
				event, err = fsm.EventTimeout, ErrTimedOut
			}
			break listen
		case chunk, ok := <-rec.Chunks():
			if !ok {
				if ctx.Err() != nil {
					event, err = fsm.EventTimeout, ErrTimedOut
				} else if detector.Heard() {
					event = fsm.EventSpeechEnd
				} else {
					event, err = fsm.EventFail, errors.New("audio stream closed before speech was captured")
				}
				break listen
			}
			total += int64(len(chunk))
			if detector.Phase() == audio.PhaseCalibrating {
				detector.Feed(chunk)
				continue
			}
			pcm = append(pcm, chunk...)
			if detector.Feed(chunk) == audio.PhaseEnded {
				event = fsm.EventSpeechEnd
				break listen
			}
		}
	}
	_ = rec.Stop()
	if counter, ok := rec.(byteCounter); ok {
		total = counter.BytesCaptured()
	}

	out := Outcome{
		Device:        h.device,
		BytesCaptured: total,
		StartedAt:     h.startedAt,
		Err:           err,
	}
	if event == fsm.EventSpeechEnd {
		path, werr := audio.WriteTempWAV(c.opts.TempDir, pcm, audio.SampleRate, audio.Channels)
		if werr != nil {
			event, out.Err = fsm.EventFail, werr
		} else {
			out.PCM = pcm
			out.AudioPath = path
			c.dumpAudio(pcm)
		}
	}
	out.FinishedAt = c.opts.Now()

	c.mu.Lock()
	next, terr := fsm.Transition(c.state, event)
	if terr == nil {
		c.state = next
	}
	out.Status = c.state
	c.mu.Unlock()

	c.logger.Info("capture finished",
		"status", out.Status,
		"device", out.Device,
		"bytes_captured", out.BytesCaptured,
		"duration_ms", out.FinishedAt.Sub(out.StartedAt).Milliseconds(),
		"threshold", detector.Threshold(),
	)
	h.finish(out)
}

// drainPending feeds chunks already buffered when a stop arrives.
func drainPending(rec Recorder, detector *audio.Detector, pcm []byte, total int64) ([]byte, int64) {
	for {
		select {
		case chunk, ok := <-rec.Chunks():
			if !ok {
				return pcm, total
			}
			total += int64(len(chunk))
			if detector.Phase() == audio.PhaseCalibrating {
				detector.Feed(chunk)
				continue
			}
			pcm = append(pcm, chunk...)
			detector.Feed(chunk)
		default:
			return pcm, total
		}
	}
}

func (c *Controller) dumpAudio(pcm []byte) {
	if c.opts.DumpDir == "" {
		return
	}
	if err := os.MkdirAll(c.opts.DumpDir, 0o700); err != nil {
		c.logger.Warn("create audio dump dir failed", "error", err.Error())
		return
	}
	path, err := audio.WriteTempWAV(c.opts.DumpDir, pcm, audio.SampleRate, audio.Channels)
	if err != nil {
		c.logger.Warn("write audio dump failed", "error", err.Error())
		return
	}
	c.logger.Debug("audio dump written", "path", path)
}

// Handle observes and controls one running capture.
type Handle struct {
	startedAt time.Time
	now       func() time.Time
	device    string

	done     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	outcome Outcome
}

// Elapsed is wall time since start, frozen once the capture finishes.
func (h *Handle) Elapsed() time.Duration {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.outcome.FinishedAt.Sub(h.startedAt)
	default:
		return h.now().Sub(h.startedAt)
	}
}

// Done is closed exactly once when the capture reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop ends listening early. Captured speech still completes the session.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Outcome returns the terminal outcome once Done is closed.
func (h *Handle) Outcome() (Outcome, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the capture finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		out, _ := h.Outcome()
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) finish(out Outcome) {
	h.mu.Lock()
	h.outcome = out
	h.mu.Unlock()
	close(h.done)
}
