package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/consult/internal/fsm"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	chunks   chan []byte
	stopOnce sync.Once
	stops    atomic.Int32
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{chunks: make(chan []byte, 512)}
}

func (f *fakeRecorder) Chunks() <-chan []byte { return f.chunks }

func (f *fakeRecorder) Stop() error {
	f.stops.Add(1)
	return nil
}

func (f *fakeRecorder) closeStream() {
	f.stopOnce.Do(func() { close(f.chunks) })
}

func chunk(level int16) []byte {
	out := make([]byte, 640)
	for i := 0; i < 320; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(level))
	}
	return out
}

func openWith(rec Recorder) OpenFunc {
	return func(context.Context) (Recorder, string, error) {
		return rec, "test mic", nil
	}
}

func testOptions(t *testing.T) Options {
	return Options{
		MaxDuration:  5 * time.Second,
		Silence:      100 * time.Millisecond,
		MinThreshold: 500,
		TempDir:      t.TempDir(),
	}
}

func waitOutcome(t *testing.T, h *Handle) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestCaptureCompletesAtEndOfSpeech(t *testing.T) {
	rec := newFakeRecorder()
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, fsm.StateRecording, ctrl.State())

	for i := 0; i < 10; i++ {
		rec.chunks <- chunk(4000)
	}
	for i := 0; i < 5; i++ {
		rec.chunks <- chunk(0)
	}

	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateCompleted, out.Status)
	require.NoError(t, out.Err)
	require.Equal(t, "test mic", out.Device)
	require.Len(t, out.PCM, 15*640)
	require.Equal(t, int64(15*640), out.BytesCaptured)
	require.Equal(t, fsm.StateCompleted, ctrl.State())
	require.EqualValues(t, 1, rec.stops.Load())

	data, err := os.ReadFile(out.AudioPath)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[:4]))

	require.NoError(t, out.Release())
	_, err = os.Stat(out.AudioPath)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, out.Release())
}

func TestCaptureExcludesCalibrationAudio(t *testing.T) {
	rec := newFakeRecorder()
	opts := testOptions(t)
	opts.Calibration = 100 * time.Millisecond
	ctrl := NewController(openWith(rec), opts, nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec.chunks <- chunk(100)
	}
	for i := 0; i < 3; i++ {
		rec.chunks <- chunk(4000)
	}
	for i := 0; i < 5; i++ {
		rec.chunks <- chunk(0)
	}

	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateCompleted, out.Status)
	require.Len(t, out.PCM, 8*640)
	require.Equal(t, int64(13*640), out.BytesCaptured)
	require.NoError(t, out.Release())
}

func TestCaptureTimesOutWithoutBuffer(t *testing.T) {
	rec := newFakeRecorder()
	opts := testOptions(t)
	opts.MaxDuration = 50 * time.Millisecond
	ctrl := NewController(openWith(rec), opts, nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	rec.chunks <- chunk(4000)

	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateTimedOut, out.Status)
	require.ErrorIs(t, out.Err, ErrTimedOut)
	require.Empty(t, out.PCM)
	require.Empty(t, out.AudioPath)
	require.Equal(t, fsm.StateTimedOut, ctrl.State())

	next := newFakeRecorder()
	ctrl.open = openWith(next)
	h2, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, fsm.StateRecording, ctrl.State())
	h2.Stop()
	out2 := waitOutcome(t, h2)
	require.Equal(t, fsm.StateTimedOut, out2.Status)
}

func TestCaptureStartWhileRecordingFails(t *testing.T) {
	rec := newFakeRecorder()
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)

	_, err = ctrl.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRecording)
	require.Same(t, h, ctrl.Active())
	require.Equal(t, fsm.StateRecording, ctrl.State())

	rec.chunks <- chunk(4000)
	h.Stop()
	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateCompleted, out.Status)
	require.NoError(t, out.Release())
}

func TestCaptureManualStopWithoutSpeechTimesOut(t *testing.T) {
	rec := newFakeRecorder()
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	rec.chunks <- chunk(10)
	h.Stop()
	h.Stop()

	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateTimedOut, out.Status)
	require.ErrorIs(t, out.Err, ErrTimedOut)
}

func TestCaptureSurvivesCallerCancellation(t *testing.T) {
	rec := newFakeRecorder()
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := ctrl.Start(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case <-h.Done():
		t.Fatal("capture ended with caller context")
	case <-time.After(50 * time.Millisecond):
	}

	rec.chunks <- chunk(4000)
	rec.closeStream()
	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateCompleted, out.Status)
	require.NoError(t, out.Release())
}

func TestCaptureStreamClosedBeforeSpeechFails(t *testing.T) {
	rec := newFakeRecorder()
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	rec.closeStream()

	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateFailed, out.Status)
	require.Error(t, out.Err)
	require.Contains(t, out.Err.Error(), "audio stream closed")
}

func TestCaptureOpenFailureIsRecoverable(t *testing.T) {
	calls := 0
	rec := newFakeRecorder()
	ctrl := NewController(func(context.Context) (Recorder, string, error) {
		calls++
		if calls == 1 {
			return nil, "", errors.New("device busy")
		}
		return rec, "test mic", nil
	}, testOptions(t), nil)

	_, err := ctrl.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "device busy")
	require.Equal(t, fsm.StateFailed, ctrl.State())

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	h.Stop()
	waitOutcome(t, h)
}

func TestCaptureMissingOpenFunc(t *testing.T) {
	ctrl := NewController(nil, Options{}, nil)
	_, err := ctrl.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, fsm.StateIdle, ctrl.State())
}

func TestHandleElapsedFreezesAtFinish(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	rec := newFakeRecorder()
	opts := testOptions(t)
	opts.Now = clock
	ctrl := NewController(openWith(rec), opts, nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	advance(3 * time.Second)
	require.Equal(t, 3*time.Second, h.Elapsed())

	_, finished := h.Outcome()
	require.False(t, finished)

	h.Stop()
	waitOutcome(t, h)
	advance(10 * time.Second)
	require.Equal(t, 3*time.Second, h.Elapsed())
}

func TestCaptureDumpDirKeepsCopy(t *testing.T) {
	rec := newFakeRecorder()
	opts := testOptions(t)
	opts.DumpDir = t.TempDir()
	ctrl := NewController(openWith(rec), opts, nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	rec.chunks <- chunk(4000)
	h.Stop()
	out := waitOutcome(t, h)
	require.NoError(t, out.Release())

	entries, err := os.ReadDir(opts.DumpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

type countingRecorder struct {
	*fakeRecorder
	delivered int64
}

func (c countingRecorder) BytesCaptured() int64 { return c.delivered }

func TestCaptureReportsRecorderByteCount(t *testing.T) {
	rec := countingRecorder{fakeRecorder: newFakeRecorder(), delivered: 99 * 640}
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		rec.chunks <- chunk(4000)
	}
	for i := 0; i < 5; i++ {
		rec.chunks <- chunk(0)
	}

	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateCompleted, out.Status)
	require.Len(t, out.PCM, 8*640)
	require.Equal(t, int64(99*640), out.BytesCaptured)
	require.NoError(t, out.Release())
}

func TestResetReturnsFinishedCaptureToIdle(t *testing.T) {
	rec := newFakeRecorder()
	ctrl := NewController(openWith(rec), testOptions(t), nil)

	ctrl.Reset()
	require.Equal(t, fsm.StateIdle, ctrl.State())

	h, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	ctrl.Reset()
	require.Equal(t, fsm.StateRecording, ctrl.State())

	h.Stop()
	out := waitOutcome(t, h)
	require.Equal(t, fsm.StateTimedOut, out.Status)
	require.Equal(t, fsm.StateTimedOut, ctrl.State())

	ctrl.Reset()
	require.Equal(t, fsm.StateIdle, ctrl.State())
}
