package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate shared with the speech backends.
	SampleRate = 16000
	// Channels is fixed to mono capture.
	Channels = 1

	// FrameBytes is one 20 ms frame of s16 mono at SampleRate.
	FrameBytes = 640
)

// Stream records one Pulse source and hands out FrameBytes-sized frames.
// It keeps no copy of the audio; the reader owns every frame it receives.
type Stream struct {
	client *pulse.Client
	record *pulse.RecordStream

	frames chan []byte
	quit   chan struct{}

	mu      sync.Mutex
	partial []byte
	closed  bool
	writers sync.WaitGroup

	received atomic.Int64
}

func newStream() *Stream {
	return &Stream{
		frames: make(chan []byte, 128),
		quit:   make(chan struct{}),
	}
}

// OpenStream starts a 16 kHz mono s16 record stream on dev. Cancelling ctx
// stops it.
func OpenStream(ctx context.Context, dev Device) (*Stream, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(dev.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", dev.ID, err)
	}

	s := newStream()
	s.client = client
	record, err := client.NewRecord(
		pulse.NewWriter(frameWriter(s.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(FrameBytes),
		pulse.RecordMediaName("consult symptom intake"),
	)
	if err != nil {
		_ = s.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	s.record = record
	record.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.quit:
		}
	}()
	return s, nil
}

// Chunks yields recorded frames until Stop. The final frame may be short.
func (s *Stream) Chunks() <-chan []byte {
	return s.frames
}

// BytesCaptured counts every byte Pulse delivered, calibration included.
func (s *Stream) BytesCaptured() int64 {
	return s.received.Load()
}

// Stop ends recording, flushes the partial frame, and closes Chunks. It is
// safe to call more than once.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.quit)
	s.mu.Unlock()

	if s.record != nil {
		s.record.Stop()
		s.record.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	s.writers.Wait()

	s.mu.Lock()
	tail := s.partial
	s.partial = nil
	s.mu.Unlock()
	if len(tail) > 0 {
		select {
		case s.frames <- tail:
		default:
		}
	}
	close(s.frames)
	return nil
}

// write is the Pulse callback. It slices buf into frames and blocks until
// each is taken or the stream stops.
func (s *Stream) write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait never races a late callback.
	s.writers.Add(1)
	s.partial = append(s.partial, buf...)
	var ready [][]byte
	for len(s.partial) >= FrameBytes {
		frame := make([]byte, FrameBytes)
		copy(frame, s.partial)
		s.partial = s.partial[FrameBytes:]
		ready = append(ready, frame)
	}
	s.mu.Unlock()
	defer s.writers.Done()

	s.received.Add(int64(len(buf)))
	for _, frame := range ready {
		select {
		case <-s.quit:
			return 0, io.EOF
		case s.frames <- frame:
		}
	}
	return len(buf), nil
}

type frameWriter func([]byte) (int, error)

func (f frameWriter) Write(b []byte) (int, error) { return f(b) }
