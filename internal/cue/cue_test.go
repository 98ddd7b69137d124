package cue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTonesPresentForEveryKind(t *testing.T) {
	for _, kind := range []Kind{Start, Stop, Complete, Fail} {
		require.NotEmpty(t, tones[kind], kind.String())
	}
	require.Equal(t, "unknown", Kind(0).String())
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, samplesForDuration(100*time.Millisecond))
	require.Zero(t, got[0])
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestSynthesizeInsertsGaps(t *testing.T) {
	one := synthesize([]toneSpec{{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.2}})
	two := synthesize([]toneSpec{
		{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.2},
		{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.2},
	})
	require.Len(t, two, 2*len(one)+samplesForDuration(22*time.Millisecond))
	require.Nil(t, synthesize(nil))
}

func TestSamplesForDuration(t *testing.T) {
	require.Equal(t, 0, samplesForDuration(0))
	require.Equal(t, 400, samplesForDuration(25*time.Millisecond))
}

func TestEmitRespectsCancelledContext(t *testing.T) {
	p := NewPulse(nil)
	p.play = func(context.Context, []int16) error {
		t.Fatal("play must not run after cancel")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.emit(ctx, Start)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestPlayRunsInBackground(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []int
		done = make(chan struct{}, 2)
	)
	p := NewPulse(nil)
	p.play = func(_ context.Context, samples []int16) error {
		mu.Lock()
		got = append(got, len(samples))
		mu.Unlock()
		done <- struct{}{}
		return errors.New("no sink")
	}

	p.Play(Start)
	p.Play(Fail)
	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []int{len(tones[Start]), len(tones[Fail])}, got)
}
