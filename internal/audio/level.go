package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// RMS returns the root-mean-square energy of 16-bit little-endian PCM.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Duration reports how much audio a mono s16 buffer holds at sampleRate.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Phase is the detector's position in one listen cycle.
type Phase int

const (
	PhaseCalibrating Phase = iota
	PhaseWaiting
	PhaseSpeaking
	PhaseEnded
)

// DetectorConfig tunes ambient calibration and end-of-speech detection.
type DetectorConfig struct {
	SampleRate  int
	Calibration time.Duration
	Silence     time.Duration
	// Multiplier scales the calibrated ambient level into the speech threshold.
	Multiplier float64
	// MinThreshold keeps near-silent rooms from producing a zero threshold.
	MinThreshold float64
}

// Detector calibrates against ambient noise, then tracks one phrase: it
// waits for energy above threshold and ends after a trailing silence window.
type Detector struct {
	cfg DetectorConfig

	phase     Phase
	threshold float64

	calibrated time.Duration
	ambientSum float64
	ambientN   int

	silence time.Duration
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = SampleRate
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1.5
	}
	d := &Detector{cfg: cfg}
	if cfg.Calibration <= 0 {
		d.phase = PhaseWaiting
		d.threshold = cfg.MinThreshold
	}
	return d
}

// Phase returns the current detector phase.
func (d *Detector) Phase() Phase {
	return d.phase
}

// Threshold returns the energy level treated as speech.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Heard reports whether any speech has been detected.
func (d *Detector) Heard() bool {
	return d.phase == PhaseSpeaking || d.phase == PhaseEnded
}

// Feed consumes one PCM chunk and returns the phase after it. Chunks fed
// while calibrating are not part of the phrase.
func (d *Detector) Feed(chunk []byte) Phase {
	dur := Duration(chunk, d.cfg.SampleRate)
	level := RMS(chunk)

	switch d.phase {
	case PhaseCalibrating:
		d.ambientSum += level
		d.ambientN++
		d.calibrated += dur
		if d.calibrated >= d.cfg.Calibration {
			ambient := d.ambientSum / float64(d.ambientN)
			d.threshold = math.Max(ambient*d.cfg.Multiplier, d.cfg.MinThreshold)
			d.phase = PhaseWaiting
		}
	case PhaseWaiting:
		if level > d.threshold {
			d.phase = PhaseSpeaking
			d.silence = 0
		}
	case PhaseSpeaking:
		if level > d.threshold {
			d.silence = 0
			break
		}
		d.silence += dur
		if d.silence >= d.cfg.Silence {
			d.phase = PhaseEnded
		}
	}
	return d.phase
}
