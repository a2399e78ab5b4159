package vad

import (
	"encoding/binary"
	"math"
	"time"
)

// DefaultNoInputTimeout and DefaultSpeechCompleteTimeout are used when
// Configure is never called or called with a zero duration.
const (
	DefaultNoInputTimeout        = 5 * time.Second
	DefaultSpeechCompleteTimeout = 800 * time.Millisecond
)

// EnergyDetector is a reference Detector that classifies 16-bit signed
// little-endian PCM frames by RMS energy against a fixed threshold. It is
// a stand-in for the genuinely out-of-scope external VAD module (spec.md
// §1); no pack example vendors a VAD algorithm itself (square-key-labs
// only wraps one), so there is nothing to wire a third-party dependency to
// here — this is plain math on a byte slice.
type EnergyDetector struct {
	Threshold float64 // RMS threshold in [0, 32768); default 500.

	noInputTimeout        time.Duration
	speechCompleteTimeout time.Duration

	firstFrameAt time.Time
	lastActiveAt time.Time
	speaking     bool
	noInputFired bool
}

// NewEnergyDetector returns a Detector with a sensible default threshold.
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{
		Threshold:             500,
		noInputTimeout:        DefaultNoInputTimeout,
		speechCompleteTimeout: DefaultSpeechCompleteTimeout,
	}
}

func (d *EnergyDetector) Configure(noInputTimeout, speechCompleteTimeout time.Duration) {
	if noInputTimeout <= 0 {
		noInputTimeout = DefaultNoInputTimeout
	}
	if speechCompleteTimeout <= 0 {
		speechCompleteTimeout = DefaultSpeechCompleteTimeout
	}
	d.noInputTimeout = noInputTimeout
	d.speechCompleteTimeout = speechCompleteTimeout
}

func (d *EnergyDetector) Reset() {
	d.firstFrameAt = time.Time{}
	d.lastActiveAt = time.Time{}
	d.speaking = false
	d.noInputFired = false
}

func (d *EnergyDetector) ProcessFrame(pcm []byte) Event {
	now := time.Now()
	if d.firstFrameAt.IsZero() {
		d.firstFrameAt = now
	}

	active := rms16(pcm) > d.Threshold

	if active {
		wasSpeaking := d.speaking
		d.speaking = true
		d.lastActiveAt = now
		if !wasSpeaking {
			return EventActivity
		}
		return EventNone
	}

	if d.speaking {
		if !d.lastActiveAt.IsZero() && now.Sub(d.lastActiveAt) >= d.speechCompleteTimeout {
			d.speaking = false
			return EventInactivity
		}
		return EventNone
	}

	if !d.noInputFired && d.noInputTimeout > 0 && now.Sub(d.firstFrameAt) >= d.noInputTimeout {
		d.noInputFired = true
		return EventNoInput
	}
	return EventNone
}

// rms16 computes the root-mean-square level of a 16-bit signed
// little-endian PCM buffer. An odd trailing byte, if any, is ignored.
func rms16(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sumSq float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(s)
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(n))
}
