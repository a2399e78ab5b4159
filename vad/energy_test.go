package vad

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func toneFrame(amplitude int16, n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

func TestEnergyDetectorActivityThenInactivity(t *testing.T) {
	d := NewEnergyDetector()
	d.Configure(0, 20*time.Millisecond)

	silence := toneFrame(0, 160)
	loud := toneFrame(10000, 160)

	require.Equal(t, EventNone, d.ProcessFrame(silence))
	require.Equal(t, EventActivity, d.ProcessFrame(loud))
	require.Equal(t, EventNone, d.ProcessFrame(loud))

	require.Equal(t, EventNone, d.ProcessFrame(silence))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, EventInactivity, d.ProcessFrame(silence))
}

func TestEnergyDetectorNoInput(t *testing.T) {
	d := NewEnergyDetector()
	d.Configure(10*time.Millisecond, 0)

	silence := toneFrame(0, 160)
	require.Equal(t, EventNone, d.ProcessFrame(silence))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, EventNoInput, d.ProcessFrame(silence))
	// Fires only once per request.
	require.Equal(t, EventNone, d.ProcessFrame(silence))
}

func TestEnergyDetectorResetClearsState(t *testing.T) {
	d := NewEnergyDetector()
	d.Configure(10*time.Millisecond, 5*time.Millisecond)
	d.ProcessFrame(toneFrame(10000, 160))
	d.Reset()
	require.False(t, d.speaking)
	require.True(t, d.firstFrameAt.IsZero())
}
