package ringbuf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadBasic(t *testing.T) {
	b := New(16)
	n, dropped := b.Write([]byte("hello"))
	require.Equal(t, 5, n)
	require.Zero(t, dropped)
	require.Equal(t, 5, b.Available())

	out := make([]byte, 5)
	got, exact := b.Read(out)
	require.True(t, exact)
	require.Equal(t, 5, got)
	require.Equal(t, "hello", string(out))
	require.Zero(t, b.Available())
}

func TestOverflowDropsNotErrors(t *testing.T) {
	b := New(4)
	n, dropped := b.Write([]byte("hello world"))
	require.Equal(t, 4, n)
	require.Equal(t, 7, dropped)
	require.Equal(t, 7, b.Dropped())
}

func TestResetRestoresZeroState(t *testing.T) {
	b := New(8)
	b.Write([]byte("abcd"))
	b.Read(make([]byte, 4))
	b.CloseProducer()
	require.True(t, b.IsDrained())

	b.Reset()
	require.Zero(t, b.Available())
	require.False(t, b.IsDrained())
}

func TestPartialReadReportsInexact(t *testing.T) {
	b := New(8)
	b.Write([]byte("ab"))
	out := make([]byte, 5)
	n, exact := b.Read(out)
	require.Equal(t, 2, n)
	require.False(t, exact)
}

// TestSumOfReadsInvariant checks invariant 3 from spec.md §8 in this form:
// for a random sequence of SPSC-respecting write/read interleavings, the
// bytes read equal the bytes the writes accepted (offered minus dropped),
// and that total never exceeds capacity, since positions do not wrap
// before Reset.
func TestSumOfReadsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const capacity = 64
	b := New(capacity)

	totalWritten := 0
	totalDropped := 0
	totalRead := 0

	for i := 0; i < 200; i++ {
		if rng.Intn(2) == 0 {
			chunk := make([]byte, rng.Intn(10)+1)
			n, dropped := b.Write(chunk)
			totalWritten += n
			totalDropped += dropped
		} else {
			out := make([]byte, rng.Intn(10)+1)
			n, _ := b.Read(out)
			totalRead += n
		}
	}
	// Drain whatever remains.
	for b.Available() > 0 {
		out := make([]byte, 16)
		n, _ := b.Read(out)
		totalRead += n
	}

	require.Equal(t, totalWritten, totalRead)
	require.LessOrEqual(t, totalWritten, capacity)
	_ = totalDropped
}
