// Package ringbuf implements the bounded single-producer/single-consumer
// byte buffer (spec.md §3/§4.3, C3) shared by the recognizer and
// synthesizer engines to decouple the real-time media callback from the
// blocking-style WS client. It is deliberately mutex-guarded rather than
// lock-free: the recognizer's cross-posted work items (spec.md §9) mean a
// true single-writer/single-reader discipline can't always be guaranteed,
// and the buffer is uncontended in steady state anyway (spec.md §5).
package ringbuf

import "sync"

// Buffer is a fixed-capacity byte ring with a monotonically advancing
// read/write cursor pair and a producer-closed flag. It is NOT a true
// circular buffer (positions never wrap without Reset) — spec.md §3
// defines capacity as a hard ceiling per request/utterance, reset between
// requests, which is simpler and sufficient at the sizes involved (≤16s of
// recognizer audio, ≤2MiB of synthesizer PCM).
type Buffer struct {
	mu            sync.Mutex
	data          []byte
	read          int
	write         int
	producerClosed bool

	// dropped counts bytes discarded by overflowing writes, for
	// diagnostics (see Dropped).
	dropped int
}

// New allocates a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Reset restores the buffer to its just-allocated state: read=write=0,
// producerClosed=false. Per spec.md §3 this must be called between
// requests; Reset does NOT zero dropped (a running diagnostic counter).
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.read = 0
	b.write = 0
	b.producerClosed = false
}

// Write appends up to len(p) bytes, dropping the excess (with the caller
// expected to log a warning) if p would overflow the remaining capacity.
// It returns the number of bytes actually written and the number dropped.
// This is spec.md §7's
// back-pressure overflow case: NOT an error.
func (b *Buffer) Write(p []byte) (written int, dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := len(b.data) - b.write
	if room < 0 {
		room = 0
	}
	n := len(p)
	if n > room {
		dropped = n - room
		n = room
	}
	if n > 0 {
		copy(b.data[b.write:b.write+n], p[:n])
		b.write += n
	}
	b.dropped += dropped
	return n, dropped
}

// Read copies up to len(p) bytes starting at the current read cursor into
// p, advances the cursor, and reports whether the request was fully
// satisfied (exact=true) or only partially (fewer bytes than requested
// were available).
func (b *Buffer) Read(p []byte) (n int, exact bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	avail := b.write - b.read
	n = len(p)
	exact = n <= avail
	if !exact {
		n = avail
	}
	if n > 0 {
		copy(p[:n], b.data[b.read:b.read+n])
		b.read += n
	}
	return n, exact
}

// CloseProducer marks the producer side done; once set it stays set until
// Reset.
func (b *Buffer) CloseProducer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.producerClosed = true
}

// Available returns write-read, the number of unread bytes.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write - b.read
}

// IsDrained reports producerClosed && Available()==0.
func (b *Buffer) IsDrained() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.producerClosed && b.write == b.read
}

// WritePos returns the current write cursor, used by the recognizer's
// streaming-chunk cursor math (spec.md §4.4 step 5) without exposing the
// whole buffer as read/write-able outside the mutex.
func (b *Buffer) WritePos() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write
}

// Dropped returns the cumulative number of bytes dropped to overflow since
// creation; Reset does not clear it (see Reset's doc comment).
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Cap returns the fixed buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Snapshot copies out the bytes from [from, to) without advancing the read
// cursor, used by the recognizer's SEND_AUDIO handler to send the whole
// buffered utterance as one frame while still allowing a subsequent Reset.
func (b *Buffer) Snapshot(from, to int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from < 0 {
		from = 0
	}
	if to > b.write {
		to = b.write
	}
	if to <= from {
		return nil
	}
	out := make([]byte, to-from)
	copy(out, b.data[from:to])
	return out
}
