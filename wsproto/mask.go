package wsproto

import (
	"encoding/binary"
	"sync/atomic"
	"time"
)

// maskCounter is the per-process monotonic state mixed into every mask key.
// spec.md §4.1 allows a coarse randomness source (it only requires the key
// to vary across frames from the same connection) and §9 explicitly flags
// the reference's 4-bytes-of-microsecond-clock approach as weak, suggesting
// "a per-connection 64-bit state incremented per frame and mixed" instead.
// We take that upgrade: each call mixes a process-wide atomic counter with
// the current time, so two frames never collide even if issued within the
// same microsecond on two different connections.
var maskCounter uint64

// NewMaskKey derives a 4-byte client frame mask key. It is not
// cryptographically strong — the bridge's threat model (spec.md §9) does
// not require that. Keys issued within the same microsecond always differ
// (the counter term does); keys issued at different times differ in
// practice but are not guaranteed to, since only 4 bytes are kept.
func NewMaskKey() MaskKey {
	n := atomic.AddUint64(&maskCounter, 1)
	mixed := uint64(time.Now().UnixMicro()) ^ (n * 0x9E3779B97F4A7C15)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], mixed)

	var key MaskKey
	copy(key[:], buf[:MaskKeyLen])
	return key
}
