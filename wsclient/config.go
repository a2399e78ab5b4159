package wsclient

import "time"

// Defaults mirror spec.md §6's "defaults that form part of the contract",
// themselves carried over from original_source/ws_client.h's WS_DEFAULT_*
// macros (expressed there in microseconds).
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReceiveTimeout = 100 * time.Millisecond
	DefaultSendTimeout    = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 1 * time.Second
	DefaultMaxFrameSize   = 1 << 20 // 1 MiB
)

// Config is a snapshot of the parameters a Client is created with
// (spec.md §3: "host/path strings copied"). Zero-value fields of the
// *Timeout/Max*/Retry* kind are replaced by their Default in New.
type Config struct {
	Host string
	Port string
	Path string

	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
	SendTimeout    time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxFrameSize   int64

	// ExtraHeaders are appended to the opening handshake request
	// (spec.md §3's "authentication beyond optional headers" note).
	ExtraHeaders map[string]string

	// SkipAcceptVerification disables the §9 "SHOULD verify
	// Sec-WebSocket-Accept" upgrade. Its zero value (false) means verify,
	// which is the correct default; set true only against a test double
	// that doesn't compute a real accept key.
	SkipAcceptVerification bool
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	return c
}
