// Package wserr collects the sentinel errors shared across the bridge, one
// per error kind named in spec.md §7 (configuration, transport, protocol,
// timeout, back-pressure, invalid payload). Callers use errors.Is/errors.As
// against these instead of string matching, replacing the C original's
// ws_client_get_error() string accessor with idiomatic wrapped errors.
package wserr

import "errors"

var (
	// ErrConfiguration marks a rejected channel/engine configuration.
	ErrConfiguration = errors.New("wsbridge: configuration error")

	// ErrTransport marks a socket creation/connect/send/receive failure or
	// an unexpected peer close.
	ErrTransport = errors.New("wsbridge: transport error")

	// ErrProtocol marks a malformed frame (such as an oversized or
	// fragmented control frame) or a handshake that didn't report HTTP
	// 101. A data frame over the size limit is reported as ErrFrameTooLarge.
	ErrProtocol = errors.New("wsbridge: protocol error")

	// ErrFrameTooLarge marks a frame whose payload exceeds the configured
	// maximum frame size.
	ErrFrameTooLarge = errors.New("wsbridge: frame exceeds max frame size")

	// ErrTimeout marks a connect/send/receive/total-duration budget
	// exceeded.
	ErrTimeout = errors.New("wsbridge: timeout")

	// ErrInvalidPayload marks an empty or otherwise invalid request body
	// that fails before any network I/O is attempted.
	ErrInvalidPayload = errors.New("wsbridge: invalid payload")

	// ErrNotConnected is returned by send operations issued while the
	// client is not in the connected state.
	ErrNotConnected = errors.New("wsbridge: not connected")

	// ErrClosed marks an operation attempted after Destroy.
	ErrClosed = errors.New("wsbridge: client closed")
)
