// Package wsclient implements the masked, fragmented-frame-aware
// WebSocket client (spec.md C2) this bridge speaks to its remote speech
// service over: one TCP socket, a client-role opening handshake, and a
// non-blocking-ish receive path, all serialized behind a single mutex.
// Grounded on the teacher's client.WebSocketClient (client/client.go),
// generalized from its channel/recvLoop fan-out design to the spec's
// synchronous ReceiveFrame (the background task here already is the single
// poll loop, so a second goroutine feeding a channel would just add an
// unneeded hop).
package wsclient

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unimrcp-community/ws-speechbridge/wserr"
	"github.com/unimrcp-community/ws-speechbridge/wsproto"
)

// Client owns exactly one TCP socket for its lifetime (spec.md §3's
// ownership rule). Public operations serialize on mu. ReceiveFrame and Poll
// hold it only to snapshot the connection and to record the outcome; the
// socket read itself runs without it.
type Client struct {
	cfg Config
	log *zap.SugaredLogger

	mu           sync.Mutex
	state        State
	conn         net.Conn
	br           *bufio.Reader
	lastActivity time.Time
	retryCount   int
}

// New copies cfg (applying defaults for any zero-value timeout/retry
// field) and returns a Client in the disconnected state. It performs no
// I/O.
func New(cfg Config, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		cfg:   cfg.withDefaults(),
		log:   log,
		state: StateDisconnected,
	}
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Destroy sends a close frame if still connected (best-effort) and closes
// the socket. The Client must not be used after Destroy.
func (c *Client) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnected {
		c.sendCloseLocked(1000, "")
	}
	c.closeSocketLocked()
	c.state = StateDisconnected
	c.checkSocketInvariantLocked()
}

// Connect performs the opening handshake if not already connected.
// Idempotent when already connected (spec.md §4.2).
func (c *Client) Connect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() bool {
	if c.state == StateConnected {
		return true
	}
	c.state = StateConnecting

	host := c.cfg.Host
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, c.cfg.Port)

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		c.log.Warnw("ws connect: dial failed", "addr", addr, "err", err)
		c.transitionToErrorLocked()
		return false
	}

	key, err := wsproto.NewClientKey()
	if err != nil {
		conn.Close()
		c.transitionToErrorLocked()
		return false
	}

	path := c.cfg.Path
	if path == "" {
		path = "/"
	}
	req := wsproto.BuildHandshakeRequest(host, c.cfg.Port, path, key, c.cfg.ExtraHeaders)

	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		c.log.Warnw("ws connect: write handshake failed", "err", err)
		c.transitionToErrorLocked()
		return false
	}

	br := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	if err := wsproto.ReadHandshakeResponse(br, key, !c.cfg.SkipAcceptVerification); err != nil {
		conn.Close()
		c.log.Warnw("ws connect: handshake rejected", "err", err)
		c.transitionToErrorLocked()
		return false
	}

	// Clear the handshake deadline; ReceiveFrame sets the short receive
	// timeout on each call, for polling (spec.md §4.2).
	_ = conn.SetReadDeadline(time.Time{})
	c.conn = conn
	c.br = br
	c.retryCount = 0
	c.lastActivity = time.Now()
	c.state = StateConnected
	c.checkSocketInvariantLocked()
	c.log.Infow("ws connected", "addr", addr, "path", path)
	return true
}

// ConnectWithRetry attempts Connect up to MaxRetries+1 times, sleeping
// RetryDelay between attempts.
func (c *Client) ConnectWithRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectWithRetryLocked()
}

func (c *Client) connectWithRetryLocked() bool {
	maxAttempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.mu.Unlock()
			time.Sleep(c.cfg.RetryDelay)
			c.mu.Lock()
		}
		c.retryCount = attempt
		if c.connectLocked() {
			return true
		}
	}
	return false
}

// EnsureConnected returns true immediately if already connected, else
// attempts ConnectWithRetry.
func (c *Client) EnsureConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnected {
		return true
	}
	return c.connectWithRetryLocked()
}

// Disconnect sends a close frame (if requested and currently connected)
// and closes the socket, transitioning to disconnected.
func (c *Client) Disconnect(sendClose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sendClose && c.state == StateConnected {
		c.sendCloseLocked(1000, "")
	}
	c.closeSocketLocked()
	c.state = StateDisconnected
	c.checkSocketInvariantLocked()
}

func (c *Client) closeSocketLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.br = nil
	}
}

// transitionToErrorLocked moves the client to the error state and closes
// the socket, preserving invariant 4 (spec.md §8: socket != nil iff
// state.hasSocket()) across every error path instead of leaving a stale
// conn behind a state that claims none exists.
func (c *Client) transitionToErrorLocked() {
	c.closeSocketLocked()
	c.state = StateError
	c.checkSocketInvariantLocked()
}

// checkSocketInvariantLocked logs if state and socket presence have
// drifted apart. Called after the connected, error and disconnected
// transitions (not after connecting or closing); a mismatch
// here means a future edit broke invariant 4 rather than a condition
// reachable at runtime today.
func (c *Client) checkSocketInvariantLocked() {
	if c.state.hasSocket() != (c.conn != nil) {
		c.log.Errorw("ws client: socket/state invariant violated", "state", c.state, "hasSocket", c.conn != nil)
	}
}

// SendText sends str as a single masked text frame.
func (c *Client) SendText(str string) error {
	return c.send(wsproto.OpText, []byte(str))
}

// SendBinary sends data as a single masked binary frame.
func (c *Client) SendBinary(data []byte) error {
	return c.send(wsproto.OpBinary, data)
}

// SendPing sends a zero-length ping frame.
func (c *Client) SendPing() error {
	return c.send(wsproto.OpPing, nil)
}

func (c *Client) send(opcode wsproto.Opcode, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(opcode, payload)
}

func (c *Client) sendLocked(opcode wsproto.Opcode, payload []byte) error {
	if c.state != StateConnected {
		return fmt.Errorf("ws send %s: %w", opcode, wserr.ErrNotConnected)
	}
	if int64(len(payload)) > c.cfg.MaxFrameSize {
		return fmt.Errorf("ws send %s: %w: %d > %d", opcode, wserr.ErrFrameTooLarge, len(payload), c.cfg.MaxFrameSize)
	}
	key := wsproto.NewMaskKey()
	hdr := wsproto.BuildClientFrameHeader(opcode, len(payload), key)
	masked := append([]byte(nil), payload...)
	wsproto.ApplyMask(masked, key)

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout))
	if _, err := c.conn.Write(hdr); err != nil {
		c.transitionToErrorLocked()
		return fmt.Errorf("ws send %s header: %w: %w", opcode, wserr.ErrTransport, err)
	}
	if len(masked) > 0 {
		if _, err := c.conn.Write(masked); err != nil {
			c.transitionToErrorLocked()
			return fmt.Errorf("ws send %s payload: %w: %w", opcode, wserr.ErrTransport, err)
		}
	}
	c.lastActivity = time.Now()
	return nil
}

// SendClose builds and sends a close frame: two big-endian bytes for code
// (omitted if code==0) followed by reason truncated to fit the
// control-frame payload budget (spec.md §4.2).
func (c *Client) SendClose(code uint16, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCloseLocked(code, reason)
}

func (c *Client) sendCloseLocked(code uint16, reason string) error {
	var payload []byte
	if code != 0 {
		payload = []byte{byte(code >> 8), byte(code)}
		max := wsproto.MaxCloseReasonLen
		if len(reason) > max {
			reason = reason[:max]
		}
		payload = append(payload, reason...)
	}
	return c.sendLocked(wsproto.OpClose, payload)
}

// Poll reports whether the socket has data ready to read within timeout,
// without consuming it (spec.md §4.2: "socket-level readiness check; does
// not read"). Because the client already reads through a bufio.Reader, a
// genuine non-consuming peek is just br.Peek(1).
func (c *Client) Poll(timeout time.Duration) bool {
	c.mu.Lock()
	conn := c.conn
	br := c.br
	state := c.state
	c.mu.Unlock()
	if state != StateConnected || conn == nil || br == nil {
		return false
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	_, err := br.Peek(1)
	return err == nil
}

// ReceiveFrame reads at most one frame. If no header bytes are available
// within the client's configured receive timeout, it returns ok=false with
// no state change (spec.md §4.2: "a timeout on the header read returns
// false with no state change"). A timeout or error mid-frame is fatal and
// transitions the client to the error state ("a timeout mid-frame is an
// error because the frame is unrecoverable").
//
// On a ping, ReceiveFrame sends a masked pong with the same payload before
// returning the ping frame to the caller. The mutex is not held at that
// point, so the pong goes through the ordinary locked send path with no
// self-deadlock (spec.md §4.2/§9; unlike the C reference, whose pong is 2
// bytes and unmasked —
// spec.md §9's Open Question explicitly says not to replicate that bug).
// On a close frame, the client transitions to closing.
func (c *Client) ReceiveFrame() (wsproto.Frame, bool, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return wsproto.Frame{}, false, fmt.Errorf("ws receive: %w", wserr.ErrNotConnected)
	}
	conn := c.conn
	br := c.br
	maxFrameSize := c.cfg.MaxFrameSize
	recvTimeout := c.cfg.ReceiveTimeout
	c.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(recvTimeout))
	frame, err := wsproto.ReadServerFrame(br, maxFrameSize)
	if err != nil {
		// ReadServerFrame returns the header-read error bare (unwrapped)
		// but wraps every later read (extended length, mask key,
		// payload). That lets a plain net.Error type assertion tell
		// apart the two timeout cases the spec distinguishes: a timeout
		// on the very first 2 bytes (benign, "nothing new yet") from a
		// timeout after a frame has already started (fatal, the frame
		// can never be completed).
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return wsproto.Frame{}, false, nil
		}
		c.mu.Lock()
		c.transitionToErrorLocked()
		c.mu.Unlock()
		return wsproto.Frame{}, false, fmt.Errorf("ws receive: %w: %w", wserr.ErrTransport, err)
	}

	c.mu.Lock()
	c.lastActivity = time.Now()
	switch frame.Opcode {
	case wsproto.OpClose:
		c.state = StateClosing
	}
	c.mu.Unlock()

	if frame.Opcode == wsproto.OpPing {
		if err := c.send(wsproto.OpPong, frame.Payload); err != nil {
			c.log.Warnw("ws: pong reply failed", "err", err)
		}
	}

	return frame, true, nil
}
