// Package recognizer implements the recognizer engine (spec.md §4.4, C4):
// it consumes audio handed to it by the media-stream context, streams it
// to a WS ASR service, and reports back exactly one RECOGNITION-COMPLETE
// per recognize request. Grounded on
// original_source/plugins/websocket-recog/src/websocket_recog_engine.c for
// state/cause semantics and on the teacher's mutex-guarded channel-state
// idiom (internal/session).
package recognizer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unimrcp-community/ws-speechbridge/hostapi"
	"github.com/unimrcp-community/ws-speechbridge/queue"
	"github.com/unimrcp-community/ws-speechbridge/ringbuf"
	"github.com/unimrcp-community/ws-speechbridge/vad"
	"github.com/unimrcp-community/ws-speechbridge/wsclient"
	"github.com/unimrcp-community/ws-speechbridge/wsproto"
)

const (
	// AudioBufferSize is the default recognizer ring-buffer capacity:
	// roughly 16s of 16kHz 16-bit mono PCM.
	AudioBufferSize = 512 * 1024

	// StreamChunkSize is 200ms of 8kHz 16-bit mono PCM.
	StreamChunkSize = 3200

	// MaxRecognizeDuration bounds a single recognize request end to end.
	MaxRecognizeDuration = 60 * time.Second
)

// Channel drives one recognize request at a time against a ws client.
type Channel struct {
	mu sync.Mutex

	host  hostapi.Channel
	ws    *wsclient.Client
	buf   *ringbuf.Buffer
	det   vad.Detector
	work  *queue.WorkQueue
	log   *zap.SugaredLogger
	codec *hostapi.CodecDescriptor

	streaming bool

	active          bool
	req             hostapi.RecognizeRequest
	stopResponse    *hostapi.StopResponse
	timersStarted   bool
	speechStarted   bool
	waitingResult   bool
	streamPos       int
	recognizeStart  time.Time
}

// New constructs a recognizer Channel. streaming selects buffered vs
// streaming outbound mode (spec.md §6 engine config key "streaming").
func New(host hostapi.Channel, ws *wsclient.Client, det vad.Detector, streaming bool, log *zap.SugaredLogger) *Channel {
	return &Channel{
		host:      host,
		ws:        ws,
		buf:       ringbuf.New(AudioBufferSize),
		det:       det,
		work:      queue.New(),
		log:       log,
		streaming: streaming,
	}
}

// SetCodec records the negotiated codec; RECOGNIZE is rejected without one.
func (c *Channel) SetCodec(codec hostapi.CodecDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codec = &codec
}

// Close stops the background work queue. Must be called when the host
// destroys the owning MRCP channel.
func (c *Channel) Close() {
	c.work.Close()
}

// Recognize handles the inbound RECOGNIZE method (spec.md §4.4 ¶1).
func (c *Channel) Recognize(req hostapi.RecognizeRequest) {
	c.mu.Lock()
	if c.codec == nil {
		c.mu.Unlock()
		c.host.RespondMethodFailed("no codec descriptor")
		return
	}
	c.mu.Unlock()

	if !c.ws.EnsureConnected() {
		c.host.RespondMethodFailed("transport unavailable")
		return
	}

	c.mu.Lock()
	c.buf.Reset()
	c.streamPos = 0
	c.recognizeStart = time.Now()
	c.req = req
	c.active = true
	c.timersStarted = req.StartInputTimers
	c.speechStarted = false
	c.waitingResult = false
	c.stopResponse = nil
	c.det.Reset()
	c.det.Configure(req.NoInputTimeout, req.SpeechCompleteTimeout)
	c.mu.Unlock()

	c.host.RespondInProgress()
}

// StartInputTimers handles the START-INPUT-TIMERS method.
func (c *Channel) StartInputTimers() {
	c.mu.Lock()
	c.timersStarted = true
	c.mu.Unlock()
	c.host.RespondInProgress()
}

// Stop handles the STOP method: the response is flushed on the channel's
// next audio-frame tick (spec.md §4.4 "On stop request").
func (c *Channel) Stop() {
	c.mu.Lock()
	c.stopResponse = &hostapi.StopResponse{}
	c.mu.Unlock()
}

// OnAudioFrame is the media-stream callback (spec.md §4.4 "On audio-frame
// callback"). It MUST NOT block: all network I/O is handed off to the
// background work queue.
func (c *Channel) OnAudioFrame(frame hostapi.AudioFrame) {
	c.mu.Lock()

	if c.stopResponse != nil {
		resp := *c.stopResponse
		c.stopResponse = nil
		c.active = false
		c.mu.Unlock()
		c.host.RespondStop(resp)
		return
	}

	if !c.active {
		c.mu.Unlock()
		return
	}

	// VAD runs on every callback, audio or not (original_source's
	// mpf_activity_detector_process is gated only on the connection being
	// up, not on the frame's media type) — a comfort-noise/marker frame
	// must still be able to trip INACTIVITY/NOINPUT.
	ev := c.det.ProcessFrame(frame.PCM)
	switch ev {
	case vad.EventActivity:
		c.speechStarted = true
		c.mu.Unlock()
		c.host.EmitStartOfInput()
		c.mu.Lock()
	case vad.EventInactivity:
		if c.buf.Available() > 0 {
			c.postSendAudioLocked()
		} else {
			c.completeLocked(hostapi.CauseSuccess, nil)
		}
	case vad.EventNoInput:
		if c.timersStarted {
			c.completeLocked(hostapi.CauseNoInputTimeout, nil)
		}
	}

	if frame.IsAudio {
		c.buf.Write(frame.PCM)

		if c.streaming && c.speechStarted && c.active {
			wpos := c.buf.WritePos()
			if wpos-c.streamPos >= StreamChunkSize {
				chunk := c.buf.Snapshot(c.streamPos, c.streamPos+StreamChunkSize)
				c.streamPos += StreamChunkSize
				c.mu.Unlock()
				c.postStreamAudio(chunk)
				c.mu.Lock()
			}
		}
	}

	c.mu.Unlock()
}

// postSendAudioLocked must be called with mu held; it releases and
// reacquires it to hand work to the queue without blocking the caller.
func (c *Channel) postSendAudioLocked() {
	c.mu.Unlock()
	c.work.Post(c.sendAudio)
	c.mu.Lock()
}

func (c *Channel) postStreamAudio(chunk []byte) {
	c.work.Post(func() { c.streamAudio(chunk) })
}

// sendAudio is the SEND_AUDIO background-task handler. In buffered mode it
// sends the whole utterance; in streaming mode every byte up to streamPos
// has already gone out via STREAM_AUDIO frames, so only the unsent tail
// [streamPos, wpos) is flushed here — re-sending from 0 would duplicate
// audio the ASR already received.
func (c *Channel) sendAudio() {
	c.mu.Lock()
	wpos := c.buf.WritePos()
	from := 0
	if c.streaming {
		from = c.streamPos
	}
	if wpos <= from || !c.ws.EnsureConnected() {
		c.buf.Reset()
		c.streamPos = 0
		c.mu.Unlock()
		return
	}
	payload := c.buf.Snapshot(from, wpos)
	c.mu.Unlock()

	if err := c.ws.SendBinary(payload); err != nil {
		c.mu.Lock()
		c.completeLocked(hostapi.CauseError, nil)
		c.buf.Reset()
		c.streamPos = 0
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.waitingResult = true
	c.buf.Reset()
	c.streamPos = 0
	c.mu.Unlock()

	c.work.Post(c.recvResult)
}

// streamAudio is the STREAM_AUDIO background-task handler. Send failures
// are ignored here: the server-side timeout or the polling loop catches
// a genuinely dead connection (spec.md §4.4).
func (c *Channel) streamAudio(chunk []byte) {
	if !c.ws.EnsureConnected() {
		return
	}
	_ = c.ws.SendBinary(chunk)
}

// recvResult is the RECV_RESULT background-task handler (spec.md §4.4).
func (c *Channel) recvResult() {
	c.mu.Lock()
	if !c.waitingResult || !c.active {
		c.mu.Unlock()
		return
	}
	if time.Since(c.recognizeStart) > MaxRecognizeDuration {
		c.completeLocked(hostapi.CauseError, nil)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	frame, ok, err := c.ws.ReceiveFrame()
	if err != nil {
		c.mu.Lock()
		c.completeLocked(hostapi.CauseError, nil)
		c.mu.Unlock()
		return
	}
	if !ok {
		c.work.Post(c.recvResult)
		return
	}

	switch {
	case frame.Opcode == wsproto.OpText && len(frame.Payload) > 0:
		c.mu.Lock()
		c.completeLocked(hostapi.CauseSuccess, frame.Payload)
		c.mu.Unlock()
	case frame.Opcode == wsproto.OpClose:
		c.mu.Lock()
		c.completeLocked(hostapi.CauseError, nil)
		c.mu.Unlock()
	default:
		c.work.Post(c.recvResult)
	}
}

// completeLocked must be called with mu held; it emits
// RECOGNITION-COMPLETE and clears per-request state.
func (c *Channel) completeLocked(cause hostapi.CompletionCause, body []byte) {
	c.active = false
	c.waitingResult = false
	c.mu.Unlock()
	c.host.EmitRecognitionComplete(hostapi.RecognitionCompleteEvent{
		Cause:       cause,
		Body:        body,
		ContentType: "application/x-nlsml",
	})
	c.mu.Lock()
}
