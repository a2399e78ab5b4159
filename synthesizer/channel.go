// Package synthesizer implements the synthesizer engine: it accepts one
// speak request at a time, drives a WS TTS service, and feeds the host a
// steady stream of fixed-size PCM frames — padding with silence across
// underruns — emitting exactly one SPEAK-COMPLETE per request. Grounded on
// original_source/plugins/websocket-synth/src/websocket_synth_engine.c for
// state/cause semantics and on square-key-labs-strawgo-ai's
// src/services/cartesia/tts.go for the shape of a streaming-TTS-over-
// websocket Go service (completion-token scanning, frame padding).
package synthesizer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unimrcp-community/ws-speechbridge/hostapi"
	"github.com/unimrcp-community/ws-speechbridge/queue"
	"github.com/unimrcp-community/ws-speechbridge/ringbuf"
	"github.com/unimrcp-community/ws-speechbridge/wsclient"
	"github.com/unimrcp-community/ws-speechbridge/wsproto"
)

const (
	// DefaultAudioBufferSize is ~2MiB of PCM.
	DefaultAudioBufferSize = 2 * 1024 * 1024

	// MaxAudioBufferSize caps the max-audio-size engine config key.
	MaxAudioBufferSize = 50 * 1024 * 1024

	// FrameSize is the fixed PCM chunk size handed to the host per tick
	// (20ms @ 8kHz 16-bit mono).
	FrameSize = 320

	// MaxIdlePolls is the idle-poll threshold: roughly 5s at 10ms/tick.
	MaxIdlePolls = 500

	// MaxSpeakDuration bounds a single speak request end to end.
	MaxSpeakDuration = 300 * time.Second
)

// completionTokens are the substrings a TTS status text frame carries to
// signal the end of an utterance.
var completionTokens = []string{"complete", "end", "done"}

// Channel drives one speak request at a time against a ws client.
type Channel struct {
	mu sync.Mutex

	host hostapi.Channel
	ws   *wsclient.Client
	buf  *ringbuf.Buffer
	work *queue.WorkQueue
	log  *zap.SugaredLogger

	codec *hostapi.CodecDescriptor

	active         bool
	req            hostapi.SpeakRequest
	paused         bool
	receiving      bool
	audioComplete  bool
	anyAudio       bool
	idlePollCount  int
	speakStartTime time.Time
	stopResponse   *hostapi.StopResponse
}

// New constructs a synthesizer Channel with the given ring-buffer
// capacity (spec.md §6 engine config key "max-audio-size", capped at
// MaxAudioBufferSize).
func New(host hostapi.Channel, ws *wsclient.Client, bufferSize int, log *zap.SugaredLogger) *Channel {
	if bufferSize <= 0 {
		bufferSize = DefaultAudioBufferSize
	}
	if bufferSize > MaxAudioBufferSize {
		bufferSize = MaxAudioBufferSize
	}
	return &Channel{
		host: host,
		ws:   ws,
		buf:  ringbuf.New(bufferSize),
		work: queue.New(),
		log:  log,
	}
}

// SetCodec records the negotiated codec; SPEAK is rejected without one.
func (c *Channel) SetCodec(codec hostapi.CodecDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codec = &codec
}

// Close stops the background work queue.
func (c *Channel) Close() {
	c.work.Close()
}

// Speak handles the inbound SPEAK method.
func (c *Channel) Speak(req hostapi.SpeakRequest) {
	c.mu.Lock()
	if c.codec == nil {
		c.mu.Unlock()
		c.host.RespondMethodFailed("no codec descriptor")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.mu.Unlock()
		c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: hostapi.CauseError})
		return
	}

	c.buf.Reset()
	c.audioComplete = false
	c.paused = false
	c.receiving = true
	c.anyAudio = false
	c.idlePollCount = 0
	c.speakStartTime = time.Now()
	c.req = req
	c.active = true
	c.stopResponse = nil
	c.mu.Unlock()

	c.host.RespondInProgress()
	c.work.Post(c.speakStart)
}

// Pause toggles paused=true.
func (c *Channel) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.host.RespondInProgress()
}

// Resume toggles paused=false.
func (c *Channel) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.host.RespondInProgress()
}

// Stop handles the STOP method (and BARGE-IN-OCCURRED, treated
// identically): the media thread flushes on its next tick.
func (c *Channel) Stop() {
	c.mu.Lock()
	c.stopResponse = &hostapi.StopResponse{}
	c.receiving = false
	c.mu.Unlock()
}

// speakStart is the SPEAK_START background-task handler.
func (c *Channel) speakStart() {
	if !c.ws.EnsureConnected() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: hostapi.CauseError})
		return
	}

	c.mu.Lock()
	req := c.req
	c.mu.Unlock()

	payload, err := buildRequestJSON(req)
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: hostapi.CauseError})
		return
	}

	if err := c.ws.SendText(payload); err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: hostapi.CauseError})
		return
	}

	c.work.Post(c.recvPoll)
}

// recvPoll is the RECV_POLL background-task handler.
func (c *Channel) recvPoll() {
	c.mu.Lock()
	if c.stopResponse != nil || !c.receiving {
		c.mu.Unlock()
		return
	}
	if time.Since(c.speakStartTime) > MaxSpeakDuration {
		c.audioComplete = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	frame, ok, err := c.ws.ReceiveFrame()
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.receiving = false
		c.mu.Unlock()
		c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: hostapi.CauseError})
		return
	}

	if !ok {
		c.mu.Lock()
		c.idlePollCount++
		overIdle := c.idlePollCount > MaxIdlePolls
		anyAudio := c.anyAudio
		if overIdle {
			if anyAudio {
				c.audioComplete = true
			}
		}
		c.mu.Unlock()
		if overIdle {
			if !anyAudio {
				c.mu.Lock()
				c.active = false
				c.receiving = false
				c.mu.Unlock()
				c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: hostapi.CauseError})
			}
			return
		}
		c.work.Post(c.recvPoll)
		return
	}

	switch frame.Opcode {
	case wsproto.OpBinary, wsproto.OpContinuation:
		c.mu.Lock()
		c.buf.Write(frame.Payload)
		c.idlePollCount = 0
		c.anyAudio = true
		c.mu.Unlock()
		c.work.Post(c.recvPoll)
	case wsproto.OpText:
		if containsCompletionToken(frame.Payload) {
			c.mu.Lock()
			c.audioComplete = true
			c.mu.Unlock()
			return
		}
		c.work.Post(c.recvPoll)
	case wsproto.OpClose:
		c.mu.Lock()
		c.audioComplete = true
		c.mu.Unlock()
	default:
		c.work.Post(c.recvPoll)
	}
}

// OnAudioFrame is the media-stream callback (host pulls one frame's worth
// of PCM per tick). It MUST NOT block: any event emission happens after
// the lock is released.
func (c *Channel) OnAudioFrame() []byte {
	out, stopResp, completeCause, emitComplete := c.tickLocked()

	if stopResp != nil {
		c.host.RespondStop(*stopResp)
	}
	if emitComplete {
		c.host.EmitSpeakComplete(hostapi.SpeakCompleteEvent{Cause: completeCause})
	}
	return out
}

func (c *Channel) tickLocked() (out []byte, stopResp *hostapi.StopResponse, completeCause hostapi.CompletionCause, emitComplete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopResponse != nil {
		resp := *c.stopResponse
		c.stopResponse = nil
		c.active = false
		c.receiving = false
		c.audioComplete = false
		c.buf.Reset()
		return nil, &resp, 0, false
	}

	if !c.active || c.paused {
		return nil, nil, 0, false
	}

	avail := c.buf.Available()
	out = make([]byte, FrameSize)

	if avail >= FrameSize {
		c.buf.Read(out)
		return out, nil, 0, false
	}

	if c.audioComplete && avail == 0 {
		c.active = false
		return nil, nil, hostapi.CauseNormal, true
	}

	if c.audioComplete && avail > 0 {
		n, _ := c.buf.Read(out[:avail])
		for i := n; i < FrameSize; i++ {
			out[i] = 0
		}
		c.active = false
		return out, nil, hostapi.CauseNormal, true
	}

	// Underrun: emit silence, keep receiving.
	return out, nil, 0, false
}

func containsCompletionToken(payload []byte) bool {
	lower := bytes.ToLower(payload)
	for _, tok := range completionTokens {
		if bytes.Contains(lower, []byte(tok)) {
			return true
		}
	}
	return false
}

// buildRequestJSON builds the outbound TTS request text frame (spec.md
// §6). Values are escaped with wsproto.EscapeJSONString rather than
// encoding/json since the request is a fixed small shape built by hand —
// consistent with the wire codec's string-escaping already implemented
// there.
func buildRequestJSON(req hostapi.SpeakRequest) (string, error) {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	pitch := req.Pitch
	if pitch == 0 {
		pitch = 1.0
	}
	volume := req.Volume
	if volume == 0 {
		volume = 1.0
	}
	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 8000
	}

	return fmt.Sprintf(
		`{"action":"tts","text":"%s","voice":"%s","speed":%.2f,"pitch":%.2f,"volume":%.2f,"sample_rate":%d,"format":"pcm","session_id":"%s"}`,
		wsproto.EscapeJSONString(req.Text),
		wsproto.EscapeJSONString(req.Voice),
		speed, pitch, volume,
		sampleRate,
		wsproto.EscapeJSONString(req.SessionID),
	), nil
}
