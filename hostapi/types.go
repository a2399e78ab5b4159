// Package hostapi declares the contract this bridge expects from its host
// media-control framework collaborator (spec.md §1: "out of scope ... only
// their interfaces are specified in §6"). Names follow the MRCP
// RECOGNIZE/SPEAK/STOP verbs and START-OF-INPUT/RECOGNITION-COMPLETE/
// SPEAK-COMPLETE events used by original_source's
// websocket_recog_engine.c/websocket_synth_engine.c, translated from the
// UniMRCP/APR C API into plain Go interfaces.
package hostapi

import "time"

// Status is a coarse method-invocation result a Channel reports back
// through RespondInProgress/RespondMethodFailed.
type Status int

const (
	StatusInProgress Status = iota
	StatusComplete
	StatusMethodFailed
)

// CompletionCause is the cause attached to a RECOGNITION-COMPLETE or
// SPEAK-COMPLETE event, per spec.md §4.4/§4.5.
type CompletionCause int

const (
	CauseSuccess CompletionCause = iota
	CauseError
	CauseNoInputTimeout
	CauseNormal
)

func (c CompletionCause) String() string {
	switch c {
	case CauseSuccess:
		return "SUCCESS"
	case CauseError:
		return "ERROR"
	case CauseNoInputTimeout:
		return "NO_INPUT_TIMEOUT"
	case CauseNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

// CodecDescriptor carries the negotiated raw-PCM format for a channel.
// spec.md §4.4/§4.5 reject RECOGNIZE/SPEAK requests made before a codec
// descriptor is available.
type CodecDescriptor struct {
	SampleRate int // e.g. 8000 or 16000
	BitsPerSample int
}

// RecognizeRequest is the inbound RECOGNIZE method (spec.md §4.4).
type RecognizeRequest struct {
	StartInputTimers      bool
	NoInputTimeout        time.Duration
	SpeechCompleteTimeout time.Duration
}

// SpeakRequest is the inbound SPEAK method (spec.md §4.5).
type SpeakRequest struct {
	Text       string
	Voice      string
	Speed      float64
	Pitch      float64
	Volume     float64
	SampleRate int
	SessionID  string
}

// StopResponse is the response a pending STOP method expects once the
// active request has been flushed (spec.md §4.4/§4.5).
type StopResponse struct{}

// AudioFrame is one fixed-size chunk of raw linear PCM delivered by the
// media-stream context (spec.md §2 data flow, recognizer side).
type AudioFrame struct {
	PCM       []byte
	IsAudio   bool // false for e.g. a comfort-noise/marker frame
}

// RecognitionCompleteEvent is the recognizer engine's sole completion
// signal per request (spec.md §4.4).
type RecognitionCompleteEvent struct {
	Cause       CompletionCause
	Body        []byte // NLSML result, content-type application/x-nlsml
	ContentType string
}

// SpeakCompleteEvent is the synthesizer engine's sole completion signal
// per request (spec.md §4.5).
type SpeakCompleteEvent struct {
	Cause CompletionCause
}

// Channel is the bridge's view of a host-owned MRCP channel: the
// recognizer/synthesizer engines call these to respond to methods and
// raise events. A Channel is created and destroyed by the host; the
// bridge never outlives it (spec.md §9 "cyclic ownership").
type Channel interface {
	// ID returns a stable identifier used for log correlation.
	ID() string

	// Codec returns the channel's negotiated codec, or nil if none has
	// been set up yet.
	Codec() *CodecDescriptor

	// RespondInProgress acknowledges a method invocation as in progress.
	RespondInProgress()

	// RespondMethodFailed rejects a method invocation outright (e.g. no
	// codec descriptor, or invalid payload).
	RespondMethodFailed(reason string)

	// RespondStop delivers the stored STOP response once the active
	// request has been flushed.
	RespondStop(StopResponse)

	// EmitStartOfInput raises the recognizer's START-OF-INPUT event.
	EmitStartOfInput()

	// EmitRecognitionComplete raises the recognizer's sole
	// RECOGNITION-COMPLETE event for the active request.
	EmitRecognitionComplete(RecognitionCompleteEvent)

	// EmitSpeakComplete raises the synthesizer's sole SPEAK-COMPLETE
	// event for the active request.
	EmitSpeakComplete(SpeakCompleteEvent)
}
