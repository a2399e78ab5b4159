package recognizer

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unimrcp-community/ws-speechbridge/hostapi"
	"github.com/unimrcp-community/ws-speechbridge/vad"
	"github.com/unimrcp-community/ws-speechbridge/wsclient"
	"github.com/unimrcp-community/ws-speechbridge/wsproto"
)

// fakeHost records emitted events instead of relaying them to a real MRCP
// session.
type fakeHost struct {
	mu             sync.Mutex
	inProgress     int
	methodFailed   []string
	startOfInput   int
	completions    []hostapi.RecognitionCompleteEvent
	codec          *hostapi.CodecDescriptor
}

func (f *fakeHost) ID() string                      { return "test-channel" }
func (f *fakeHost) Codec() *hostapi.CodecDescriptor { return f.codec }
func (f *fakeHost) RespondInProgress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inProgress++
}
func (f *fakeHost) RespondMethodFailed(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methodFailed = append(f.methodFailed, reason)
}
func (f *fakeHost) RespondStop(hostapi.StopResponse) {}
func (f *fakeHost) EmitStartOfInput() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startOfInput++
}
func (f *fakeHost) EmitRecognitionComplete(ev hostapi.RecognitionCompleteEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, ev)
}
func (f *fakeHost) EmitSpeakComplete(hostapi.SpeakCompleteEvent) {}

func (f *fakeHost) lastCompletion() (hostapi.RecognitionCompleteEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.completions) == 0 {
		return hostapi.RecognitionCompleteEvent{}, false
	}
	return f.completions[len(f.completions)-1], true
}

// fakeASRServer accepts one connection, completes a bare-bones handshake,
// reads one binary frame (the buffered utterance), and replies with a
// text frame carrying an NLSML-shaped body.
type fakeASRServer struct {
	ln net.Listener
}

func newFakeASRServer(t *testing.T) *fakeASRServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeASRServer{ln: ln}
}

func (s *fakeASRServer) port() string {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return port
}

func (s *fakeASRServer) serveOnce(t *testing.T, resultBody string) {
	conn, err := s.ln.Accept()
	require.NoError(t, err)
	br := bufio.NewReader(conn)
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}
	_, err = conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n\r\n"))
	require.NoError(t, err)

	// Read the binary frame header + mask + payload (opcode 0x82).
	hdr := make([]byte, 2)
	_, err = io.ReadFull(br, hdr)
	require.NoError(t, err)
	payloadLen := int(hdr[1] &^ 0x80)
	if payloadLen == 126 {
		ext := make([]byte, 2)
		_, err = io.ReadFull(br, ext)
		require.NoError(t, err)
		payloadLen = int(binary.BigEndian.Uint16(ext))
	}
	mask := make([]byte, 4)
	_, err = io.ReadFull(br, mask)
	require.NoError(t, err)
	payload := make([]byte, payloadLen)
	_, err = io.ReadFull(br, payload)
	require.NoError(t, err)

	resp := []byte(resultBody)
	out := []byte{0x81, byte(len(resp))}
	out = append(out, resp...)
	_, err = conn.Write(out)
	require.NoError(t, err)
}

// serveStreaming accepts one connection, completes the handshake, then
// reads binary frames (opcode 0x82) one at a time, accumulating their
// payload length, until it has seen at least wantBytes total. It returns
// the exact number of payload bytes observed across all frames, which a
// streaming-mode caller asserts equals wantBytes: any duplication (a
// frame re-sending already-streamed bytes) would push the total above
// wantBytes by the time this loop stops.
func (s *fakeASRServer) serveStreaming(t *testing.T, wantBytes int, resultBody string) int {
	conn, err := s.ln.Accept()
	require.NoError(t, err)
	br := bufio.NewReader(conn)
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}
	_, err = conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n\r\n"))
	require.NoError(t, err)

	received := 0
	for received < wantBytes {
		frame, err := wsproto.ReadServerFrame(br, 1<<20)
		require.NoError(t, err)
		require.Equal(t, wsproto.OpBinary, frame.Opcode)
		received += len(frame.Payload)
	}

	resp := []byte(resultBody)
	out := []byte{0x81, byte(len(resp))}
	out = append(out, resp...)
	_, err = conn.Write(out)
	require.NoError(t, err)
	return received
}

func newTestChannel(t *testing.T, port string) (*Channel, *fakeHost) {
	return newTestChannelMode(t, port, false)
}

func newTestChannelMode(t *testing.T, port string, streaming bool) (*Channel, *fakeHost) {
	ws := wsclient.New(wsclient.Config{
		Host:                   "127.0.0.1",
		Port:                   port,
		Path:                   "/asr",
		ReceiveTimeout:         20 * time.Millisecond,
		SkipAcceptVerification: true,
	}, nil)
	host := &fakeHost{codec: &hostapi.CodecDescriptor{SampleRate: 8000, BitsPerSample: 16}}
	det := vad.NewEnergyDetector()
	ch := New(host, ws, det, streaming, nil)
	ch.SetCodec(*host.codec)
	return ch, host
}

func toneFrame(amplitude int16, n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

// TestRecognizeBufferedHappyPath drives silence -> speech -> silence and
// expects exactly one RECOGNITION-COMPLETE with cause SUCCESS carrying the
// server's NLSML body.
func TestRecognizeBufferedHappyPath(t *testing.T) {
	srv := newFakeASRServer(t)
	defer srv.ln.Close()

	ch, host := newTestChannel(t, srv.port())
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		srv.serveOnce(t, `<result>ok</result>`)
		close(done)
	}()

	ch.Recognize(hostapi.RecognizeRequest{
		StartInputTimers:      true,
		NoInputTimeout:        2 * time.Second,
		SpeechCompleteTimeout: 20 * time.Millisecond,
	})

	silence := toneFrame(0, 160)
	loud := toneFrame(10000, 160)

	ch.OnAudioFrame(hostapi.AudioFrame{PCM: silence, IsAudio: true})
	ch.OnAudioFrame(hostapi.AudioFrame{PCM: loud, IsAudio: true})
	time.Sleep(30 * time.Millisecond)
	ch.OnAudioFrame(hostapi.AudioFrame{PCM: silence, IsAudio: true})

	<-done

	require.Eventually(t, func() bool {
		ev, ok := host.lastCompletion()
		return ok && ev.Cause == hostapi.CauseSuccess
	}, time.Second, 5*time.Millisecond)

	ev, _ := host.lastCompletion()
	require.Equal(t, "<result>ok</result>", string(ev.Body))
	require.Equal(t, "application/x-nlsml", ev.ContentType)

	host.mu.Lock()
	require.Equal(t, 1, host.startOfInput)
	host.mu.Unlock()
}

// TestRecognizeStreamingModeSendsEachByteOnce drives a streaming-mode
// channel through enough loud frames to post one STREAM_AUDIO chunk, then
// lets VAD inactivity fire SEND_AUDIO for the unsent tail. It asserts the
// ASR server sees exactly as many payload bytes as were fed in: a
// regression that re-snapshots from byte 0 in SEND_AUDIO would duplicate
// the already-streamed chunk and push the total above that figure.
func TestRecognizeStreamingModeSendsEachByteOnce(t *testing.T) {
	srv := newFakeASRServer(t)
	defer srv.ln.Close()

	ch, host := newTestChannelMode(t, srv.port(), true)
	defer ch.Close()

	const loudFrames = 11 // 11*320 = 3520 bytes: one 3200-byte chunk + a 320-byte tail.
	const frameBytes = 320
	wantTotal := loudFrames * frameBytes

	type result struct {
		total int
	}
	done := make(chan result, 1)
	go func() {
		total := srv.serveStreaming(t, wantTotal, `<result>ok</result>`)
		done <- result{total: total}
	}()

	ch.Recognize(hostapi.RecognizeRequest{
		StartInputTimers:      true,
		NoInputTimeout:        2 * time.Second,
		SpeechCompleteTimeout: 20 * time.Millisecond,
	})

	loud := toneFrame(10000, 160)
	silence := toneFrame(0, 160)

	for i := 0; i < loudFrames; i++ {
		ch.OnAudioFrame(hostapi.AudioFrame{PCM: loud, IsAudio: true})
	}
	time.Sleep(30 * time.Millisecond)
	// The trailing silence frame is marked non-audio: VAD still sees it and
	// fires INACTIVITY, but its bytes are not buffered, so the bytes fed in
	// are exactly the loud frames. (An audio frame's bytes are buffered
	// after SEND_AUDIO is posted, so whether they go out would depend on
	// when the background task runs.)
	ch.OnAudioFrame(hostapi.AudioFrame{PCM: silence, IsAudio: false})

	res := <-done
	require.Equal(t, wantTotal, res.total, "ASR server must see each byte exactly once, no re-sent chunk")

	require.Eventually(t, func() bool {
		ev, ok := host.lastCompletion()
		return ok && ev.Cause == hostapi.CauseSuccess
	}, time.Second, 5*time.Millisecond)
}

// TestRecognizeRejectsWithoutCodec covers the no-codec-descriptor
// method-failed path.
func TestRecognizeRejectsWithoutCodec(t *testing.T) {
	ws := wsclient.New(wsclient.Config{Host: "127.0.0.1", Port: "1"}, nil)
	host := &fakeHost{}
	det := vad.NewEnergyDetector()
	ch := New(host, ws, det, false, nil)
	defer ch.Close()

	ch.Recognize(hostapi.RecognizeRequest{})

	host.mu.Lock()
	defer host.mu.Unlock()
	require.Len(t, host.methodFailed, 1)
}
