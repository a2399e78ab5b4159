// Command wsbridge-demo wires a recognizer or a synthesizer channel (one
// per run, selected by -role) against a configured WS endpoint for manual
// exercise, outside of any
// real host media-control framework. Flag/signal shape grounded on the
// teacher's examples/stest/client/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unimrcp-community/ws-speechbridge/config"
	"github.com/unimrcp-community/ws-speechbridge/hostapi"
	"github.com/unimrcp-community/ws-speechbridge/logging"
	"github.com/unimrcp-community/ws-speechbridge/recognizer"
	"github.com/unimrcp-community/ws-speechbridge/synthesizer"
	"github.com/unimrcp-community/ws-speechbridge/vad"
	"github.com/unimrcp-community/ws-speechbridge/wsclient"
)

func main() {
	host := flag.String("host", "", "override ws-host")
	port := flag.String("port", "", "override ws-port")
	role := flag.String("role", "recognizer", "recognizer or synthesizer")
	configFile := flag.String("config", "", "optional config file (yaml/json/toml)")
	text := flag.String("text", "hello from the demo channel", "text for a synthesizer run")
	flag.Parse()

	log := logging.NewDevelopment()
	defer log.Sync()

	cfg, err := config.Load(*role, *configFile)
	if err != nil {
		log.Fatalw("loading config", "error", err)
	}
	if *host != "" {
		cfg.WS.Host = *host
		cfg.WSHost = *host
	}
	if *port != "" {
		cfg.WS.Port = *port
		cfg.WSPort = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ws := wsclient.New(cfg.WS, log)
	defer ws.Destroy()

	channelID := uuid.NewString()
	ch := &demoChannel{id: channelID, log: logging.Channel(log, channelID)}
	ch.codec = &hostapi.CodecDescriptor{SampleRate: 8000, BitsPerSample: 16}

	var runErr error
	switch *role {
	case "recognizer":
		runErr = runRecognizer(ctx, cfg, ws, ch, log)
	case "synthesizer":
		runErr = runSynthesizer(ctx, cfg, ws, ch, *text)
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q (want recognizer or synthesizer)\n", *role)
		os.Exit(2)
	}
	if runErr != nil && runErr != context.Canceled {
		log.Errorw("demo run ended with an error", "error", runErr)
	}
}

// runRecognizer drives a recognize request while a synthetic audio feeder
// goroutine supplies silence/tone frames in its place (there is no real
// media-stream context in this standalone demo). The feeder and the
// SIGINT watcher are coordinated with errgroup.WithContext so either one
// exiting (feeder done, or ctx canceled) tears the other down.
func runRecognizer(ctx context.Context, cfg config.EngineConfig, ws *wsclient.Client, h hostapi.Channel, log *zap.SugaredLogger) error {
	det := vad.NewEnergyDetector()
	rec := recognizer.New(h, ws, det, cfg.Streaming, log)
	rec.SetCodec(hostapi.CodecDescriptor{SampleRate: 8000, BitsPerSample: 16})
	defer rec.Close()

	rec.Recognize(hostapi.RecognizeRequest{
		StartInputTimers:      true,
		NoInputTimeout:        5 * time.Second,
		SpeechCompleteTimeout: 800 * time.Millisecond,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feedSyntheticAudio(gctx, rec)
	})
	log.Infow("recognizer demo running against synthetic audio")
	return g.Wait()
}

// feedSyntheticAudio posts silence frames, then one second of a loud
// tone, then silence again, at a 20ms cadence, simulating a media
// callback for about 200 ticks (4s) or until the context is canceled.
func feedSyntheticAudio(ctx context.Context, rec *recognizer.Channel) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	silence := make([]byte, 320)
	tone := make([]byte, 320)
	for i := range tone {
		tone[i] = byte(127 * (i % 2))
	}

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ticks++
			frame := silence
			if ticks > 25 && ticks < 75 {
				frame = tone
			}
			rec.OnAudioFrame(hostapi.AudioFrame{PCM: frame, IsAudio: true})
			if ticks > 200 {
				return nil
			}
		}
	}
}

func runSynthesizer(ctx context.Context, cfg config.EngineConfig, ws *wsclient.Client, h hostapi.Channel, text string) error {
	syn := synthesizer.New(h, ws, cfg.MaxAudioSize, nil)
	syn.SetCodec(hostapi.CodecDescriptor{SampleRate: 8000, BitsPerSample: 16})
	defer syn.Close()

	syn.Speak(hostapi.SpeakRequest{
		Text:       text,
		Voice:      "default",
		SampleRate: 8000,
		SessionID:  uuid.NewString(),
	})

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			syn.OnAudioFrame()
		}
	}
}

// demoChannel is a minimal hostapi.Channel that logs events instead of
// relaying them to a real MRCP session; it exists only for manual
// exercise of this binary.
type demoChannel struct {
	id    string
	log   *zap.SugaredLogger
	codec *hostapi.CodecDescriptor
}

func (c *demoChannel) ID() string                      { return c.id }
func (c *demoChannel) Codec() *hostapi.CodecDescriptor { return c.codec }

func (c *demoChannel) RespondInProgress() { c.log.Infow("IN-PROGRESS", "channel", c.id) }

func (c *demoChannel) RespondMethodFailed(reason string) {
	c.log.Warnw("METHOD-FAILED", "channel", c.id, "reason", reason)
}

func (c *demoChannel) RespondStop(hostapi.StopResponse) { c.log.Infow("STOP response", "channel", c.id) }

func (c *demoChannel) EmitStartOfInput() { c.log.Infow("START-OF-INPUT", "channel", c.id) }

func (c *demoChannel) EmitRecognitionComplete(ev hostapi.RecognitionCompleteEvent) {
	c.log.Infow("RECOGNITION-COMPLETE", "channel", c.id, "cause", ev.Cause.String(), "body", string(ev.Body))
}

func (c *demoChannel) EmitSpeakComplete(ev hostapi.SpeakCompleteEvent) {
	c.log.Infow("SPEAK-COMPLETE", "channel", c.id, "cause", ev.Cause.String())
}
