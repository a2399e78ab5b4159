// Package config resolves engine configuration (spec.md §6 "Engine
// configuration keys") through a defaults → file → environment layering,
// using github.com/spf13/viper — grounded on its pervasive use across
// iamprashant-voice-ai/api/* for exactly this kind of layered service
// config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unimrcp-community/ws-speechbridge/synthesizer"
	"github.com/unimrcp-community/ws-speechbridge/wsclient"
)

// EngineConfig holds the resolved configuration shared by both engines
// plus their engine-specific keys (spec.md §6).
type EngineConfig struct {
	WSHost string
	WSPort string
	WSPath string

	// Streaming selects the recognizer's outbound mode.
	Streaming bool

	// MaxAudioSize is the synthesizer ring-buffer capacity in bytes,
	// capped at synthesizer.MaxAudioBufferSize.
	MaxAudioSize int

	WS wsclient.Config
}

// EnvPrefix namespaces environment-variable overrides, e.g.
// WSBRIDGE_WS_HOST.
const EnvPrefix = "WSBRIDGE"

// Load builds an EngineConfig for the given role ("recognizer" or
// "synthesizer") reading, in increasing precedence: built-in defaults, an
// optional config file (if configFile is non-empty), then
// WSBRIDGE_-prefixed environment variables.
func Load(role string, configFile string) (EngineConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("ws-host", "localhost")
	v.SetDefault("ws-port", "8080")
	switch role {
	case "recognizer":
		v.SetDefault("ws-path", "/asr")
		v.SetDefault("streaming", false)
	case "synthesizer":
		v.SetDefault("ws-path", "/tts")
		v.SetDefault("max-audio-size", synthesizer.DefaultAudioBufferSize)
	default:
		v.SetDefault("ws-path", "/")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return EngineConfig{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	maxAudioSize := v.GetInt("max-audio-size")
	if maxAudioSize <= 0 || maxAudioSize > synthesizer.MaxAudioBufferSize {
		maxAudioSize = synthesizer.MaxAudioBufferSize
	}

	cfg := EngineConfig{
		WSHost:       v.GetString("ws-host"),
		WSPort:       v.GetString("ws-port"),
		WSPath:       v.GetString("ws-path"),
		Streaming:    v.GetBool("streaming"),
		MaxAudioSize: maxAudioSize,
		WS: wsclient.Config{
			Host: v.GetString("ws-host"),
			Port: v.GetString("ws-port"),
			Path: v.GetString("ws-path"),
		},
	}
	return cfg, nil
}

// StreamChunkDuration is an informational constant: the recognizer's
// default 3200-byte chunk is 200ms of 8kHz 16-bit mono audio
// (recognizer.StreamChunkSize documents the byte figure).
const StreamChunkDuration = 200 * time.Millisecond
