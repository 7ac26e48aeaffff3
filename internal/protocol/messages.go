// ABOUTME: Control message definitions for the broadcast protocol
// ABOUTME: Flat tagged JSON objects exchanged as text frames alongside the binary stream
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type tags. Binary frames carry no tag: they are raw float32-LE
// samples and their boundaries come from the transport framing.
const (
	TypeAudioConfig = "audio_config"
	TypeClientInfo  = "client_info"
	TypePing        = "ping"
	TypePong        = "pong"
)

// FormatFloat32 is the only payload encoding the protocol defines.
const FormatFloat32 = "float32"

// Envelope carries just the tag, for routing before the full parse.
type Envelope struct {
	Type string `json:"type"`
}

// AudioConfig announces the stream format. It is sent exactly once per
// connection, before any binary frame, so a consumer never decodes audio
// without knowing its shape.
type AudioConfig struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Format     string `json:"format"`
}

// NewAudioConfig builds the announcement for a stream format.
func NewAudioConfig(sampleRate, channels int) AudioConfig {
	return AudioConfig{
		Type:       TypeAudioConfig,
		SampleRate: sampleRate,
		Channels:   channels,
		Format:     FormatFloat32,
	}
}

// ClientInfo updates the human-readable device label for a connection.
type ClientInfo struct {
	Type       string `json:"type"`
	DeviceInfo string `json:"device_info"`
}

// Ping is an advisory liveness probe. Liveness enforcement comes from
// transport-level errors, not from ping timing.
type Ping struct {
	Type string `json:"type"`
}

// Pong answers a ping with the current server time.
type Pong struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"` // seconds since epoch
}

// ParseType extracts the tag from a text message.
func ParseType(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("malformed control message: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("control message missing type")
	}
	return env.Type, nil
}
