// ABOUTME: Client playback engine feeding a fixed-rate output from network frames
// ABOUTME: Decodes binary frames into the jitter buffer and serves the output pull path
package player

import (
	"fmt"
	"log"
	"sync"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
	"github.com/0xav10086/PaperCupTelephone/internal/protocol"
)

// MaxBufferSeconds bounds the jitter buffer duration. Anything older gets
// trimmed: the stream is a live feed, not a recording.
const MaxBufferSeconds = 0.5

// EngineState is the playback lifecycle state.
type EngineState int

const (
	StateDisconnected EngineState = iota
	StateConnected
	StatePlaying
	StateStopped
)

// String returns the state name for logs.
func (s EngineState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Engine receives binary frames from the network producer and is pulled from
// by the audio output consumer. The two paths run concurrently and meet only
// at the jitter buffer. Playback cannot begin before a format announcement:
// the engine never assumes a default format.
type Engine struct {
	output Output

	mu       sync.Mutex
	state    EngineState
	format   audio.Format
	buffer   *JitterBuffer
	spectrum *Spectrum

	received uint64
}

// NewEngine creates an engine in the Disconnected state.
func NewEngine(output Output) *Engine {
	return &Engine{
		output: output,
		state:  StateDisconnected,
	}
}

// HandleConfig applies the stream's format announcement, sizing the jitter
// buffer to the bound duration and moving to Connected.
func (e *Engine) HandleConfig(cfg protocol.AudioConfig) error {
	if cfg.Format != protocol.FormatFloat32 {
		return fmt.Errorf("unsupported stream format %q", cfg.Format)
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return fmt.Errorf("invalid stream format: %dHz/%dch", cfg.SampleRate, cfg.Channels)
	}

	maxSamples := int(float64(cfg.SampleRate*cfg.Channels) * MaxBufferSeconds)

	e.mu.Lock()
	e.format = audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	e.buffer = NewJitterBuffer(maxSamples)
	e.spectrum = NewSpectrum(DefaultFFTSize, cfg.Channels, cfg.SampleRate)
	e.state = StateConnected
	e.mu.Unlock()

	log.Printf("Stream format: %dHz, %d channels, float32 (buffer bound %d samples)",
		cfg.SampleRate, cfg.Channels, maxSamples)
	return nil
}

// HandleBinary decodes a binary frame into the jitter buffer. Frames arriving
// before the format announcement are dropped. The first frame after Connected
// starts the output device.
func (e *Engine) HandleBinary(data []byte) {
	e.mu.Lock()
	if e.state != StateConnected && e.state != StatePlaying {
		e.mu.Unlock()
		log.Printf("Dropping %d-byte frame in state %s", len(data), e.state)
		return
	}
	buffer := e.buffer
	startOutput := e.state == StateConnected
	if startOutput {
		e.state = StatePlaying
	}
	format := e.format
	e.received++
	e.mu.Unlock()

	buffer.Append(audio.DecodeFloat32LE(data))

	if startOutput {
		if err := e.output.Start(format, e); err != nil {
			log.Printf("Failed to start audio output: %v", err)
			e.mu.Lock()
			e.state = StateStopped
			e.mu.Unlock()
		}
	}
}

// Read serves the output callback: it fills p with exactly the requested
// bytes, real samples first and silence for any shortfall, and feeds the
// delivered block to the spectrum analyzer so the visual and audible
// experience stay in lockstep even through gaps. Never blocks on the network.
func (e *Engine) Read(p []byte) (int, error) {
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}

	e.mu.Lock()
	buffer := e.buffer
	spectrum := e.spectrum
	e.mu.Unlock()

	block := make([]float32, n)
	if buffer != nil {
		buffer.Pull(block)
	}

	copy(p, audio.EncodeFloat32LE(block))

	if spectrum != nil {
		spectrum.Feed(block)
	}

	return n * 4, nil
}

// ConnectionClosed stops the output, clears the buffer, and moves to Stopped.
// Both the receive path and the output callback are quiesced before return.
func (e *Engine) ConnectionClosed() {
	e.mu.Lock()
	if e.state == StateStopped || e.state == StateDisconnected {
		e.mu.Unlock()
		return
	}
	buffer := e.buffer
	e.state = StateStopped
	e.mu.Unlock()

	if err := e.output.Close(); err != nil {
		log.Printf("Error closing audio output: %v", err)
	}
	if buffer != nil {
		buffer.Clear()
	}

	log.Printf("Playback stopped")
}

// State returns the current lifecycle state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Spectrum returns the analyzer, or nil before the format is known.
func (e *Engine) Spectrum() *Spectrum {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spectrum
}

// Stats reports playback diagnostics.
func (e *Engine) Stats() (received, dropped, underruns uint64, buffered int) {
	e.mu.Lock()
	buffer := e.buffer
	received = e.received
	e.mu.Unlock()

	if buffer != nil {
		dropped = buffer.Dropped()
		underruns = buffer.Underruns()
		buffered = buffer.Len()
	}
	return
}
