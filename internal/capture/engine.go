// ABOUTME: Capture engine bridging the hardware tap into the frame stream
// ABOUTME: Runs the Idle/Starting/Running/Stopping lifecycle and per-callback metering
package capture

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
)

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Engine owns the audio tap and turns each hardware callback into exactly one
// frame delivered to the subscriber. There is no buffering here: back-pressure
// is the subscriber's problem, and the callback path never blocks on it.
type Engine struct {
	format audio.Format
	tap    Tap
	meter  *audio.Meter

	mu      sync.Mutex
	state   State
	onFrame func(audio.Frame)
}

// NewEngine creates an engine in the Idle state.
func NewEngine(format audio.Format, tap Tap) *Engine {
	return &Engine{
		format: format,
		tap:    tap,
		meter:  audio.NewMeter(),
		state:  StateIdle,
	}
}

// OnFrame registers the single frame subscriber. Must be set before Start.
func (e *Engine) OnFrame(fn func(audio.Frame)) {
	e.mu.Lock()
	e.onFrame = fn
	e.mu.Unlock()
}

// Levels exposes throttled loudness readings for an operator meter. Readings
// are dropped when nobody is listening.
func (e *Engine) Levels() <-chan float64 {
	return e.meter.Levels
}

// Format returns the capture format.
func (e *Engine) Format() audio.Format {
	return e.format
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start opens the tap. Calling Start while Starting or Running is a no-op.
// A failed open releases the tap and returns the engine to Idle; the error is
// surfaced once and never retried here.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state == StateRunning || e.state == StateStarting {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStarting
	e.mu.Unlock()

	if err := e.tap.Open(e.format, e.handleBuffer); err != nil {
		e.tap.Close()
		e.mu.Lock()
		e.state = StateIdle
		e.mu.Unlock()
		return fmt.Errorf("capture start failed: %w", err)
	}

	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	log.Printf("Capture engine running: %dHz, %d channels", e.format.SampleRate, e.format.Channels)
	return nil
}

// Stop tears down the tap and returns to Idle. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateIdle || e.state == StateStopping {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	e.mu.Unlock()

	if err := e.tap.Close(); err != nil {
		log.Printf("Error closing capture tap: %v", err)
	}

	e.mu.Lock()
	e.state = StateIdle
	e.mu.Unlock()

	log.Printf("Capture engine stopped")
}

// handleBuffer runs on the device callback: meter first, then one frame to
// the subscriber. Samples are copied because the device reuses its buffer.
func (e *Engine) handleBuffer(samples []float32) {
	e.mu.Lock()
	running := e.state == StateRunning || e.state == StateStarting
	fn := e.onFrame
	e.mu.Unlock()

	if !running {
		return
	}

	e.meter.Process(samples)

	if fn == nil {
		return
	}

	owned := make([]float32, len(samples))
	copy(owned, samples)

	fn(audio.Frame{
		Samples:    owned,
		SampleRate: e.format.SampleRate,
		Channels:   e.format.Channels,
		Timestamp:  time.Now(),
	})
}
