// ABOUTME: Tests for the capture engine lifecycle and callback path
// ABOUTME: Uses a scripted tap so no audio hardware is required
package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
)

// scriptedTap records lifecycle calls and hands the delivery callback back to
// the test so buffers can be injected deterministically.
type scriptedTap struct {
	openErr    error
	openCalls  int
	closeCalls int
	deliver    func([]float32)
}

func (t *scriptedTap) Open(format audio.Format, fn func([]float32)) error {
	t.openCalls++
	if t.openErr != nil {
		return t.openErr
	}
	t.deliver = fn
	return nil
}

func (t *scriptedTap) Close() error {
	t.closeCalls++
	return nil
}

func testFormat() audio.Format {
	return audio.Format{SampleRate: 48000, Channels: 1}
}

func TestEngineStartStop(t *testing.T) {
	tap := &scriptedTap{}
	engine := NewEngine(testFormat(), tap)

	if engine.State() != StateIdle {
		t.Fatalf("expected idle before start, got %s", engine.State())
	}

	if err := engine.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if engine.State() != StateRunning {
		t.Errorf("expected running after start, got %s", engine.State())
	}

	engine.Stop()
	if engine.State() != StateIdle {
		t.Errorf("expected idle after stop, got %s", engine.State())
	}
	if tap.closeCalls != 1 {
		t.Errorf("expected 1 tap close, got %d", tap.closeCalls)
	}
}

func TestEngineStartWhileRunningIsNoOp(t *testing.T) {
	tap := &scriptedTap{}
	engine := NewEngine(testFormat(), tap)

	if err := engine.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("second start should be a no-op, got error: %v", err)
	}

	if tap.openCalls != 1 {
		t.Errorf("expected 1 tap open, got %d", tap.openCalls)
	}
}

func TestEngineStartFailureReturnsToIdle(t *testing.T) {
	tap := &scriptedTap{openErr: errors.New("device unavailable")}
	engine := NewEngine(testFormat(), tap)

	err := engine.Start()
	if err == nil {
		t.Fatal("expected start error")
	}
	if engine.State() != StateIdle {
		t.Errorf("expected idle after failed start, got %s", engine.State())
	}
	// The tap must be released on the failure path too.
	if tap.closeCalls != 1 {
		t.Errorf("expected tap close after failed open, got %d closes", tap.closeCalls)
	}

	// The engine must be restartable after a failure.
	tap.openErr = nil
	if err := engine.Start(); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	if engine.State() != StateRunning {
		t.Errorf("expected running after restart, got %s", engine.State())
	}
}

func TestEngineStopIsIdempotent(t *testing.T) {
	tap := &scriptedTap{}
	engine := NewEngine(testFormat(), tap)

	engine.Stop() // stop while idle
	if tap.closeCalls != 0 {
		t.Errorf("stop while idle should not touch the tap, got %d closes", tap.closeCalls)
	}

	if err := engine.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	engine.Stop()
	engine.Stop()
	if tap.closeCalls != 1 {
		t.Errorf("expected 1 tap close across repeated stops, got %d", tap.closeCalls)
	}
}

func TestEngineDeliversFrames(t *testing.T) {
	tap := &scriptedTap{}
	engine := NewEngine(testFormat(), tap)

	var frames []audio.Frame
	engine.OnFrame(func(f audio.Frame) {
		frames = append(frames, f)
	})

	if err := engine.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]float32, audio.BufferFrames)
	for i := range buf {
		buf[i] = 0.5
	}
	before := time.Now()
	tap.deliver(buf)
	tap.deliver(buf)

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}

	frame := frames[0]
	if len(frame.Samples) != audio.BufferFrames {
		t.Errorf("expected %d samples, got %d", audio.BufferFrames, len(frame.Samples))
	}
	if frame.SampleRate != 48000 || frame.Channels != 1 {
		t.Errorf("frame format mismatch: %dHz/%dch", frame.SampleRate, frame.Channels)
	}
	if frame.Timestamp.Before(before) {
		t.Error("frame timestamp predates delivery")
	}

	// The frame must own its samples: mutating the tap buffer afterwards
	// must not change delivered frames.
	buf[0] = -1
	if frame.Samples[0] != 0.5 {
		t.Error("frame shares storage with the tap buffer")
	}
}

func TestEngineDropsBuffersAfterStop(t *testing.T) {
	tap := &scriptedTap{}
	engine := NewEngine(testFormat(), tap)

	delivered := 0
	engine.OnFrame(func(audio.Frame) { delivered++ })

	if err := engine.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	engine.Stop()

	// A straggler callback racing teardown is discarded.
	tap.deliver(make([]float32, audio.BufferFrames))
	if delivered != 0 {
		t.Errorf("expected no frames after stop, got %d", delivered)
	}
}

func TestEnginePublishesLevels(t *testing.T) {
	tap := &scriptedTap{}
	engine := NewEngine(testFormat(), tap)
	engine.OnFrame(func(audio.Frame) {})

	if err := engine.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]float32, audio.BufferFrames)
	for i := range buf {
		buf[i] = 1.0
	}
	tap.deliver(buf)

	select {
	case level := <-engine.Levels():
		if level != 1 {
			t.Errorf("expected full-scale level 1, got %f", level)
		}
	default:
		t.Error("expected a level reading")
	}
}

func TestToneTapFillsSine(t *testing.T) {
	tone := NewToneTap(440)
	tone.format = audio.Format{SampleRate: 48000, Channels: 2}

	buf := make([]float32, audio.BufferFrames*2)
	tone.fill(buf)

	// First sample of a sine is zero on both channels.
	if buf[0] != 0 || buf[1] != 0 {
		t.Errorf("expected zero crossing at start, got %f/%f", buf[0], buf[1])
	}

	// Channels carry identical samples and the signal is non-silent.
	var peak float32
	for i := 0; i < audio.BufferFrames; i++ {
		if buf[i*2] != buf[i*2+1] {
			t.Fatalf("channel mismatch at frame %d", i)
		}
		if v := buf[i*2]; v > peak {
			peak = v
		}
	}
	if peak < 0.4 {
		t.Errorf("expected peak near 0.5, got %f", peak)
	}

	// Consecutive fills continue the phase instead of restarting it.
	next := make([]float32, audio.BufferFrames*2)
	tone.fill(next)
	if next[0] == 0 && next[2] == 0 && next[4] == 0 {
		t.Error("second fill appears to restart phase")
	}
}
