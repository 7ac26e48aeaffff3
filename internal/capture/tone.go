// ABOUTME: Test tone tap for running the broadcaster without capture hardware
// ABOUTME: Generates a 440Hz sine at the same fixed buffer cadence as a real device
package capture

import (
	"math"
	"sync"
	"time"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
)

// ToneTap synthesizes a sine wave and delivers it in audio.BufferFrames-sized
// buffers at the real-time rate a hardware device would.
type ToneTap struct {
	frequency float64

	mu          sync.Mutex
	format      audio.Format
	sampleIndex uint64
	stopChan    chan struct{}
	stopOnce    *sync.Once
}

// NewToneTap creates a tone tap. Frequency defaults to A4 when zero.
func NewToneTap(frequency float64) *ToneTap {
	if frequency == 0 {
		frequency = 440.0
	}
	return &ToneTap{frequency: frequency}
}

// Open starts a ticker matching the buffer cadence and delivers one buffer
// per tick.
func (t *ToneTap) Open(format audio.Format, fn func(samples []float32)) error {
	t.mu.Lock()
	t.format = format
	t.stopChan = make(chan struct{})
	t.stopOnce = &sync.Once{}
	stopChan := t.stopChan
	t.mu.Unlock()

	interval := time.Duration(audio.BufferFrames) * time.Second / time.Duration(format.SampleRate)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				buf := make([]float32, audio.BufferFrames*format.Channels)
				t.fill(buf)
				fn(buf)
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// fill writes the next buffer of the sine, duplicated across channels.
func (t *ToneTap) fill(buf []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	channels := t.format.Channels
	frames := len(buf) / channels

	for i := 0; i < frames; i++ {
		at := float64(t.sampleIndex+uint64(i)) / float64(t.format.SampleRate)
		sample := float32(math.Sin(2*math.Pi*t.frequency*at) * 0.5)
		for ch := 0; ch < channels; ch++ {
			buf[i*channels+ch] = sample
		}
	}

	t.sampleIndex += uint64(frames)
}

// Close stops the generator. Idempotent.
func (t *ToneTap) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopOnce != nil {
		stopChan := t.stopChan
		t.stopOnce.Do(func() { close(stopChan) })
	}
	return nil
}
