// ABOUTME: Bounded jitter buffer between network receive and audio output
// ABOUTME: Thread-safe float32 ring that drops oldest on overflow and zero-fills on underrun
package player

import "sync"

// JitterBuffer absorbs arrival-rate variance between the network producer and
// the fixed-rate output consumer. It is bounded: appending past the bound
// drops the oldest samples, never the newest, trading audible artifacts for
// bounded latency. Pulling past the available count zero-fills the shortfall
// and never blocks.
type JitterBuffer struct {
	mu      sync.Mutex
	buf     []float32
	readPos int
	count   int

	dropped   uint64
	underruns uint64
}

// NewJitterBuffer creates a buffer holding at most maxSamples samples.
func NewJitterBuffer(maxSamples int) *JitterBuffer {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &JitterBuffer{
		buf: make([]float32, maxSamples),
	}
}

// Append adds samples at the tail. If the buffer would exceed its bound, the
// oldest samples are discarded to make room.
func (b *JitterBuffer) Append(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.buf)

	// An append larger than the whole buffer reduces to its newest tail.
	if len(samples) >= size {
		b.dropped += uint64(b.count + len(samples) - size)
		copy(b.buf, samples[len(samples)-size:])
		b.readPos = 0
		b.count = size
		return
	}

	overflow := b.count + len(samples) - size
	if overflow > 0 {
		b.readPos = (b.readPos + overflow) % size
		b.count -= overflow
		b.dropped += uint64(overflow)
	}

	writePos := (b.readPos + b.count) % size
	n := copy(b.buf[writePos:], samples)
	copy(b.buf, samples[n:])
	b.count += len(samples)
}

// Pull fills dst from the head, zero-filling any shortfall. Returns the
// number of real samples delivered. Never blocks.
func (b *JitterBuffer) Pull(dst []float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(dst)
	if n > b.count {
		n = b.count
	}

	size := len(b.buf)
	first := copy(dst[:n], b.buf[b.readPos:min(b.readPos+n, size)])
	copy(dst[first:n], b.buf[:n-first])

	b.readPos = (b.readPos + n) % size
	b.count -= n

	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	if n < len(dst) {
		b.underruns++
	}

	return n
}

// Len returns the number of buffered samples.
func (b *JitterBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the buffer bound in samples.
func (b *JitterBuffer) Cap() int {
	return len(b.buf)
}

// Clear empties the buffer.
func (b *JitterBuffer) Clear() {
	b.mu.Lock()
	b.readPos = 0
	b.count = 0
	b.mu.Unlock()
}

// Dropped returns the total samples discarded by overflow trimming.
func (b *JitterBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Underruns returns the number of pulls that came up short.
func (b *JitterBuffer) Underruns() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.underruns
}
