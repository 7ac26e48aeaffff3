// ABOUTME: Frequency-domain view of the playback stream for visualization
// ABOUTME: Mono mixdown ring, Hann window, and an in-place radix-2 FFT computed on demand
package player

import (
	"math"
	"math/cmplx"
	"sync"
)

// DefaultFFTSize is the analysis window in samples.
const DefaultFFTSize = 1024

// Spectrum keeps the most recent window of played audio (including underrun
// silence, so the picture matches what is heard) and computes magnitude bins
// lazily when a visualizer asks for them.
type Spectrum struct {
	mu         sync.Mutex
	size       int
	channels   int
	sampleRate int
	window     []float64
	ring       []float64
	pos        int
}

// NewSpectrum creates an analyzer. size must be a power of two; channels and
// sampleRate describe the blocks that will be fed in.
func NewSpectrum(size, channels, sampleRate int) *Spectrum {
	if size <= 0 || size&(size-1) != 0 {
		size = DefaultFFTSize
	}
	if channels < 1 {
		channels = 1
	}

	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	return &Spectrum{
		size:       size,
		channels:   channels,
		sampleRate: sampleRate,
		window:     window,
		ring:       make([]float64, size),
	}
}

// Feed mixes an interleaved block down to mono and appends it to the analysis
// ring. Called from the output pull path, so it must stay cheap.
func (s *Spectrum) Feed(block []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(block) / s.channels
	for i := 0; i < frames; i++ {
		var mix float64
		for ch := 0; ch < s.channels; ch++ {
			mix += float64(block[i*s.channels+ch])
		}
		s.ring[s.pos] = mix / float64(s.channels)
		s.pos = (s.pos + 1) % s.size
	}
}

// Magnitudes computes and returns the magnitude spectrum of the current
// window: size/2 bins, DC first. The returned slice is a fresh copy.
func (s *Spectrum) Magnitudes() []float64 {
	s.mu.Lock()
	data := make([]complex128, s.size)
	for i := 0; i < s.size; i++ {
		sample := s.ring[(s.pos+i)%s.size]
		data[i] = complex(sample*s.window[i], 0)
	}
	s.mu.Unlock()

	fft(data)

	mags := make([]float64, s.size/2)
	for i := range mags {
		mags[i] = cmplx.Abs(data[i]) / float64(s.size)
	}
	return mags
}

// BinFrequency returns the center frequency in Hz for a magnitude bin.
func (s *Spectrum) BinFrequency(bin int) float64 {
	return float64(bin) * float64(s.sampleRate) / float64(s.size)
}

// Size returns the FFT size.
func (s *Spectrum) Size() int {
	return s.size
}

// fft performs an in-place iterative radix-2 Cooley-Tukey transform.
// len(data) must be a power of two.
func fft(data []complex128) {
	n := len(data)

	// Bit-reversal permutation.
	for i, j := 0, 0; i < n; i++ {
		if i < j {
			data[i], data[j] = data[j], data[i]
		}
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Rect(1, angle)
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := data[start+k]
				v := data[start+k+length/2] * w
				data[start+k] = u + v
				data[start+k+length/2] = u - v
				w *= wl
			}
		}
	}
}
