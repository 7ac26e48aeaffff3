// ABOUTME: Core audio types shared between capture, broadcast, and playback
// ABOUTME: Defines the sample frame and stream format descriptors
package audio

import "time"

// Format describes the shape of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BufferFrames is the fixed number of frames delivered per hardware callback.
const BufferFrames = 256

// Frame is one fixed-size chunk of interleaved float32 samples captured in a
// single hardware callback. Frames are never mutated after creation; the
// broadcast fan-out shares a single frame read-only across all connections.
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Timestamp  time.Time
}

// Duration returns the playback duration covered by the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	frames := len(f.Samples) / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
