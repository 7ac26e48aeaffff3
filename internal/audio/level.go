// ABOUTME: Perceptual loudness estimation for PCM frames
// ABOUTME: RMS level mapped through a decibel window to a normalized [0,1] meter value
package audio

import (
	"math"
	"time"
)

const (
	// Decibel window for the meter. Anything at or below the floor reads as
	// silence, anything at or above the ceiling reads as full scale.
	levelFloorDB   = -60.0
	levelCeilingDB = 0.0

	// Guards log10 against zero RMS.
	levelEpsilon = 1e-10

	meterThrottle = 25 * time.Millisecond
)

// Level computes a normalized loudness value in [0,1] for a frame of float32
// samples. Pure function: RMS, converted to dBFS, clamped into the meter
// window, and rescaled linearly.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	db := 20 * math.Log10(rms+levelEpsilon)
	if db < levelFloorDB {
		db = levelFloorDB
	}
	if db > levelCeilingDB {
		db = levelCeilingDB
	}

	return (db - levelFloorDB) / (levelCeilingDB - levelFloorDB)
}

// Meter publishes throttled level readings to observers without ever blocking
// the capture callback. Readings that arrive while the channel is full or
// inside the throttle window are dropped.
type Meter struct {
	Levels   chan float64
	lastEmit time.Time
}

// NewMeter creates a meter with a small observer buffer.
func NewMeter() *Meter {
	return &Meter{
		Levels: make(chan float64, 16),
	}
}

// Process computes the level of a frame and publishes it if the throttle
// interval has elapsed.
func (m *Meter) Process(samples []float32) float64 {
	level := Level(samples)

	now := time.Now()
	if now.Sub(m.lastEmit) < meterThrottle {
		return level
	}
	m.lastEmit = now

	select {
	case m.Levels <- level:
	default:
	}

	return level
}
