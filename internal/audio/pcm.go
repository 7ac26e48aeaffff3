// ABOUTME: Wire codec for raw float32 PCM payloads
// ABOUTME: Converts between sample slices and little-endian IEEE-754 bytes
package audio

import (
	"encoding/binary"
	"math"
)

// EncodeFloat32LE encodes samples as little-endian 32-bit floats. This is the
// entire binary wire format: message boundaries come from the transport.
func EncodeFloat32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// DecodeFloat32LE decodes little-endian 32-bit floats. A trailing partial
// sample is discarded.
func DecodeFloat32LE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
