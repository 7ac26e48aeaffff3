// ABOUTME: Hardware audio tap backed by malgo/miniaudio
// ABOUTME: Owns the capture device lifecycle and delivers fixed-size float32 buffers
package capture

import (
	"fmt"
	"log"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
	"github.com/gen2brain/malgo"
)

// Tap is a source of fixed-size sample buffers. Open arms the source and
// begins delivering buffers to fn; Close tears it down and must be safe to
// call on every exit path, including a failed Open.
type Tap interface {
	Open(format audio.Format, fn func(samples []float32)) error
	Close() error
}

// MalgoTap captures from the default OS input device (microphone or loopback,
// whichever the OS routes) via miniaudio. The device is an exclusively-owned
// resource: opened once in Open, released once in Close.
type MalgoTap struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
}

// NewMalgoTap creates an unopened hardware tap.
func NewMalgoTap() *MalgoTap {
	return &MalgoTap{}
}

// Open initializes the capture device with the requested format and a fixed
// period of audio.BufferFrames frames. The device delivers float32 samples
// natively, so buffers go to fn without conversion loss.
func (t *MalgoTap) Open(format audio.Format, fn func(samples []float32)) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	t.malgoCtx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = audio.BufferFrames
	deviceConfig.Alsa.NoMMap = 1

	onRecv := func(pOutput, pInput []byte, frameCount uint32) {
		fn(audio.DecodeFloat32LE(pInput))
	}

	device, err := malgo.InitDevice(t.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		t.Close()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		t.Close()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	t.device = device
	log.Printf("Capture device opened: %dHz, %d channels, %d-frame periods",
		format.SampleRate, format.Channels, audio.BufferFrames)

	return nil
}

// Close stops and releases the device and context. Idempotent.
func (t *MalgoTap) Close() error {
	if t.device != nil {
		if err := t.device.Stop(); err != nil {
			log.Printf("Warning: capture device stop error: %v", err)
		}
		t.device.Uninit()
		t.device = nil
	}

	if t.malgoCtx != nil {
		if err := t.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		t.malgoCtx.Free()
		t.malgoCtx = nil
	}

	return nil
}
