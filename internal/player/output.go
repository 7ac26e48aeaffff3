// ABOUTME: Audio output drivers for the playback engine
// ABOUTME: oto-backed device output that pulls float32 PCM from an io.Reader
package player

import (
	"fmt"
	"io"
	"log"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
	"github.com/ebitengine/oto/v3"
)

// Output is a fixed-rate audio sink that pulls little-endian float32 PCM from
// src on its own callback clock.
type Output interface {
	Start(format audio.Format, src io.Reader) error
	Close() error
}

// OtoOutput plays through the OS default output device via oto. The oto
// player drives its hardware callback by calling src.Read for exactly the
// bytes the device needs, which is the pull discipline the jitter buffer is
// built around.
type OtoOutput struct {
	otoCtx *oto.Context
	player *oto.Player
}

// NewOtoOutput creates an unstarted output.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{}
}

// Start opens the device for the given format and begins pulling from src.
func (o *OtoOutput) Start(format audio.Format, src io.Reader) error {
	if o.player != nil {
		return fmt.Errorf("output already started")
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.player = ctx.NewPlayer(src)
	o.player.Play()

	log.Printf("Audio output started: %dHz, %d channels, float32", format.SampleRate, format.Channels)
	return nil
}

// Close stops the callback and releases the player. Idempotent.
func (o *OtoOutput) Close() error {
	if o.player != nil {
		o.player.Pause()
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto context suspend error: %v", err)
		}
		o.otoCtx = nil
	}
	return nil
}
