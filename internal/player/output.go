// ABOUTME: Platform audio device abstraction and oto implementation
// ABOUTME: Exposes the audio clock, suspend/resume, and per-buffer voices
package player

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/slidecast/slidecast-go/internal/audio"
)

// DeviceFormat is the fixed format the engine mixes at. Decoded assets are
// converted to this format before they reach the device.
var DeviceFormat = audio.Format{SampleRate: 44100, Channels: 2}

// Output is the platform audio device the scheduler plays against. Now()
// is the audio clock: a monotonic seconds value used for all elapsed-time
// math, never the UI tick rate. Implementations must allow many voices on
// one device.
type Output interface {
	// Format returns the device mix format.
	Format() audio.Format

	// Now returns seconds on the device's monotonic clock.
	Now() float64

	// Resume resumes a suspended device. Required before scheduling;
	// safe to call when already running.
	Resume() error

	// NewVoice prepares one buffer for playback starting offsetSec into
	// the buffer. The voice is silent until Play is called.
	NewVoice(buf *audio.Buffer, offsetSec float64) (Voice, error)

	// Close releases the device.
	Close() error
}

// Voice is a single scheduled playback of one buffer.
type Voice interface {
	Play()
	Stop()
}

// oto allows exactly one context per process, so the device context and
// its clock epoch are shared by every Output in the process.
var (
	otoOnce  sync.Once
	otoCtx   *oto.Context
	otoEpoch time.Time
	otoErr   error
)

// otoOutput is the real device, backed by the shared oto context.
type otoOutput struct {
	volume int
	muted  bool
}

// NewOutput opens the process-wide audio device at DeviceFormat.
func NewOutput() (Output, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   DeviceFormat.SampleRate,
			ChannelCount: DeviceFormat.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}

		<-readyChan
		otoCtx = ctx
		otoEpoch = time.Now()

		log.Printf("Audio device initialized: %dHz, %d channels",
			DeviceFormat.SampleRate, DeviceFormat.Channels)
	})
	if otoErr != nil {
		return nil, otoErr
	}

	return &otoOutput{volume: 100}, nil
}

// Format returns the device mix format.
func (o *otoOutput) Format() audio.Format {
	return DeviceFormat
}

// Now returns seconds since the device opened. oto exposes no hardware
// clock, so the monotonic wall clock anchored at context creation stands
// in for it.
func (o *otoOutput) Now() float64 {
	return time.Since(otoEpoch).Seconds()
}

// Resume resumes the suspended device.
func (o *otoOutput) Resume() error {
	if err := otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume audio device: %w", err)
	}
	return nil
}

// NewVoice builds an oto player over the buffer tail starting at offsetSec.
func (o *otoOutput) NewVoice(buf *audio.Buffer, offsetSec float64) (Voice, error) {
	if buf.Format != DeviceFormat {
		return nil, fmt.Errorf("buffer format %+v does not match device", buf.Format)
	}

	offsetFrames := int(offsetSec * float64(buf.Format.SampleRate))
	if offsetFrames < 0 {
		offsetFrames = 0
	}
	if offsetFrames > buf.Frames() {
		offsetFrames = buf.Frames()
	}

	samples := buf.Samples[offsetFrames*buf.Format.Channels:]
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		s := applyVolume(sample, o.volume, o.muted)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(audio.SampleToInt16(s)))
	}

	return &otoVoice{player: otoCtx.NewPlayer(bytes.NewReader(pcm))}, nil
}

// Close suspends the shared device. The context itself survives: oto does
// not support reopening within one process.
func (o *otoOutput) Close() error {
	return otoCtx.Suspend()
}

// SetVolume sets the volume (0-100) applied to voices created afterwards.
func (o *otoOutput) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.volume = volume
}

// SetMuted sets mute state applied to voices created afterwards.
func (o *otoOutput) SetMuted(muted bool) {
	o.muted = muted
}

// otoVoice wraps one oto player.
type otoVoice struct {
	mu      sync.Mutex
	player  *oto.Player
	stopped bool
}

func (v *otoVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped {
		v.player.Play()
	}
}

func (v *otoVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped {
		v.stopped = true
		v.player.Close()
	}
}

// applyVolume scales one sample with clipping protection.
func applyVolume(sample int32, volume int, muted bool) int32 {
	if muted {
		return 0
	}

	scaled := int64(float64(sample) * float64(volume) / 100.0)
	if scaled > audio.Max24Bit {
		scaled = audio.Max24Bit
	} else if scaled < audio.Min24Bit {
		scaled = audio.Min24Bit
	}
	return int32(scaled)
}
