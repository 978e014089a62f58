// ABOUTME: Audio type definitions
// ABOUTME: Defines formats and decoded PCM buffers shared across the engine
package audio

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes decoded PCM layout.
type Format struct {
	SampleRate int
	Channels   int
}

// Buffer is decoded PCM audio. Buffers are created once per asset, never
// mutated after decode, and owned by the asset cache for the life of the
// editing session.
type Buffer struct {
	Format  Format
	Samples []int32 // interleaved, int32 to carry both 16-bit and 24-bit sources
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// DurationMs returns the buffer's play length in milliseconds.
func (b *Buffer) DurationMs() int64 {
	if b.Format.SampleRate == 0 {
		return 0
	}
	return int64(b.Frames()) * 1000 / int64(b.Format.SampleRate)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleFrom24Bit converts a little-endian 3-byte sample to int32
func SampleFrom24Bit(b [3]byte) int32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if v&0x800000 != 0 {
		v |= ^int32(0xffffff) // sign extend
	}
	return v
}
