// ABOUTME: Linear resampler and channel mapper for decoded buffers
// ABOUTME: Converts assets of any source format to the engine's device format
package audio

// Convert returns a buffer matching target, resampling with linear
// interpolation and duplicating/averaging channels as needed. The input
// buffer is never modified; if it already matches, it is returned as is.
func Convert(buf *Buffer, target Format) *Buffer {
	if buf.Format == target {
		return buf
	}

	out := buf
	if out.Format.Channels != target.Channels {
		out = remapChannels(out, target.Channels)
	}
	if out.Format.SampleRate != target.SampleRate {
		out = resample(out, target.SampleRate)
	}
	return out
}

// remapChannels converts between mono and stereo interleaving.
func remapChannels(buf *Buffer, channels int) *Buffer {
	frames := buf.Frames()
	samples := make([]int32, frames*channels)

	switch {
	case buf.Format.Channels == 1 && channels == 2:
		for i := 0; i < frames; i++ {
			samples[i*2] = buf.Samples[i]
			samples[i*2+1] = buf.Samples[i]
		}
	case buf.Format.Channels == 2 && channels == 1:
		for i := 0; i < frames; i++ {
			samples[i] = (buf.Samples[i*2] + buf.Samples[i*2+1]) / 2
		}
	default:
		// Rare layouts: keep the first channels, pad with the last one
		for i := 0; i < frames; i++ {
			for ch := 0; ch < channels; ch++ {
				src := ch
				if src >= buf.Format.Channels {
					src = buf.Format.Channels - 1
				}
				samples[i*channels+ch] = buf.Samples[i*buf.Format.Channels+src]
			}
		}
	}

	return &Buffer{
		Format:  Format{SampleRate: buf.Format.SampleRate, Channels: channels},
		Samples: samples,
	}
}

// resample converts the buffer's sample rate using linear interpolation.
func resample(buf *Buffer, rate int) *Buffer {
	channels := buf.Format.Channels
	inFrames := buf.Frames()
	outFrames := int(int64(inFrames) * int64(rate) / int64(buf.Format.SampleRate))
	ratio := float64(buf.Format.SampleRate) / float64(rate)

	samples := make([]int32, outFrames*channels)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}

		for ch := 0; ch < channels; ch++ {
			s1 := buf.Samples[idx*channels+ch]
			s2 := buf.Samples[next*channels+ch]
			samples[i*channels+ch] = int32(float64(s1)*(1.0-frac) + float64(s2)*frac)
		}
	}

	return &Buffer{
		Format:  Format{SampleRate: rate, Channels: channels},
		Samples: samples,
	}
}
