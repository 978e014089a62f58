// ABOUTME: Multi-codec audio asset decoder
// ABOUTME: Decodes whole fetched assets (WAV, MP3, FLAC) into PCM buffers
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Decode decodes a complete audio asset into a PCM buffer. The container
// is detected from the leading bytes; TTS providers hand back WAV or MP3,
// uploaded narration may be FLAC.
func Decode(data []byte) (*Buffer, error) {
	switch {
	case len(data) >= 4 && string(data[:4]) == "RIFF":
		return decodeWAV(data)
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return decodeFLAC(data)
	case len(data) >= 3 && (string(data[:3]) == "ID3" || (data[0] == 0xFF && data[1]&0xE0 == 0xE0)):
		return decodeMP3(data)
	default:
		return nil, fmt.Errorf("unrecognized audio container")
	}
}

// decodeMP3 decodes an MP3 asset. go-mp3 always emits 16-bit stereo.
func decodeMP3(data []byte) (*Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(raw) / 2
	samples := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = SampleFromInt16(sample16)
	}

	return &Buffer{
		Format:  Format{SampleRate: dec.SampleRate(), Channels: 2},
		Samples: samples,
	}, nil
}

// decodeFLAC decodes a FLAC asset frame by frame.
func decodeFLAC(data []byte) (*Buffer, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse flac: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bps := int(stream.Info.BitsPerSample)
	shift := 24 - bps // left-justify into the 24-bit range

	var samples []int32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame error: %w", err)
		}

		// Interleave the per-channel subframes
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				s := frame.Subframes[ch].Samples[i]
				if shift >= 0 {
					samples = append(samples, s<<shift)
				} else {
					samples = append(samples, s>>(-shift))
				}
			}
		}
	}

	return &Buffer{
		Format:  Format{SampleRate: int(stream.Info.SampleRate), Channels: channels},
		Samples: samples,
	}, nil
}
