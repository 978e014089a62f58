// ABOUTME: WAV container parser
// ABOUTME: Walks RIFF chunks and converts 16/24-bit PCM data to samples
package audio

import (
	"encoding/binary"
	"fmt"
)

// decodeWAV parses a RIFF/WAVE container holding integer PCM.
func decodeWAV(data []byte) (*Buffer, error) {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		format     Format
		bitDepth   int
		pcm        []byte
		haveFormat bool
	)

	// Walk the chunk list; only fmt and data matter here
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("truncated fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			if audioFormat != 1 { // integer PCM only
				return nil, fmt.Errorf("unsupported wav encoding: %d", audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFormat = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFormat {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav format: %dch %dHz", format.Channels, format.SampleRate)
	}

	var samples []int32
	switch bitDepth {
	case 16:
		numSamples := len(pcm) / 2
		samples = make([]int32, numSamples)
		for i := 0; i < numSamples; i++ {
			sample16 := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
			samples[i] = SampleFromInt16(sample16)
		}
	case 24:
		numSamples := len(pcm) / 3
		samples = make([]int32, numSamples)
		for i := 0; i < numSamples; i++ {
			samples[i] = SampleFrom24Bit([3]byte{pcm[i*3], pcm[i*3+1], pcm[i*3+2]})
		}
	default:
		return nil, fmt.Errorf("unsupported wav bit depth: %d", bitDepth)
	}

	return &Buffer{Format: format, Samples: samples}, nil
}
