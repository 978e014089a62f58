// ABOUTME: Tests for the audio device layer
// ABOUTME: Tests volume scaling and clipping protection
package player

import (
	"testing"

	"github.com/slidecast/slidecast-go/internal/audio"
)

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		sample   int32
		volume   int
		muted    bool
		expected int32
	}{
		{1000, 100, false, 1000},
		{1000, 50, false, 500},
		{-1000, 50, false, -500},
		{1000, 0, false, 0},
		{1000, 80, true, 0}, // Muted overrides volume
	}

	for _, tt := range tests {
		got := applyVolume(tt.sample, tt.volume, tt.muted)
		if got != tt.expected {
			t.Errorf("applyVolume(%d, %d, %v): expected %d, got %d",
				tt.sample, tt.volume, tt.muted, tt.expected, got)
		}
	}
}

func TestApplyVolumeClips(t *testing.T) {
	if got := applyVolume(audio.Max24Bit, 100, false); got != audio.Max24Bit {
		t.Errorf("expected max to pass through, got %d", got)
	}
	if got := applyVolume(audio.Min24Bit, 100, false); got != audio.Min24Bit {
		t.Errorf("expected min to pass through, got %d", got)
	}
}
