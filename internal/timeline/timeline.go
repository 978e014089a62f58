// ABOUTME: Logical timeline mapping per-slide voiceover clips onto one axis
// ABOUTME: Answers active-clip and audible-from queries for the scheduler
package timeline

// Clip is one slide's voiceover, positioned on the logical timeline.
type Clip struct {
	SlideID    string
	URL        string // empty means the slide has no audio
	StartMs    int64  // position on the logical timeline
	DurationMs int64
}

// EndMs returns the clip's end position on the logical timeline.
func (c Clip) EndMs() int64 {
	return c.StartMs + c.DurationMs
}

// AudibleClip describes how a clip relates to a playback start point.
// Exactly one of OffsetMs/DelayMs is meaningful: a clip already in
// progress carries an in-buffer offset, a future clip carries a
// scheduling delay.
type AudibleClip struct {
	Clip     Clip
	OffsetMs int64 // how far into the clip playback should begin
	DelayMs  int64 // how long until the clip should begin
}

// Timeline is an immutable ordered list of clips. It is rebuilt wholesale
// whenever the caller's slide list changes; there is no mutation API.
type Timeline struct {
	clips []Clip
}

// New builds a timeline from clips listed in timeline order.
func New(clips []Clip) *Timeline {
	copied := make([]Clip, len(clips))
	copy(copied, clips)
	return &Timeline{clips: copied}
}

// Clips returns the clips in timeline order.
func (t *Timeline) Clips() []Clip {
	return t.clips
}

// TotalDurationMs returns the maximum end time across all clips, 0 if empty.
func (t *Timeline) TotalDurationMs() int64 {
	var max int64
	for _, c := range t.clips {
		if end := c.EndMs(); end > max {
			max = end
		}
	}
	return max
}

// ActiveClipAt returns the slide ID of the first clip in timeline order
// whose [start, start+duration) span contains ms. The second return is
// false in a gap or past the end.
func (t *Timeline) ActiveClipAt(ms int64) (string, bool) {
	for _, c := range t.clips {
		if ms >= c.StartMs && ms < c.EndMs() {
			return c.SlideID, true
		}
	}
	return "", false
}

// AudibleFrom returns every clip still audible at or after ms, with the
// in-clip offset or scheduling delay needed to start playback from ms.
// Clips that have fully ended are excluded. This single query is what the
// scheduler uses to (re)start from an arbitrary point, gaps included.
func (t *Timeline) AudibleFrom(ms int64) []AudibleClip {
	var audible []AudibleClip
	for _, c := range t.clips {
		if c.EndMs() <= ms {
			continue
		}
		if c.StartMs <= ms {
			audible = append(audible, AudibleClip{Clip: c, OffsetMs: ms - c.StartMs})
		} else {
			audible = append(audible, AudibleClip{Clip: c, DelayMs: c.StartMs - ms})
		}
	}
	return audible
}
