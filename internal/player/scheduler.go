// ABOUTME: Session-based playback scheduler
// ABOUTME: Maps logical timeline positions onto device voices with offsets and delays
package player

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/slidecast/slidecast-go/internal/assets"
	"github.com/slidecast/slidecast-go/internal/timeline"
)

// Scheduler translates a logical start time into device scheduling calls
// and guarantees clean teardown. At most one session is live at a time:
// StartFrom stops and detaches every handle of the prior session before
// creating any new one. Internal time math is in audio-clock seconds;
// milliseconds appear only at the API boundary.
type Scheduler struct {
	out Output

	mu           sync.Mutex
	session      int64 // generation counter; stale timers check it
	handles      []*handle
	running      bool
	epochAudio   float64 // device clock at session start
	epochLogical float64 // logical position at session start

	stats SchedulerStats
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Sessions  int64
	Scheduled int64
	Skipped   int64
}

// handle is one scheduled, not-yet-stopped voice.
type handle struct {
	voice Voice
	timer *time.Timer // set for clips that start in the future
}

// NewScheduler creates a scheduler on the given device.
func NewScheduler(out Output) *Scheduler {
	return &Scheduler{out: out}
}

// StartFrom starts a new session at logical position ms. Clips already in
// progress start immediately with an in-buffer offset; future clips are
// armed with a delay timer. Clips with no decoded buffer are skipped and
// their span plays as silence. Re-entrant calls while running perform the
// full stop-then-restart sequence; adjusting live voices in place is not
// supported by the device and risks ghost audio.
func (s *Scheduler) StartFrom(tl *timeline.Timeline, cache *assets.Cache, ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stop synchronously before scheduling anything new; ordering matters
	// to avoid two sessions sounding at once.
	s.stopLocked()

	s.session++
	session := s.session
	s.epochAudio = s.out.Now()
	s.epochLogical = float64(ms) / 1000.0
	s.running = true
	s.stats.Sessions++

	for _, a := range tl.AudibleFrom(ms) {
		buf, ok := cache.Get(a.Clip.SlideID)
		if !ok {
			// No buffer means no audio for this slide, not an error
			s.stats.Skipped++
			continue
		}

		voice, err := s.out.NewVoice(buf, float64(a.OffsetMs)/1000.0)
		if err != nil {
			log.Printf("Voice creation failed for slide %s: %v", a.Clip.SlideID, err)
			s.stats.Skipped++
			continue
		}

		h := &handle{voice: voice}
		if a.DelayMs <= 0 {
			voice.Play()
		} else {
			delay := time.Duration(a.DelayMs) * time.Millisecond
			h.timer = time.AfterFunc(delay, func() {
				s.fireDelayed(session, voice)
			})
		}

		s.handles = append(s.handles, h)
		s.stats.Scheduled++
	}
}

// fireDelayed plays a delayed voice only if its session is still live.
func (s *Scheduler) fireDelayed(session int64, voice Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running && s.session == session {
		voice.Play()
	} else {
		// Session was replaced between arming and firing
		voice.Stop()
	}
}

// Stop stops and detaches every handle. Idempotent; safe on an idle scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	for _, h := range s.handles {
		if h.timer != nil {
			h.timer.Stop()
		}
		h.voice.Stop()
	}
	s.handles = nil
	s.running = false
}

// ElapsedMs returns the logical position implied by the audio clock: the
// session's logical epoch plus audio-clock time since the session began.
// When idle it returns the frozen logical epoch.
func (s *Scheduler) ElapsedMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.epochLogical
	if s.running {
		elapsed += s.out.Now() - s.epochAudio
	}
	return int64(math.Round(elapsed * 1000.0))
}

// Running reports whether a session is live.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Live returns the number of currently-scheduled, not-yet-stopped handles.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
