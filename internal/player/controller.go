// ABOUTME: Public playback engine state machine
// ABOUTME: Wraps timeline, buffer cache, and scheduler behind transport controls
package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/slidecast/slidecast-go/internal/assets"
	"github.com/slidecast/slidecast-go/internal/timeline"
)

// Engine status values.
const (
	StatusIdle    = "idle"
	StatusLoading = "loading"
	StatusReady   = "ready"
	StatusPlaying = "playing"
	StatusPaused  = "paused"
)

// State is the caller-visible engine snapshot.
type State struct {
	Status        string
	CurrentTimeMs int64
	DurationMs    int64
	IsLoading     bool
	IsPlaying     bool
}

// Events carries the engine's outbound callbacks. Any field may be nil.
// Callbacks are invoked from the goroutine driving the transport call or
// Tick, never while the controller's lock is held.
type Events struct {
	OnTimeUpdate  func(ms int64)
	OnSlideChange func(slideID string)
	OnPlaybackEnd func()
}

// Controller is the engine's public face: a small state machine over the
// clip timeline, the shared buffer cache, and the playback scheduler.
// idle → loading → ready, then playing ⇄ paused; Stop returns to ready at
// t=0. All transitions are serialized by one mutex, so a SeekTo issued
// while Play is still resuming the device applies after the resume, never
// interleaved with it.
type Controller struct {
	out    Output
	cache  *assets.Cache
	sched  *Scheduler
	events Events

	mu          sync.Mutex
	tl          *timeline.Timeline
	status      string
	currentMs   int64
	durationMs  int64
	activeSlide string // last slide reported through OnSlideChange
}

// NewController creates a controller on a shared device and buffer cache.
// Multiple controllers must share one cache and one device; platform audio
// contexts are a scarce resource.
func NewController(out Output, cache *assets.Cache, events Events) *Controller {
	return &Controller{
		out:    out,
		cache:  cache,
		sched:  NewScheduler(out),
		events: events,
		status: StatusIdle,
	}
}

// LoadClips replaces the whole clip list, rebuilds the timeline, and
// materializes buffers for every referenced clip. It resolves once all
// fetch attempts have settled; per-clip decode failures leave their slide
// silent and do not fail the load. Does not autoplay.
func (c *Controller) LoadClips(ctx context.Context, clips []timeline.Clip) error {
	c.mu.Lock()
	c.sched.Stop()
	c.status = StatusLoading
	c.tl = timeline.New(clips)
	c.durationMs = c.tl.TotalDurationMs()
	c.currentMs = 0
	c.activeSlide = ""
	c.mu.Unlock()

	err := c.cache.Ensure(ctx, clips)

	c.mu.Lock()
	if err != nil {
		// A canceled load leaves no deck to play
		c.status = StatusIdle
		c.tl = nil
		c.durationMs = 0
	} else {
		c.status = StatusReady
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("clip load interrupted: %w", err)
	}
	return nil
}

// Play starts or resumes playback from the current position. The device
// is resumed first: platforms suspend audio until a user-gesture-driven
// resume, so this side effect is required, not optional.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusReady && c.status != StatusPaused {
		return fmt.Errorf("cannot play from state %q", c.status)
	}

	if err := c.out.Resume(); err != nil {
		// Reported once; playback simply does not start
		return fmt.Errorf("audio device resume failed: %w", err)
	}

	c.sched.StartFrom(c.tl, c.cache, c.currentMs)
	c.status = StatusPlaying
	return nil
}

// Pause freezes the current position and stops the scheduler. The elapsed
// position comes from the audio clock, never the UI tick rate, so no
// sub-tick precision is lost. Pausing a non-playing engine is a no-op.
func (c *Controller) Pause() {
	c.mu.Lock()

	if c.status != StatusPlaying {
		c.mu.Unlock()
		return
	}

	c.currentMs = clampMs(c.sched.ElapsedMs(), c.durationMs)
	c.sched.Stop()
	c.status = StatusPaused
	ms := c.currentMs
	onTime := c.events.OnTimeUpdate
	c.mu.Unlock()

	if onTime != nil {
		onTime(ms)
	}
}

// Stop halts playback and resets the position to zero. Valid and
// idempotent from any state.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sched.Stop()
	c.currentMs = 0
	c.activeSlide = ""
	if c.status == StatusPlaying || c.status == StatusPaused {
		c.status = StatusReady
	}
}

// SeekTo moves the position to ms, clamped to [0, duration]. While
// playing the scheduler restarts from the new point and audio continues
// seamlessly; while paused or ready only the position changes and no
// sound starts.
func (c *Controller) SeekTo(ms int64) {
	c.mu.Lock()

	target := clampMs(ms, c.durationMs)
	c.currentMs = target
	if c.status == StatusPlaying {
		c.sched.StartFrom(c.tl, c.cache, target)
	}
	onTime := c.events.OnTimeUpdate
	c.mu.Unlock()

	if onTime != nil {
		onTime(target)
	}
}

// PlayFromTime seeks to ms and ensures playback is running from there.
func (c *Controller) PlayFromTime(ms int64) error {
	c.SeekTo(ms)

	c.mu.Lock()
	playing := c.status == StatusPlaying
	c.mu.Unlock()

	if playing {
		return nil
	}
	return c.Play()
}

// Tick advances time reporting. The host calls it once per animation
// frame; the engine owns no timers for reporting. While playing it
// recomputes the position from the audio clock, fires OnTimeUpdate,
// fires OnSlideChange once per transition, and ends playback exactly
// once when the position reaches the total duration.
func (c *Controller) Tick() {
	c.mu.Lock()

	if c.status != StatusPlaying {
		c.mu.Unlock()
		return
	}

	now := c.sched.ElapsedMs()
	ended := now >= c.durationMs
	if ended {
		now = c.durationMs
		c.sched.Stop()
		c.status = StatusReady
	}
	c.currentMs = now

	var slideChanged bool
	var slide string
	if id, ok := c.tl.ActiveClipAt(now); ok {
		if id != c.activeSlide {
			c.activeSlide = id
			slide = id
			slideChanged = true
		}
	} else {
		// In a gap; remember it so re-entering a clip refires
		c.activeSlide = ""
	}

	onTime := c.events.OnTimeUpdate
	onSlide := c.events.OnSlideChange
	onEnd := c.events.OnPlaybackEnd
	c.mu.Unlock()

	if onTime != nil {
		onTime(now)
	}
	if slideChanged && onSlide != nil {
		onSlide(slide)
	}
	if ended && onEnd != nil {
		onEnd()
	}
}

// ActiveSlide returns the slide under the playhead, or "" in a gap.
func (c *Controller) ActiveSlide() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tl == nil {
		return ""
	}
	id, _ := c.tl.ActiveClipAt(c.currentMs)
	return id
}

// State returns the current engine snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Status:        c.status,
		CurrentTimeMs: c.currentMs,
		DurationMs:    c.durationMs,
		IsLoading:     c.status == StatusLoading,
		IsPlaying:     c.status == StatusPlaying,
	}
}

// Stats returns the underlying scheduler's counters.
func (c *Controller) Stats() SchedulerStats {
	return c.sched.Stats()
}

// Close tears the engine down: all scheduled audio stops. The shared
// device and cache stay open; they outlive any one controller.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sched.Stop()
	c.status = StatusIdle
}

// clampMs clamps ms into [0, max].
func clampMs(ms, max int64) int64 {
	if ms < 0 {
		return 0
	}
	if ms > max {
		return max
	}
	return ms
}
