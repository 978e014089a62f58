// ABOUTME: Reconnecting push-channel client for render job progress
// ABOUTME: Subscribes over websocket, retries drops with bounded linear backoff
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default reconnection parameters. Linear backoff: attempt n waits
// n*BackoffStep, capped at MaxBackoff, up to MaxAttempts tries.
const (
	defaultMaxAttempts = 10
	defaultBackoffStep = 500 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

// Config configures a Channel.
type Config struct {
	// ServerURL is the websocket endpoint of the render service,
	// e.g. "ws://host:port/render".
	ServerURL string

	// MaxAttempts bounds reconnection tries per drop. Defaults to 10.
	MaxAttempts int

	// BackoffStep is the linear backoff increment. Defaults to 500ms.
	BackoffStep time.Duration

	// MaxBackoff caps the backoff. Defaults to 5s.
	MaxBackoff time.Duration
}

// Channel subscribes to one render job and surfaces its progress events.
// At most one subscription is live at a time: a fresh Connect always tears
// down the prior channel first, the same stop-before-start discipline the
// playback scheduler follows. After a terminal event (complete, error,
// canceled) no reconnection is ever attempted.
type Channel struct {
	config   Config
	clientID string

	mu       sync.Mutex
	conn     *websocket.Conn
	session  int64 // generation counter; stale read loops check it
	done     chan struct{}
	jobID    string
	terminal bool

	events chan Event
}

// NewChannel creates a channel client for the given render service.
func NewChannel(config Config) *Channel {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.BackoffStep <= 0 {
		config.BackoffStep = defaultBackoffStep
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaultMaxBackoff
	}

	return &Channel{
		config:   config,
		clientID: uuid.New().String(),
		events:   make(chan Event, 16),
	}
}

// Events returns the channel the client writes progress events into.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Connect subscribes to a render job. Any prior subscription is torn down
// first so two live channels never report into the same UI state. The dial
// happens outside the lock; a slow server must not block Disconnect.
func (c *Channel) Connect(jobID string) error {
	c.mu.Lock()
	c.teardownLocked()
	c.session++
	session := c.session
	c.jobID = jobID
	c.terminal = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	conn, err := c.dialAndSubscribe(jobID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if session != c.session {
		// A newer Connect or Disconnect raced the dial
		c.mu.Unlock()
		conn.Close()
		log.Printf("Render channel superseded during dial: job=%s client=%s", jobID, c.clientID)
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(session, conn)

	log.Printf("Render channel subscribed: job=%s client=%s", jobID, c.clientID)
	return nil
}

// Disconnect unsubscribes and closes the channel. Idempotent; safe on an
// already-idle channel.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		// Best effort; the server drops the subscription on close anyway
		_ = c.conn.WriteJSON(Frame{Type: TypeUnsubscribe})
		log.Printf("Render channel unsubscribed: job=%s client=%s", c.jobID, c.clientID)
	}
	c.teardownLocked()
}

// teardownLocked closes the live connection and invalidates its session.
// The session bump is what stops the read loop's drop handler from
// reconnecting after a deliberate teardown.
func (c *Channel) teardownLocked() {
	c.session++
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// dialAndSubscribe opens a connection and sends the subscribe frame.
func (c *Channel) dialAndSubscribe(jobID string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(c.config.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if err := conn.WriteJSON(Frame{Type: TypeSubscribe, RenderID: jobID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	return conn, nil
}

// readLoop reads and routes frames until the connection drops or a
// terminal frame arrives.
func (c *Channel) readLoop(session int64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(session)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed frames are logged and ignored, never fatal
			log.Printf("Render channel: unparsable frame: %v", err)
			continue
		}

		if c.dispatch(session, frame) {
			return
		}
	}
}

// dispatch emits the event for one frame. Returns true when the frame was
// terminal and the read loop should exit.
func (c *Channel) dispatch(session int64, frame Frame) bool {
	switch frame.Type {
	case TypeSubscribed:
		c.emit(session, Event{Type: EventSubscribed, RenderID: frame.RenderID})

	case TypeProgress:
		c.emit(session, Event{
			Type:    EventProgress,
			Percent: frame.Percent,
			Message: frame.Message,
			Step:    frame.Step,
		})

	case TypeComplete:
		c.finish(session, Event{
			Type:       EventComplete,
			OutputPath: frame.OutputPath,
			FileSize:   frame.FileSize,
			Message:    frame.Message,
		})
		return true

	case TypeError:
		c.finish(session, Event{Type: EventError, Err: errors.New(frame.Error)})
		return true

	case TypeCanceled:
		c.finish(session, Event{Type: EventCanceled})
		return true

	default:
		log.Printf("Render channel: unknown frame type %q", frame.Type)
	}
	return false
}

// handleDrop runs the reconnection policy after an unexpected closure.
func (c *Channel) handleDrop(session int64) {
	c.mu.Lock()
	if session != c.session || c.terminal {
		// Deliberate teardown or an already-finished job; nothing to do
		c.mu.Unlock()
		return
	}
	jobID := c.jobID
	done := c.done
	c.conn = nil
	c.mu.Unlock()

	log.Printf("Render channel dropped mid-job, reconnecting: job=%s client=%s", jobID, c.clientID)

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		backoff := time.Duration(attempt) * c.config.BackoffStep
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}

		select {
		case <-done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialAndSubscribe(jobID)
		if err != nil {
			log.Printf("Render channel reconnect %d/%d failed: client=%s %v",
				attempt, c.config.MaxAttempts, c.clientID, err)
			continue
		}

		c.mu.Lock()
		if session != c.session {
			// A newer Connect/Disconnect won the race
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		log.Printf("Render channel reconnected: job=%s client=%s attempt=%d", jobID, c.clientID, attempt)
		go c.readLoop(session, conn)
		return
	}

	c.finish(session, Event{Type: EventError, Err: ErrReconnectExceeded})
}

// finish marks the session terminal and emits the closing event.
func (c *Channel) finish(session int64, ev Event) {
	c.mu.Lock()
	if session == c.session {
		c.terminal = true
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
	}
	c.mu.Unlock()

	c.emit(session, ev)
}

// emit delivers an event unless the session has been torn down.
func (c *Channel) emit(session int64, ev Event) {
	c.mu.Lock()
	current := session == c.session
	done := c.done
	c.mu.Unlock()

	if !current {
		return
	}

	if done == nil {
		// Terminal events may arrive after Disconnect; drop them
		select {
		case c.events <- ev:
		default:
		}
		return
	}

	select {
	case c.events <- ev:
	case <-done:
	}
}
