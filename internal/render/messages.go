// ABOUTME: Render job wire message definitions
// ABOUTME: Defines frame shapes and client-facing events for the progress channel
package render

import "errors"

// Frame type strings on the wire.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSubscribed  = "subscribed"
	TypeProgress    = "progress"
	TypeComplete    = "complete"
	TypeError       = "error"
	TypeCanceled    = "canceled"
)

// Frame is the wire message shape used in both directions. Fields are
// populated according to Type; everything else stays zero.
type Frame struct {
	Type       string  `json:"type"`
	RenderID   string  `json:"renderId,omitempty"`
	Percent    float64 `json:"percent,omitempty"`
	Message    string  `json:"message,omitempty"`
	Step       string  `json:"step,omitempty"`
	OutputPath string  `json:"outputPath,omitempty"`
	FileSize   int64   `json:"fileSize,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// EventType identifies a channel event.
type EventType string

const (
	EventSubscribed EventType = "subscribed"
	EventProgress   EventType = "progress"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
	EventCanceled   EventType = "canceled"
)

// Event is what the channel surfaces to the UI.
type Event struct {
	Type       EventType
	RenderID   string
	Percent    float64
	Message    string
	Step       string
	OutputPath string
	FileSize   int64
	Err        error
}

// Terminal reports whether the event deterministically ends the session.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventComplete, EventError, EventCanceled:
		return true
	}
	return false
}

// ErrReconnectExceeded is surfaced when the channel gives up reconnecting.
var ErrReconnectExceeded = errors.New("render channel: reconnect attempts exhausted")
