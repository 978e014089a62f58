// ABOUTME: Tests for the render progress channel
// ABOUTME: Tests subscribe flow, reconnection backoff, and terminal event handling
package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// renderServer is a scripted websocket endpoint. Each accepted connection
// runs the next script entry; a nil entry closes the socket abruptly.
type renderServer struct {
	t     *testing.T
	srv   *httptest.Server
	dials int64

	mu      sync.Mutex
	scripts []func(*websocket.Conn)
}

func newRenderServer(t *testing.T, scripts ...func(*websocket.Conn)) *renderServer {
	rs := &renderServer{t: t, scripts: scripts}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		atomic.AddInt64(&rs.dials, 1)

		rs.mu.Lock()
		var script func(*websocket.Conn)
		if len(rs.scripts) > 0 {
			script = rs.scripts[0]
			rs.scripts = rs.scripts[1:]
		}
		rs.mu.Unlock()

		if script != nil {
			script(conn)
		}
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *renderServer) url() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

func (rs *renderServer) dialCount() int64 {
	return atomic.LoadInt64(&rs.dials)
}

// expectSubscribe reads and validates the subscribe frame for jobID.
func expectSubscribe(t *testing.T, conn *websocket.Conn, jobID string) {
	t.Helper()
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Errorf("reading subscribe frame: %v", err)
		return
	}
	if frame.Type != TypeSubscribe || frame.RenderID != jobID {
		t.Errorf("expected subscribe for %q, got %+v", jobID, frame)
	}
}

func fastConfig(url string) Config {
	return Config{
		ServerURL:   url,
		MaxAttempts: 3,
		BackoffStep: 10 * time.Millisecond,
		MaxBackoff:  20 * time.Millisecond,
	}
}

// collect drains events until a terminal one arrives or the deadline hits.
func collect(t *testing.T, ch *Channel, deadline time.Duration) []Event {
	t.Helper()
	var events []Event
	timer := time.After(deadline)
	for {
		select {
		case ev := <-ch.Events():
			events = append(events, ev)
			if ev.Terminal() {
				return events
			}
		case <-timer:
			t.Fatalf("no terminal event within %v; got %v", deadline, events)
		}
	}
}

func TestSubscribeThroughCompletion(t *testing.T) {
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteJSON(Frame{Type: TypeSubscribed, RenderID: "job-1"})
		conn.WriteJSON(Frame{Type: TypeProgress, Percent: 30, Step: "encode"})
		conn.WriteJSON(Frame{Type: TypeProgress, Percent: 90, Step: "mux"})
		conn.WriteJSON(Frame{Type: TypeComplete, OutputPath: "/out/deck.mp4", FileSize: 1024})
	})

	ch := NewChannel(fastConfig(rs.url()))
	defer ch.Disconnect()

	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	events := collect(t, ch, 2*time.Second)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %v", len(events), events)
	}
	if events[0].Type != EventSubscribed {
		t.Errorf("expected subscribed first, got %v", events[0].Type)
	}
	if events[1].Percent != 30 || events[2].Percent != 90 {
		t.Errorf("unexpected progress percents: %v", events)
	}
	last := events[3]
	if last.Type != EventComplete || last.OutputPath != "/out/deck.mp4" || last.FileSize != 1024 {
		t.Errorf("unexpected completion event: %+v", last)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	rs := newRenderServer(t,
		func(conn *websocket.Conn) {
			expectSubscribe(t, conn, "job-1")
			conn.WriteJSON(Frame{Type: TypeSubscribed, RenderID: "job-1"})
			conn.WriteJSON(Frame{Type: TypeProgress, Percent: 40})
			// Abrupt close mid-job; the handler's deferred Close drops the socket
		},
		func(conn *websocket.Conn) {
			expectSubscribe(t, conn, "job-1")
			conn.WriteJSON(Frame{Type: TypeSubscribed, RenderID: "job-1"})
			conn.WriteJSON(Frame{Type: TypeComplete, OutputPath: "/out/deck.mp4"})
		},
	)

	ch := NewChannel(fastConfig(rs.url()))
	defer ch.Disconnect()

	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	events := collect(t, ch, 2*time.Second)
	last := events[len(events)-1]
	if last.Type != EventComplete {
		t.Errorf("expected completion after reconnect, got %+v", last)
	}
	if got := rs.dialCount(); got != 2 {
		t.Errorf("expected exactly 2 dials, got %d", got)
	}
}

func TestNoReconnectAfterTerminal(t *testing.T) {
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteJSON(Frame{Type: TypeError, Error: "encoder crashed"})
	})

	ch := NewChannel(fastConfig(rs.url()))
	defer ch.Disconnect()

	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	events := collect(t, ch, 2*time.Second)
	last := events[len(events)-1]
	if last.Type != EventError || last.Err == nil {
		t.Fatalf("expected error event, got %+v", last)
	}
	if last.Err.Error() != "encoder crashed" {
		t.Errorf("expected server error text, got %v", last.Err)
	}

	// Give any misbehaving reconnect loop time to dial again
	time.Sleep(100 * time.Millisecond)
	if got := rs.dialCount(); got != 1 {
		t.Errorf("expected no reconnection after terminal event, got %d dials", got)
	}
}

func TestGiveUpSurfacesError(t *testing.T) {
	// One scripted connection; every reconnect attempt hits a dead server
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteJSON(Frame{Type: TypeSubscribed, RenderID: "job-1"})
	})

	ch := NewChannel(fastConfig(rs.url()))
	defer ch.Disconnect()

	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	// Wait for the first connection to come up, then kill the server
	select {
	case ev := <-ch.Events():
		if ev.Type != EventSubscribed {
			t.Fatalf("expected subscribed, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("never subscribed")
	}
	rs.srv.CloseClientConnections()
	rs.srv.Close()

	events := collect(t, ch, 5*time.Second)
	last := events[len(events)-1]
	if last.Type != EventError || last.Err != ErrReconnectExceeded {
		t.Errorf("expected reconnect-exceeded error, got %+v", last)
	}
}

func TestMalformedFrameIgnored(t *testing.T) {
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteJSON(Frame{Type: TypeComplete})
	})

	ch := NewChannel(fastConfig(rs.url()))
	defer ch.Disconnect()

	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	events := collect(t, ch, 2*time.Second)
	if events[len(events)-1].Type != EventComplete {
		t.Errorf("expected completion despite garbage frame, got %v", events)
	}
}

func TestConnectFailsFastWhenServerDown(t *testing.T) {
	ch := NewChannel(fastConfig("ws://127.0.0.1:1/render"))
	if err := ch.Connect("job-1"); err == nil {
		t.Error("expected dial error for unreachable server")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteJSON(Frame{Type: TypeSubscribed, RenderID: "job-1"})
		// Hold the connection open until the client goes away
		conn.ReadMessage()
	})

	ch := NewChannel(fastConfig(rs.url()))
	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	ch.Disconnect()
	ch.Disconnect()

	// A torn-down channel must not reconnect
	time.Sleep(100 * time.Millisecond)
	if got := rs.dialCount(); got != 1 {
		t.Errorf("expected 1 dial, got %d", got)
	}
}

func TestDisconnectStopsReconnecting(t *testing.T) {
	// Both ends drop the socket after the subscribe; without a valid
	// session the drop handler must not redial
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteJSON(Frame{Type: TypeSubscribed, RenderID: "job-1"})
		conn.ReadMessage()
	})

	ch := NewChannel(fastConfig(rs.url()))
	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	ch.Disconnect()

	// Long enough for several backoff steps of a runaway reconnect loop
	time.Sleep(150 * time.Millisecond)
	if got := rs.dialCount(); got != 1 {
		t.Errorf("expected no reconnection after disconnect, got %d dials", got)
	}
}

func TestDisconnectDuringDial(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()
	defer close(release)

	ch := NewChannel(fastConfig("ws" + strings.TrimPrefix(srv.URL, "http")))

	done := make(chan error, 1)
	go func() { done <- ch.Connect("job-1") }()

	// The handshake is parked on the release channel
	time.Sleep(20 * time.Millisecond)
	disconnected := make(chan struct{})
	go func() {
		ch.Disconnect()
		close(disconnected)
	}()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect blocked behind an in-flight dial")
	}

	release <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("superseded connect returned error: %v", err)
	}

	select {
	case ev := <-ch.Events():
		t.Errorf("superseded session emitted %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCanceledIsTerminal(t *testing.T) {
	rs := newRenderServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn, "job-1")
		conn.WriteJSON(Frame{Type: TypeCanceled})
	})

	ch := NewChannel(fastConfig(rs.url()))
	defer ch.Disconnect()

	if err := ch.Connect("job-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	events := collect(t, ch, 2*time.Second)
	if events[len(events)-1].Type != EventCanceled {
		t.Errorf("expected canceled event, got %v", events)
	}
}
