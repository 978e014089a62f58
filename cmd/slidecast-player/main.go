// ABOUTME: Entry point for the slidecast timeline player
// ABOUTME: Loads a slide manifest, drives the engine per frame, and hosts the TUI
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/slidecast/slidecast-go/internal/assets"
	"github.com/slidecast/slidecast-go/internal/discovery"
	"github.com/slidecast/slidecast-go/internal/player"
	"github.com/slidecast/slidecast-go/internal/render"
	"github.com/slidecast/slidecast-go/internal/timeline"
	"github.com/slidecast/slidecast-go/internal/ui"
	"github.com/slidecast/slidecast-go/internal/version"
)

var (
	manifestPath = flag.String("manifest", "", "Path to slide manifest JSON (required)")
	deckName     = flag.String("deck", "", "Deck display name")
	renderJob    = flag.String("render", "", "Render job ID to watch for progress")
	renderServer = flag.String("render-server", "", "Render service websocket URL (skip mDNS)")
	logFile      = flag.String("log-file", "slidecast-player.log", "Log file path")
	seekStepMs   = flag.Int64("seek-step-ms", 5000, "Arrow-key seek step in milliseconds")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// manifestEntry mirrors the persistence boundary: one slide's voiceover.
type manifestEntry struct {
	SlideID    string `json:"slideId"`
	AudioURL   string `json:"audioUrl"`
	DurationMs int64  `json:"durationMs"`
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: slidecast-player -manifest deck.json [-render jobID]")
		os.Exit(1)
	}

	// TUI owns the terminal; logs go to a file
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(f)

	log.Printf("%s %s starting", version.Product, version.Version)

	clips, err := loadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("failed to load manifest: %v", err)
	}

	out, err := player.NewOutput()
	if err != nil {
		log.Fatalf("failed to open audio device: %v", err)
	}
	defer out.Close()

	cache := assets.NewCache(out.Format())

	transport := ui.NewTransport()
	prog, err := ui.Run(transport)
	if err != nil {
		log.Fatalf("failed to start TUI: %v", err)
	}

	engine := player.NewController(out, cache, player.Events{
		OnSlideChange: func(slideID string) {
			log.Printf("Slide changed: %s", slideID)
		},
		OnPlaybackEnd: func() {
			log.Printf("Playback finished")
		},
	})
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runEngine(ctx, engine, clips, transport, prog, cancel)

	if *renderJob != "" {
		go watchRender(ctx, *renderJob, *renderServer, prog)
	}

	prog.Send(ui.StatusMsg{
		DeckName:   *deckName,
		SlideCount: len(clips),
	})

	// Shut down cleanly on signals too
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
		prog.Quit()
	}()

	if _, err := prog.Run(); err != nil {
		log.Printf("TUI error: %v", err)
	}
	cancel()
}

// loadManifest reads the slide list and lays clips end to end on the
// logical timeline, the same accumulation the deck editor performs.
func loadManifest(path string) ([]timeline.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	clips := make([]timeline.Clip, 0, len(entries))
	var cursor int64
	for _, e := range entries {
		clips = append(clips, timeline.Clip{
			SlideID:    e.SlideID,
			URL:        e.AudioURL,
			StartMs:    cursor,
			DurationMs: e.DurationMs,
		})
		cursor += e.DurationMs
	}

	return clips, nil
}

// runEngine loads the clips, then drives per-frame ticks and transport
// commands until the context ends.
func runEngine(ctx context.Context, engine *player.Controller, clips []timeline.Clip,
	transport *ui.Transport, prog *tea.Program, quit func()) {

	loading := true
	prog.Send(ui.StatusMsg{Status: player.StatusLoading, Loading: &loading})

	if err := engine.LoadClips(ctx, clips); err != nil {
		log.Printf("Clip load failed: %v", err)
		return
	}

	loading = false
	prog.Send(ui.StatusMsg{Status: player.StatusReady, Loading: &loading})

	// ~60fps reporting tick, the host-side stand-in for animation frames
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			engine.Stop()
			return

		case <-ticker.C:
			engine.Tick()
			sendStatus(engine, prog)

		case cmd := <-transport.Commands:
			applyCommand(engine, cmd, quit)
			sendStatus(engine, prog)
		}
	}
}

// applyCommand maps one TUI transport command onto the engine.
func applyCommand(engine *player.Controller, cmd ui.Command, quit func()) {
	switch cmd {
	case ui.CmdTogglePlay:
		if engine.State().IsPlaying {
			engine.Pause()
		} else if err := engine.Play(); err != nil {
			log.Printf("Play failed: %v", err)
		}
	case ui.CmdStop:
		engine.Stop()
	case ui.CmdSeekBack:
		engine.SeekTo(engine.State().CurrentTimeMs - *seekStepMs)
	case ui.CmdSeekForward:
		engine.SeekTo(engine.State().CurrentTimeMs + *seekStepMs)
	case ui.CmdRestart:
		engine.SeekTo(0)
	case ui.CmdQuit:
		engine.Stop()
		quit()
	}
}

// sendStatus pushes an engine snapshot into the TUI.
func sendStatus(engine *player.Controller, prog *tea.Program) {
	state := engine.State()
	stats := engine.Stats()

	prog.Send(ui.StatusMsg{
		Status:      state.Status,
		HasPosition: true,
		CurrentMs:   state.CurrentTimeMs,
		DurationMs:  state.DurationMs,
		SlideID:     engine.ActiveSlide(),
		Sessions:    stats.Sessions,
		Scheduled:   stats.Scheduled,
		Skipped:     stats.Skipped,
	})
}

// watchRender subscribes to render job progress, discovering the service
// over mDNS when no explicit endpoint was given.
func watchRender(ctx context.Context, jobID, serverURL string, prog *tea.Program) {
	if serverURL == "" {
		mgr := discovery.NewManager()
		mgr.Browse()
		defer mgr.Stop()

		select {
		case svc := <-mgr.Services():
			serverURL = fmt.Sprintf("ws://%s:%d/render", svc.Host, svc.Port)
		case <-ctx.Done():
			return
		}
	}

	channel := render.NewChannel(render.Config{ServerURL: serverURL})
	defer channel.Disconnect()

	if err := channel.Connect(jobID); err != nil {
		log.Printf("Render channel connect failed: %v", err)
		prog.Send(ui.StatusMsg{RenderState: "unreachable"})
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-channel.Events():
			switch ev.Type {
			case render.EventSubscribed:
				prog.Send(ui.StatusMsg{RenderState: "rendering"})
			case render.EventProgress:
				prog.Send(ui.StatusMsg{
					RenderState:   "rendering",
					RenderPercent: ev.Percent,
					RenderStep:    ev.Step,
				})
			case render.EventComplete:
				prog.Send(ui.StatusMsg{RenderState: "complete", RenderPercent: 100})
				log.Printf("Render complete: %s (%d bytes)", ev.OutputPath, ev.FileSize)
				return
			case render.EventCanceled:
				prog.Send(ui.StatusMsg{RenderState: "canceled"})
				return
			case render.EventError:
				prog.Send(ui.StatusMsg{RenderState: "failed"})
				log.Printf("Render failed: %v", ev.Err)
				return
			}
		}
	}
}
