package deck

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

func TestPumpIdleCapture(t *testing.T) {
	s := New(Options{Capture: &fakeCapture{}})
	if n := s.Pump(time.Now()); n != 0 {
		t.Errorf("Pump = %d, want 0", n)
	}
	if lv := s.Levels(); lv != (audio.Levels{}) {
		t.Errorf("Levels = %+v, want zero", lv)
	}
}

func TestPumpForwardsScaledAudio(t *testing.T) {
	r := newRig(t, recordingRenderer)
	if err := r.state.StartDeck(0, StartOptions{}); err != nil {
		t.Fatalf("StartDeck: %v", err)
	}
	if err := r.state.SetVolume(0, 0.5); err != nil {
		t.Fatal(err)
	}

	r.capture.push([]float32{1, 1, -1, -1}, []float32{1, 1, -1, -1})
	if n := r.state.Pump(time.Now()); n != 2 {
		t.Errorf("Pump = %d, want 2 (one command per chunk, one live deck)", n)
	}
	if lv := r.state.Levels(); lv.Left != 1 || lv.Right != 1 {
		t.Errorf("Levels = %+v, want {1 1}", lv)
	}

	const scaled = `"samples":[0.5,0.5,-0.5,-0.5]`
	waitFor(t, "audio commands", func() bool { return r.count(scaled) == 2 })

	// An empty drain leaves the last levels in place.
	if n := r.state.Pump(time.Now()); n != 0 {
		t.Errorf("Pump with no audio = %d, want 0", n)
	}
	if lv := r.state.Levels(); lv.Left != 1 || lv.Right != 1 {
		t.Errorf("Levels after empty pump = %+v, want unchanged {1 1}", lv)
	}
}

func TestPumpAppliesCrossfader(t *testing.T) {
	r := newRig(t, recordingRenderer)
	for _, id := range []int{0, 2} {
		if err := r.state.StartDeck(id, StartOptions{}); err != nil {
			t.Fatalf("StartDeck(%d): %v", id, err)
		}
	}
	r.state.SetCrossfaderEnabled(true)
	r.state.SetCrossfaderPosition(0) // all side A

	r.capture.push([]float32{1, 1})
	if n := r.state.Pump(time.Now()); n != 2 {
		t.Errorf("Pump = %d, want 2", n)
	}
	waitFor(t, "both decks", func() bool {
		return r.count(`"samples":[1,1]`) == 1 && r.count(`"samples":[0,0]`) == 1
	})
}

func TestPumpAutoCycle(t *testing.T) {
	r := newRig(t, recordingRenderer)
	for _, p := range []string{"/a.milk", "/b.milk"} {
		r.state.PlaylistAdd(1, playlist.Item{Name: p, Path: p})
	}
	if err := r.state.StartDeck(1, StartOptions{}); err != nil {
		t.Fatalf("StartDeck: %v", err)
	}
	on := true
	if err := r.state.PlaylistSettings(1, PlaylistSettings{AutoCycle: &on}); err != nil {
		t.Fatal(err)
	}
	start := time.Now()

	r.state.Pump(start.Add(10 * time.Second))
	if info, _ := r.state.Playlist(1); info.CurrentIndex != 0 {
		t.Fatalf("advanced after 10s, want 30s cycle")
	}

	r.state.Pump(start.Add(31 * time.Second))
	info, _ := r.state.Playlist(1)
	if info.CurrentIndex != 1 {
		t.Fatalf("CurrentIndex after 31s = %d, want 1", info.CurrentIndex)
	}
	if got := r.state.Status().Decks[1].Preset; got != "/b.milk" {
		t.Errorf("Preset = %q, want /b.milk", got)
	}
	waitFor(t, "load_preset", func() bool { return r.count(`"path":"/b.milk"`) == 1 })

	// The clock restarts at the advance.
	r.state.Pump(start.Add(40 * time.Second))
	if info, _ := r.state.Playlist(1); info.CurrentIndex != 1 {
		t.Errorf("advanced again 9s after the last advance")
	}
}

func TestPumpSkipsStoppedDecks(t *testing.T) {
	r := newRig(t, recordingRenderer)
	r.state.PlaylistAdd(3, playlist.Item{Name: "a", Path: "/a.milk"})
	on := true
	r.state.PlaylistSettings(3, PlaylistSettings{AutoCycle: &on})

	r.capture.push([]float32{0.1, 0.1})
	if n := r.state.Pump(time.Now().Add(time.Hour)); n != 0 {
		t.Errorf("Pump with no live decks = %d, want 0", n)
	}
	if info, _ := r.state.Playlist(3); info.CurrentIndex != 0 {
		t.Errorf("stopped deck auto-cycled")
	}
}

func TestPumpFeedsTap(t *testing.T) {
	capture, tap := &fakeCapture{}, &fakeTap{}
	s := New(Options{Capture: capture, Tap: tap})
	capture.push([]float32{0.5, 0.5}, []float32{0.25})
	s.Pump(time.Now())
	if len(tap.chunks) != 2 || tap.chunks[1][0] != 0.25 {
		t.Errorf("tap got %v, want both chunks in order", tap.chunks)
	}
}

func TestRunPumpsUntilCancelled(t *testing.T) {
	capture := &fakeCapture{}
	s := New(Options{Capture: capture})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	capture.push([]float32{0.5, 0.5})
	waitFor(t, "levels", func() bool { return s.Levels().Left > 0 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// splitRenderer ignores its stdin on deck 0 and logs every command on the
// other decks.
const splitRenderer = `#!/bin/sh
case "$1" in
  *'"deck_id":0'*) exec sleep 30 ;;
esac
exec cat >> "LOGFILE"
`

func TestPumpStalledDeckDoesNotBlockOthers(t *testing.T) {
	r := newRig(t, splitRenderer)
	for _, id := range []int{0, 1} {
		if err := r.state.StartDeck(id, StartOptions{}); err != nil {
			t.Fatalf("StartDeck(%d): %v", id, err)
		}
	}

	chunk := make([]float32, 4096)
	for i := range chunk {
		chunk[i] = 0.5
	}
	const chunks = 10 // well past one pipe buffer
	for range chunks {
		r.capture.push(chunk)
	}

	done := make(chan int, 1)
	go func() { done <- r.state.Pump(time.Now()) }()
	select {
	case n := <-done:
		if n < chunks {
			t.Errorf("Pump = %d, want at least %d (every chunk to deck 1)", n, chunks)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Pump blocked on a deck that stopped reading")
	}
	audioLines := func() int { return r.count(`"type":"audio"`) }
	waitFor(t, "deck 1 audio", func() bool { return audioLines() == chunks })

	// The stalled deck now fails fast.
	r.capture.push([]float32{0.5, 0.5})
	start := time.Now()
	r.state.Pump(time.Now())
	if elapsed := time.Since(start); elapsed >= renderer.DefaultWriteTimeout {
		t.Errorf("second Pump took %v, want a fast failure on the stalled deck", elapsed)
	}
	waitFor(t, "deck 1 audio after stall", func() bool { return audioLines() == chunks+1 })
	if !strings.Contains(strings.Join(r.lines(), "\n"), `"samples":[0.5,0.5]`) {
		t.Error("deck 1 missed the chunk sent after the stall")
	}
}
