// Package deck holds the shared application state: the four deck slots,
// the capture engine, the crossfader and compositor configuration and the
// latest VU levels. Every control surface goes through a *State.
package deck

import (
	"errors"
	"fmt"
	"time"

	"github.com/satindergrewal/vjdeck/internal/mixer"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

// MaxDecks is the fixed number of deck slots.
const MaxDecks = mixer.MaxDecks

const (
	DefaultWidth  = 1280
	DefaultHeight = 720

	// defaultPresetSubdir is tried before the whole preset tree when a deck
	// starts without a preset.
	defaultPresetSubdir = "presets_milkdrop_104"
)

var (
	ErrInvalidDeck    = errors.New("invalid deck id")
	ErrDeckRunning    = errors.New("deck already running")
	ErrDeckNotRunning = errors.New("deck not running")
)

// Deck is one visualization slot. Fields are guarded by the State's deck lock.
type Deck struct {
	ID              int
	PresetPath      string
	Volume          float32
	BeatSensitivity float32
	Active          bool
	VideoOutput     bool
	NDIOutput       bool
	Playlist        *playlist.Playlist

	lastCycle time.Time
	proc      *renderer.Process
	starting  bool
	crashes   int // from processes this deck has already let go of
}

func newDeck(id int) *Deck {
	return &Deck{
		ID:              id,
		Volume:          1,
		BeatSensitivity: 1,
		Playlist:        playlist.New(),
	}
}

// live returns the deck's process when it is still running. The poll also
// records a crash the first time the exit is seen.
func (d *Deck) live() *renderer.Process {
	if d.proc == nil || !d.proc.IsRunning() {
		return nil
	}
	return d.proc
}

func (d *Deck) crashCount() int {
	n := d.crashes
	if d.proc != nil {
		n += d.proc.CrashCount()
	}
	return n
}

// dueAdvance advances the playlist when auto-cycle is on and the cycle
// duration has passed since the last advance. The first call after cycling
// was enabled only starts the clock.
func (d *Deck) dueAdvance(now time.Time) (string, bool) {
	pl := d.Playlist
	if !pl.AutoCycle || pl.Len() == 0 {
		return "", false
	}
	if d.lastCycle.IsZero() {
		d.lastCycle = now
		return "", false
	}
	if now.Sub(d.lastCycle) < pl.CycleDuration {
		return "", false
	}
	item, ok := pl.Advance()
	if !ok {
		return "", false
	}
	d.lastCycle = now
	d.PresetPath = item.Path
	return item.Path, true
}

// StartOptions parameterizes StartDeck. Zero values fall back to the state's
// defaults.
type StartOptions struct {
	PresetPath   string
	Width        int
	Height       int
	Fullscreen   bool
	MonitorIndex *int
	TexturePaths []string
}

func checkID(id int) error {
	if id < 0 || id >= MaxDecks {
		return fmt.Errorf("deck %d: %w (must be 0-%d)", id, ErrInvalidDeck, MaxDecks-1)
	}
	return nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
