package control

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/satindergrewal/vjdeck/internal/deck"
	"github.com/satindergrewal/vjdeck/internal/mixer"
	"github.com/satindergrewal/vjdeck/internal/playlist"
)

// pressThreshold is the value above which a button action fires.
const pressThreshold = 0.5

// maxBeatSensitivity is what a full-scale control maps to.
const maxBeatSensitivity = 2.0

// Target is the set of deck operations control surfaces drive.
// *deck.State implements it.
type Target interface {
	StartDeck(id int, so deck.StartOptions) error
	StopDeck(id int) error
	Status() deck.Status
	PresetDir() string
	LoadPreset(id int, path string) error
	RandomPreset(id int) (string, error)
	SetVolume(id int, v float32) error
	SetBeatSensitivity(id int, v float32) error
	ToggleFullscreen(id int) error
	SetVideoOutput(id int, enabled bool, devicePath string) error
	Playlist(id int) (playlist.Info, error)
	PlaylistNext(id int) (string, bool, error)
	PlaylistPrevious(id int) (string, bool, error)
	PlaylistSettings(id int, ps deck.PlaylistSettings) error
	Crossfader() mixer.CrossfaderInfo
	SetCrossfaderPosition(p float32)
	SetCrossfaderCurve(name string) error
	ToggleCrossfader() bool
}

// Event is one decoded control input. Value is normalized to [0,1].
type Event struct {
	Action Action  `json:"action"`
	Deck   int     `json:"deck"`
	Value  float32 `json:"value"`
}

// Dispatcher applies events to a Target. It is safe for concurrent use by
// several surfaces.
type Dispatcher struct {
	target Target

	mu      sync.Mutex
	library []playlist.Item // preset dir scan, loaded on first use
}

func NewDispatcher(t Target) *Dispatcher {
	return &Dispatcher{target: t}
}

// Apply performs e. Button actions with a value at or below 0.5 are ignored,
// so a release never fires twice.
func (d *Dispatcher) Apply(e Event) error {
	if !e.Action.Continuous() && e.Value <= pressThreshold {
		return nil
	}
	slog.Debug("control event", "action", e.Action, "deck", e.Deck, "value", e.Value)

	t := d.target
	id := e.Deck
	switch e.Action {
	case DeckStart:
		return t.StartDeck(id, deck.StartOptions{})
	case DeckStop:
		return t.StopDeck(id)
	case DeckToggle:
		running, err := d.running(id)
		if err != nil {
			return err
		}
		if running {
			return t.StopDeck(id)
		}
		return t.StartDeck(id, deck.StartOptions{})
	case DeckVolume:
		return t.SetVolume(id, e.Value)
	case BeatSensitivity:
		return t.SetBeatSensitivity(id, clamp01(e.Value)*maxBeatSensitivity)
	case NextPreset:
		return d.stepPreset(id, 1)
	case PreviousPreset:
		return d.stepPreset(id, -1)
	case RandomPreset:
		_, err := t.RandomPreset(id)
		return err
	case PlaylistNext:
		_, _, err := t.PlaylistNext(id)
		return err
	case PlaylistPrevious:
		_, _, err := t.PlaylistPrevious(id)
		return err
	case PlaylistToggleShuffle:
		info, err := t.Playlist(id)
		if err != nil {
			return err
		}
		on := !info.Shuffle
		return t.PlaylistSettings(id, deck.PlaylistSettings{Shuffle: &on})
	case PlaylistToggleAutoCycle:
		info, err := t.Playlist(id)
		if err != nil {
			return err
		}
		on := !info.AutoCycle
		return t.PlaylistSettings(id, deck.PlaylistSettings{AutoCycle: &on})
	case CrossfaderPosition:
		t.SetCrossfaderPosition(e.Value)
		return nil
	case CrossfaderCurve:
		next := mixer.Linear
		if t.Crossfader().Curve == mixer.Linear.String() {
			next = mixer.EqualPower
		}
		return t.SetCrossfaderCurve(next.String())
	case CrossfaderToggle:
		t.ToggleCrossfader()
		return nil
	case ToggleFullscreen:
		return t.ToggleFullscreen(id)
	case VideoOutputToggle:
		ds, err := d.deckStatus(id)
		if err != nil {
			return err
		}
		return t.SetVideoOutput(id, !ds.VideoOutput, "")
	}
	return fmt.Errorf("%w: %v", ErrUnknownAction, e.Action)
}

func (d *Dispatcher) deckStatus(id int) (deck.DeckStatus, error) {
	st := d.target.Status()
	if id < 0 || id >= len(st.Decks) {
		return deck.DeckStatus{}, fmt.Errorf("%w: %d", deck.ErrInvalidDeck, id)
	}
	return st.Decks[id], nil
}

func (d *Dispatcher) running(id int) (bool, error) {
	ds, err := d.deckStatus(id)
	return ds.Running, err
}

// stepPreset moves through the preset library relative to the deck's
// current preset, wrapping at either end. A deck showing a preset outside
// the library starts from the first entry.
func (d *Dispatcher) stepPreset(id, delta int) error {
	ds, err := d.deckStatus(id)
	if err != nil {
		return err
	}
	lib := d.presets()
	if len(lib) == 0 {
		return fmt.Errorf("step preset for deck %d: no presets in %s", id, d.target.PresetDir())
	}
	next := 0
	for i, it := range lib {
		if it.Path == ds.Preset {
			next = (i + delta + len(lib)) % len(lib)
			break
		}
	}
	return d.target.LoadPreset(id, lib[next].Path)
}

func (d *Dispatcher) presets() []playlist.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.library) == 0 {
		d.library = playlist.Scan(d.target.PresetDir())
	}
	return d.library
}

// Rescan drops the cached preset library.
func (d *Dispatcher) Rescan() {
	d.mu.Lock()
	d.library = nil
	d.mu.Unlock()
}

func clamp01(v float32) float32 {
	return max(0, min(1, v))
}
