package deck

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/mixer"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

// Capture is the audio source the pump drains. *audio.Engine implements it.
type Capture interface {
	Start(cfg audio.Config) error
	Stop()
	TryRecv() ([]float32, bool)
	IsRunning() bool
}

// Tap receives every captured chunk after levels are computed. Publish must
// not block.
type Tap interface {
	Publish(chunk []float32)
}

// Options configures a State.
type Options struct {
	RendererPath string // explicit renderer executable, searched first
	RendererName string
	PresetDir    string
	Width        int
	Height       int
	TexturePaths []string

	Audio   audio.Config
	Capture Capture // nil uses audio.NewEngine()
	Process renderer.Options
	Tap     Tap
}

// State is the shared application state. Sections are locked independently;
// code that needs several takes them in the order decks, audio, crossfader,
// compositor. No lock is held while writing to a renderer.
type State struct {
	opts Options

	decksMu sync.Mutex
	decks   [MaxDecks]*Deck

	capture Capture // locks itself

	xfMu sync.RWMutex
	xf   *mixer.Crossfader

	compMu sync.RWMutex
	comp   *mixer.Compositor

	levelsMu sync.Mutex
	levels   audio.Levels

	ctrlMu     sync.Mutex
	controller io.Closer
}

// New builds a State with every deck stopped.
func New(opts Options) *State {
	if opts.RendererName == "" {
		opts.RendererName = renderer.DefaultExecutable
	}
	if opts.PresetDir == "" {
		opts.PresetDir = playlist.DefaultPresetDir
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Capture == nil {
		opts.Capture = audio.NewEngine()
	}

	s := &State{
		opts:    opts,
		capture: opts.Capture,
		xf:      mixer.NewCrossfader(),
		comp:    mixer.NewCompositor(),
	}
	for i := range s.decks {
		s.decks[i] = newDeck(i)
	}
	return s
}

// PresetDir is the directory presets are discovered in.
func (s *State) PresetDir() string { return s.opts.PresetDir }

// StartDeck spawns a renderer for deck id. It fails with ErrDeckRunning when
// the deck already has a live process; a dead one is replaced.
func (s *State) StartDeck(id int, so StartOptions) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.decksMu.Lock()
	d := s.decks[id]
	if d.starting || d.live() != nil {
		s.decksMu.Unlock()
		return fmt.Errorf("start deck %d: %w", id, ErrDeckRunning)
	}
	exe, err := renderer.FindExecutable(s.opts.RendererName, s.opts.RendererPath)
	if err != nil {
		s.decksMu.Unlock()
		return fmt.Errorf("start deck %d: %w", id, err)
	}
	d.starting = true
	preset := so.PresetPath
	if preset == "" {
		preset = d.PresetPath
	}
	if preset == "" {
		if item, ok := d.Playlist.CurrentItem(); ok {
			preset = item.Path
		}
	}
	sensitivity := d.BeatSensitivity
	s.decksMu.Unlock()

	if preset == "" {
		preset = s.defaultPreset()
	}
	cfg := renderer.StartupConfig{
		Width:        orDefault(so.Width, s.opts.Width),
		Height:       orDefault(so.Height, s.opts.Height),
		PresetPath:   preset,
		Fullscreen:   so.Fullscreen,
		DeckID:       id,
		MonitorIndex: so.MonitorIndex,
		TexturePaths: so.TexturePaths,
	}
	if cfg.TexturePaths == nil {
		cfg.TexturePaths = s.opts.TexturePaths
	}

	proc, err := renderer.Start(exe, cfg, s.opts.Process)

	s.decksMu.Lock()
	d.starting = false
	if err != nil {
		s.decksMu.Unlock()
		return fmt.Errorf("start deck %d: %w", id, err)
	}
	old := d.proc
	if old != nil {
		d.crashes += old.CrashCount()
	}
	d.proc = proc
	d.Active = true
	d.PresetPath = preset
	d.VideoOutput, d.NDIOutput = false, false
	if d.Playlist.AutoCycle {
		d.lastCycle = time.Now()
	}
	s.decksMu.Unlock()

	if old != nil {
		old.Close()
	}
	if sensitivity != 1 {
		if err := proc.Send(renderer.SetBeatSensitivity(sensitivity)); err != nil {
			slog.Warn("restore beat sensitivity failed", "deck", id, "error", err)
		}
	}
	slog.Info("deck started", "deck", id, "preset", preset, "width", cfg.Width, "height", cfg.Height)
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (s *State) defaultPreset() string {
	if p, ok := playlist.FirstPreset(filepath.Join(s.opts.PresetDir, defaultPresetSubdir)); ok {
		return p
	}
	p, _ := playlist.FirstPreset(s.opts.PresetDir)
	return p
}

// StopDeck stops deck id's renderer and waits until it is gone.
func (s *State) StopDeck(id int) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.decksMu.Lock()
	d := s.decks[id]
	proc := d.proc
	d.proc = nil
	d.Active = false
	s.decksMu.Unlock()

	if proc == nil {
		return fmt.Errorf("stop deck %d: %w", id, ErrDeckNotRunning)
	}
	proc.Stop()

	s.decksMu.Lock()
	d.crashes += proc.CrashCount()
	s.decksMu.Unlock()

	slog.Info("deck stopped", "deck", id)
	return nil
}

// liveProc returns deck id's running process or ErrDeckNotRunning.
func (s *State) liveProc(id int) (*renderer.Process, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	s.decksMu.Lock()
	defer s.decksMu.Unlock()
	p := s.decks[id].live()
	if p == nil {
		return nil, fmt.Errorf("deck %d: %w", id, ErrDeckNotRunning)
	}
	return p, nil
}

// withDeck runs fn on deck id under the deck lock.
func (s *State) withDeck(id int, fn func(d *Deck) error) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.decksMu.Lock()
	defer s.decksMu.Unlock()
	return fn(s.decks[id])
}

func (s *State) LoadPreset(id int, path string) error {
	p, err := s.liveProc(id)
	if err != nil {
		return err
	}
	if err := p.Send(renderer.LoadPreset(path)); err != nil {
		return err
	}
	return s.withDeck(id, func(d *Deck) error {
		d.PresetPath = path
		return nil
	})
}

// RandomPreset loads a preset picked at random from the preset directory.
func (s *State) RandomPreset(id int) (string, error) {
	if _, err := s.liveProc(id); err != nil {
		return "", err
	}
	items := playlist.Scan(s.opts.PresetDir)
	if len(items) == 0 {
		return "", fmt.Errorf("random preset for deck %d: no presets in %s", id, s.opts.PresetDir)
	}
	path := items[rand.IntN(len(items))].Path
	return path, s.LoadPreset(id, path)
}

// SetVolume sets the deck's audio gain, clamped to [0,1]. It applies from the
// next pump cycle and does not need a running renderer.
func (s *State) SetVolume(id int, v float32) error {
	return s.withDeck(id, func(d *Deck) error {
		d.Volume = clamp01(v)
		return nil
	})
}

func (s *State) SetBeatSensitivity(id int, v float32) error {
	p, err := s.liveProc(id)
	if err != nil {
		return err
	}
	if err := p.Send(renderer.SetBeatSensitivity(v)); err != nil {
		return err
	}
	return s.withDeck(id, func(d *Deck) error {
		d.BeatSensitivity = v
		return nil
	})
}

func (s *State) ToggleFullscreen(id int) error {
	p, err := s.liveProc(id)
	if err != nil {
		return err
	}
	return p.Send(renderer.ToggleFullscreen())
}

// SetVideoOutput enables or disables the renderer's video sink. An empty
// devicePath lets the renderer pick one.
func (s *State) SetVideoOutput(id int, enabled bool, devicePath string) error {
	p, err := s.liveProc(id)
	if err != nil {
		return err
	}
	if err := p.Send(renderer.SetVideoOutput(enabled, devicePath)); err != nil {
		return err
	}
	return s.withDeck(id, func(d *Deck) error {
		d.VideoOutput = enabled
		return nil
	})
}

func (s *State) SetNDIOutput(id int, enabled bool, name string) error {
	p, err := s.liveProc(id)
	if err != nil {
		return err
	}
	if err := p.Send(renderer.SetNDIOutput(enabled, name)); err != nil {
		return err
	}
	return s.withDeck(id, func(d *Deck) error {
		d.NDIOutput = enabled
		return nil
	})
}

func (s *State) SetTexturePaths(id int, paths []string) error {
	p, err := s.liveProc(id)
	if err != nil {
		return err
	}
	return p.Send(renderer.SetTexturePaths(paths))
}

// --- Audio ---

// StartAudio starts capture on device, or on the configured device when
// device is empty. It is a no-op while capture is running.
func (s *State) StartAudio(device string) error {
	cfg := s.opts.Audio
	if device != "" {
		cfg.Device = device
	}
	return s.capture.Start(cfg)
}

// StopAudio stops capture and waits for the worker to exit.
func (s *State) StopAudio() {
	s.capture.Stop()
}

func (s *State) AudioRunning() bool {
	return s.capture.IsRunning()
}

// Levels returns the most recent VU reading.
func (s *State) Levels() audio.Levels {
	s.levelsMu.Lock()
	defer s.levelsMu.Unlock()
	return s.levels
}

// --- Controller ---

// SetController hands the running control surface to the state, closing any
// previous one. Close closes it.
func (s *State) SetController(c io.Closer) {
	s.ctrlMu.Lock()
	prev := s.controller
	s.controller = c
	s.ctrlMu.Unlock()
	if prev != nil {
		if err := prev.Close(); err != nil {
			slog.Warn("close controller failed", "error", err)
		}
	}
}

func (s *State) ControllerActive() bool {
	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	return s.controller != nil
}

// Close stops every deck and the capture engine and closes the controller.
func (s *State) Close() error {
	s.SetController(nil)
	for id := range MaxDecks {
		// Idle decks report ErrDeckNotRunning.
		_ = s.StopDeck(id)
	}
	s.capture.Stop()
	return nil
}
