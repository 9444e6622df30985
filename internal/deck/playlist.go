package deck

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

// PlaylistSettings updates whichever fields are non-nil.
type PlaylistSettings struct {
	Shuffle       *bool
	AutoCycle     *bool
	CycleDuration *time.Duration
}

func (s *State) Playlist(id int) (playlist.Info, error) {
	var info playlist.Info
	err := s.withDeck(id, func(d *Deck) error {
		info = d.Playlist.Info()
		return nil
	})
	return info, err
}

func (s *State) PlaylistAdd(id int, item playlist.Item) error {
	return s.withDeck(id, func(d *Deck) error {
		d.Playlist.Add(item)
		return nil
	})
}

func (s *State) PlaylistInsert(id, index int, item playlist.Item) error {
	return s.withDeck(id, func(d *Deck) error {
		return d.Playlist.Insert(index, item)
	})
}

func (s *State) PlaylistRemove(id, index int) error {
	return s.withDeck(id, func(d *Deck) error {
		_, err := d.Playlist.Remove(index)
		return err
	})
}

func (s *State) PlaylistClear(id int) error {
	return s.withDeck(id, func(d *Deck) error {
		d.Playlist.Clear()
		return nil
	})
}

func (s *State) PlaylistMove(id, from, to int) error {
	return s.withDeck(id, func(d *Deck) error {
		return d.Playlist.Move(from, to)
	})
}

// PlaylistNext advances deck id's playlist and loads the new preset when the
// deck is running. ok is false for an empty playlist.
func (s *State) PlaylistNext(id int) (path string, ok bool, err error) {
	return s.step(id, (*playlist.Playlist).Advance)
}

// PlaylistPrevious steps back one item, wrapping. Shuffle does not apply.
func (s *State) PlaylistPrevious(id int) (path string, ok bool, err error) {
	return s.step(id, (*playlist.Playlist).Previous)
}

func (s *State) step(id int, move func(*playlist.Playlist) (playlist.Item, bool)) (string, bool, error) {
	var (
		item playlist.Item
		ok   bool
		proc *renderer.Process
	)
	err := s.withDeck(id, func(d *Deck) error {
		item, ok = move(d.Playlist)
		if ok {
			d.PresetPath = item.Path
			proc = d.live()
		}
		return nil
	})
	if err != nil || !ok {
		return "", false, err
	}
	s.loadOn(id, proc, item.Path)
	return item.Path, true, nil
}

// PlaylistJumpTo selects index and loads it when the deck is running.
func (s *State) PlaylistJumpTo(id, index int) (string, error) {
	var (
		item playlist.Item
		proc *renderer.Process
	)
	err := s.withDeck(id, func(d *Deck) error {
		var err error
		if item, err = d.Playlist.JumpTo(index); err != nil {
			return err
		}
		d.PresetPath = item.Path
		proc = d.live()
		return nil
	})
	if err != nil {
		return "", err
	}
	s.loadOn(id, proc, item.Path)
	return item.Path, nil
}

// loadOn sends a preset change to proc if there is one. Failures are logged;
// the playlist has already moved.
func (s *State) loadOn(id int, proc *renderer.Process, path string) {
	if proc == nil {
		return
	}
	if err := proc.Send(renderer.LoadPreset(path)); err != nil {
		slog.Warn("playlist preset load failed", "deck", id, "path", path, "error", err)
	}
}

// PlaylistSettings applies shuffle, auto-cycle and cycle duration changes.
// Turning auto-cycle on restarts the cycle clock.
func (s *State) PlaylistSettings(id int, ps PlaylistSettings) error {
	return s.withDeck(id, func(d *Deck) error {
		if ps.Shuffle != nil {
			d.Playlist.Shuffle = *ps.Shuffle
		}
		if ps.AutoCycle != nil {
			d.Playlist.AutoCycle = *ps.AutoCycle
			if *ps.AutoCycle {
				d.lastCycle = time.Now()
			}
		}
		if ps.CycleDuration != nil {
			d.Playlist.SetCycleDuration(*ps.CycleDuration)
		}
		return nil
	})
}

// PlaylistSave writes deck id's playlist to a YAML file.
func (s *State) PlaylistSave(id int, path string) error {
	var cp playlist.Playlist
	if err := s.withDeck(id, func(d *Deck) error {
		cp = *d.Playlist
		cp.Items = slices.Clone(d.Playlist.Items)
		return nil
	}); err != nil {
		return err
	}
	if err := playlist.SaveFile(path, &cp); err != nil {
		return fmt.Errorf("save deck %d playlist: %w", id, err)
	}
	return nil
}

// PlaylistLoad replaces deck id's playlist with the one stored at path.
func (s *State) PlaylistLoad(id int, path string) error {
	if err := checkID(id); err != nil {
		return err
	}
	pl, err := playlist.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load deck %d playlist: %w", id, err)
	}
	return s.withDeck(id, func(d *Deck) error {
		d.Playlist = pl
		d.lastCycle = time.Time{}
		if pl.AutoCycle {
			d.lastCycle = time.Now()
		}
		return nil
	})
}
