package deck

import (
	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/mixer"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

// DeckStatus is one deck in a Status snapshot.
type DeckStatus struct {
	ID              int              `json:"id"`
	Running         bool             `json:"running"`
	Preset          string           `json:"preset,omitempty"`
	Volume          float32          `json:"volume"`
	BeatSensitivity float32          `json:"beat_sensitivity"`
	VideoOutput     bool             `json:"video_output"`
	NDIOutput       bool             `json:"ndi_output"`
	Playlist        playlist.Info    `json:"playlist"`
	Health          *renderer.Health `json:"health,omitempty"`
	Instance        string           `json:"instance,omitempty"`
	PID             int              `json:"pid,omitempty"`
	UptimeSecs      float64          `json:"uptime_secs,omitempty"`
	CrashCount      int              `json:"crash_count"`
	LastError       string           `json:"last_error,omitempty"`
	CrossfaderGain  float32          `json:"crossfader_gain"`
	Opacity         float32          `json:"opacity"`
}

// Status is a consistent snapshot of the whole state.
type Status struct {
	Decks          []DeckStatus         `json:"decks"`
	AudioRunning   bool                 `json:"audio_running"`
	Levels         audio.Levels         `json:"levels"`
	PresetDir      string               `json:"preset_dir"`
	Crossfader     mixer.CrossfaderInfo `json:"crossfader"`
	Compositor     mixer.CompositorInfo `json:"compositor"`
	DrawOrder      []int                `json:"draw_order"`
	ControllerLive bool                 `json:"controller_active"`
}

// Status polls every deck's process, so crashes are picked up here too.
func (s *State) Status() Status {
	s.decksMu.Lock()
	defer s.decksMu.Unlock()
	audioRunning := s.capture.IsRunning()
	s.xfMu.RLock()
	defer s.xfMu.RUnlock()
	s.compMu.RLock()
	defer s.compMu.RUnlock()

	st := Status{
		Decks:          make([]DeckStatus, 0, MaxDecks),
		AudioRunning:   audioRunning,
		Levels:         s.Levels(),
		PresetDir:      s.opts.PresetDir,
		Crossfader:     s.xf.Info(),
		Compositor:     s.comp.Info(),
		DrawOrder:      s.comp.DrawOrder(),
		ControllerLive: s.ControllerActive(),
	}
	for _, d := range s.decks {
		ds := DeckStatus{
			ID:              d.ID,
			Running:         d.live() != nil,
			Preset:          d.PresetPath,
			Volume:          d.Volume,
			BeatSensitivity: d.BeatSensitivity,
			VideoOutput:     d.VideoOutput,
			NDIOutput:       d.NDIOutput,
			Playlist:        d.Playlist.Info(),
			CrashCount:      d.crashCount(),
			CrossfaderGain:  s.xf.VolumeFor(d.ID),
			Opacity:         s.comp.EffectiveOpacity(d.ID, s.xf),
		}
		if p := d.proc; p != nil {
			h := p.Health()
			ds.Health = &h
			ds.Instance = p.ID().String()
			ds.PID = p.PID()
			ds.LastError = p.LastError()
			if ds.Running {
				ds.UptimeSecs = p.Uptime().Seconds()
			}
		}
		st.Decks = append(st.Decks, ds)
	}
	return st
}
