package deck

import (
	"github.com/satindergrewal/vjdeck/internal/mixer"
)

// --- Crossfader ---

func (s *State) Crossfader() mixer.CrossfaderInfo {
	s.xfMu.RLock()
	defer s.xfMu.RUnlock()
	return s.xf.Info()
}

// VolumeFor is the crossfader weight deck id gets on the next pump cycle.
func (s *State) VolumeFor(id int) float32 {
	s.xfMu.RLock()
	defer s.xfMu.RUnlock()
	return s.xf.VolumeFor(id)
}

func (s *State) SetCrossfaderPosition(p float32) {
	s.xfMu.Lock()
	defer s.xfMu.Unlock()
	s.xf.SetPosition(p)
}

func (s *State) SetCrossfaderEnabled(enabled bool) {
	s.xfMu.Lock()
	defer s.xfMu.Unlock()
	s.xf.Enabled = enabled
}

// ToggleCrossfader flips the enabled flag and returns the new value.
func (s *State) ToggleCrossfader() bool {
	s.xfMu.Lock()
	defer s.xfMu.Unlock()
	s.xf.Enabled = !s.xf.Enabled
	return s.xf.Enabled
}

func (s *State) SetCrossfaderCurve(name string) error {
	curve, err := mixer.ParseCurve(name)
	if err != nil {
		return err
	}
	s.xfMu.Lock()
	defer s.xfMu.Unlock()
	s.xf.Curve = curve
	return nil
}

// AssignCrossfader puts deck id on side "a", "b" or "none".
func (s *State) AssignCrossfader(id int, side string) error {
	if err := checkID(id); err != nil {
		return err
	}
	sd, err := mixer.ParseSide(side)
	if err != nil {
		return err
	}
	s.xfMu.Lock()
	defer s.xfMu.Unlock()
	return s.xf.Assign(id, sd)
}

// --- Compositor ---

func (s *State) Compositor() mixer.CompositorInfo {
	s.compMu.RLock()
	defer s.compMu.RUnlock()
	return s.comp.Info()
}

// CompositorUpdate changes whichever fields are non-nil.
type CompositorUpdate struct {
	Enabled          *bool
	Width            *int
	Height           *int
	LinkToCrossfader *bool
}

func (s *State) UpdateCompositor(u CompositorUpdate) error {
	s.compMu.Lock()
	defer s.compMu.Unlock()
	if u.Width != nil || u.Height != nil {
		w, h := s.comp.Width, s.comp.Height
		if u.Width != nil {
			w = *u.Width
		}
		if u.Height != nil {
			h = *u.Height
		}
		if err := s.comp.SetResolution(w, h); err != nil {
			return err
		}
	}
	if u.Enabled != nil {
		s.comp.Enabled = *u.Enabled
	}
	if u.LinkToCrossfader != nil {
		s.comp.LinkToCrossfader = *u.LinkToCrossfader
	}
	return nil
}

// LayerUpdate changes whichever per-deck compositor fields are non-nil.
type LayerUpdate struct {
	Opacity   *float32
	BlendMode *string
	Order     *int
	Enabled   *bool
}

// UpdateLayer validates every field before applying any of them.
func (s *State) UpdateLayer(id int, u LayerUpdate) error {
	if err := checkID(id); err != nil {
		return err
	}
	if u.BlendMode != nil {
		if _, err := mixer.ParseBlendMode(*u.BlendMode); err != nil {
			return err
		}
	}
	s.compMu.Lock()
	defer s.compMu.Unlock()
	if u.Opacity != nil {
		s.comp.SetOpacity(id, *u.Opacity)
	}
	if u.BlendMode != nil {
		s.comp.SetBlendMode(id, *u.BlendMode)
	}
	if u.Order != nil {
		s.comp.SetLayerOrder(id, *u.Order)
	}
	if u.Enabled != nil {
		s.comp.SetDeckEnabled(id, *u.Enabled)
	}
	return nil
}

// DrawOrder lists enabled compositor layers bottom to top.
func (s *State) DrawOrder() []int {
	s.compMu.RLock()
	defer s.compMu.RUnlock()
	return s.comp.DrawOrder()
}
