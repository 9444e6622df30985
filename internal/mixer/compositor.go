package mixer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownBlendMode  = errors.New("unknown blend mode")
	ErrInvalidResolution = errors.New("invalid compositor resolution")
)

// BlendMode is how a deck layer combines with the layers below it.
type BlendMode int

const (
	Normal BlendMode = iota
	Add
	Multiply
	Screen
	Overlay
)

var blendNames = [...]string{"normal", "add", "multiply", "screen", "overlay"}

func (m BlendMode) String() string {
	if m >= 0 && int(m) < len(blendNames) {
		return blendNames[m]
	}
	return fmt.Sprintf("blend(%d)", int(m))
}

// ParseBlendMode is case-insensitive and accepts "additive" for Add.
func ParseBlendMode(s string) (BlendMode, error) {
	name := strings.ToLower(s)
	if name == "additive" {
		return Add, nil
	}
	for i, n := range blendNames {
		if n == name {
			return BlendMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (use normal, add, multiply, screen, overlay)", ErrUnknownBlendMode, s)
}

// Layer is one deck's compositor settings.
type Layer struct {
	Opacity float32
	Blend   BlendMode
	Order   int
	Enabled bool
}

// Compositor stores the configuration consumed by the video compositor.
// Nothing here touches pixels.
type Compositor struct {
	Enabled          bool
	Width            int
	Height           int
	Layers           [MaxDecks]Layer
	LinkToCrossfader bool
}

// LayerInfo is the serializable view of a Layer.
type LayerInfo struct {
	Opacity   float32 `json:"opacity"`
	BlendMode string  `json:"blend_mode"`
	Order     int     `json:"layer_order"`
	Enabled   bool    `json:"enabled"`
}

// CompositorInfo is the serializable view of a Compositor.
type CompositorInfo struct {
	Enabled          bool              `json:"enabled"`
	Width            int               `json:"output_width"`
	Height           int               `json:"output_height"`
	Decks            map[int]LayerInfo `json:"deck_settings"`
	LinkToCrossfader bool              `json:"link_to_crossfader"`
}

// NewCompositor returns the default configuration: disabled, 1920x1080,
// every deck fully opaque and stacked in id order.
func NewCompositor() *Compositor {
	c := &Compositor{
		Width:            1920,
		Height:           1080,
		LinkToCrossfader: true,
	}
	for i := range c.Layers {
		c.Layers[i] = Layer{Opacity: 1, Blend: Normal, Order: i, Enabled: true}
	}
	return c
}

func (c *Compositor) layer(id int) (*Layer, error) {
	if id < 0 || id >= MaxDecks {
		return nil, fmt.Errorf("compositor deck %d: %w", id, ErrInvalidDeck)
	}
	return &c.Layers[id], nil
}

// SetResolution rejects zero or negative dimensions.
func (c *Compositor) SetResolution(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d must be positive", ErrInvalidResolution, width, height)
	}
	c.Width, c.Height = width, height
	return nil
}

// SetOpacity clamps v to [0,1].
func (c *Compositor) SetOpacity(id int, v float32) error {
	l, err := c.layer(id)
	if err != nil {
		return err
	}
	l.Opacity = clamp01(v)
	return nil
}

func (c *Compositor) SetBlendMode(id int, name string) error {
	mode, err := ParseBlendMode(name)
	if err != nil {
		return err
	}
	l, err := c.layer(id)
	if err != nil {
		return err
	}
	l.Blend = mode
	return nil
}

func (c *Compositor) SetLayerOrder(id, order int) error {
	l, err := c.layer(id)
	if err != nil {
		return err
	}
	l.Order = order
	return nil
}

func (c *Compositor) SetDeckEnabled(id int, enabled bool) error {
	l, err := c.layer(id)
	if err != nil {
		return err
	}
	l.Enabled = enabled
	return nil
}

// DrawOrder lists enabled decks bottom to top. Ties on layer order fall back
// to deck id.
func (c *Compositor) DrawOrder() []int {
	var ids []int
	for i, l := range c.Layers {
		if l.Enabled {
			ids = append(ids, i)
		}
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return c.Layers[ids[a]].Order < c.Layers[ids[b]].Order
	})
	return ids
}

// EffectiveOpacity folds the crossfader weight into the layer opacity when
// the compositor is linked to it.
func (c *Compositor) EffectiveOpacity(id int, xf *Crossfader) float32 {
	if id < 0 || id >= MaxDecks {
		return 0
	}
	l := c.Layers[id]
	if !l.Enabled {
		return 0
	}
	if c.LinkToCrossfader && xf != nil {
		return l.Opacity * xf.VolumeFor(id)
	}
	return l.Opacity
}

// Info copies the compositor for serialization.
func (c *Compositor) Info() CompositorInfo {
	decks := make(map[int]LayerInfo, MaxDecks)
	for i, l := range c.Layers {
		decks[i] = LayerInfo{
			Opacity:   l.Opacity,
			BlendMode: l.Blend.String(),
			Order:     l.Order,
			Enabled:   l.Enabled,
		}
	}
	return CompositorInfo{
		Enabled:          c.Enabled,
		Width:            c.Width,
		Height:           c.Height,
		Decks:            decks,
		LinkToCrossfader: c.LinkToCrossfader,
	}
}
