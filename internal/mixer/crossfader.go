package mixer

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// MaxDecks is the number of deck slots the mixer knows about.
const MaxDecks = 4

var (
	ErrUnknownCurve = errors.New("unknown crossfader curve")
	ErrUnknownSide  = errors.New("unknown crossfader side")
	ErrInvalidDeck  = errors.New("invalid deck id")
)

// Curve selects how position maps to per-side gain.
type Curve int

const (
	Linear Curve = iota
	EqualPower
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case EqualPower:
		return "equal_power"
	}
	return fmt.Sprintf("curve(%d)", int(c))
}

// ParseCurve accepts "linear", "equal_power" and "equalPower".
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "linear":
		return Linear, nil
	case "equal_power", "equalPower":
		return EqualPower, nil
	}
	return 0, fmt.Errorf("%w: %q (use linear or equal_power)", ErrUnknownCurve, s)
}

// Side is a crossfader assignment.
type Side string

const (
	SideA    Side = "a"
	SideB    Side = "b"
	SideNone Side = "none"
)

// ParseSide accepts a, b or none in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	case SideNone:
		return SideNone, nil
	}
	return "", fmt.Errorf("%w: %q (use a, b or none)", ErrUnknownSide, s)
}

// Crossfader weights decks on side A against decks on side B.
// Callers provide their own locking.
type Crossfader struct {
	Position float32
	SideA    []int
	SideB    []int
	Curve    Curve
	Enabled  bool
}

// CrossfaderInfo is the serializable view of a Crossfader.
type CrossfaderInfo struct {
	Position float32 `json:"position"`
	SideA    []int   `json:"side_a"`
	SideB    []int   `json:"side_b"`
	Curve    string  `json:"curve"`
	Enabled  bool    `json:"enabled"`
}

// NewCrossfader returns the default layout: decks 0 and 1 on A, 2 and 3 on
// B, centered, equal-power, disabled.
func NewCrossfader() *Crossfader {
	return &Crossfader{
		Position: 0.5,
		SideA:    []int{0, 1},
		SideB:    []int{2, 3},
		Curve:    EqualPower,
	}
}

// VolumeFor returns the gain multiplier for deck id. Disabled crossfaders
// and unassigned decks always get 1.
func (c *Crossfader) VolumeFor(id int) float32 {
	if !c.Enabled {
		return 1
	}
	p := float64(clamp01(c.Position))
	switch {
	case slices.Contains(c.SideA, id):
		return c.gain(1 - p)
	case slices.Contains(c.SideB, id):
		return c.gain(p)
	}
	return 1
}

func (c *Crossfader) gain(x float64) float32 {
	if c.Curve == EqualPower {
		return float32(math.Sqrt(x))
	}
	return float32(x)
}

// SetPosition clamps p to [0,1].
func (c *Crossfader) SetPosition(p float32) {
	c.Position = clamp01(p)
}

// Assign removes id from both sides, then adds it to side.
func (c *Crossfader) Assign(id int, side Side) error {
	if id < 0 || id >= MaxDecks {
		return fmt.Errorf("assign deck %d: %w", id, ErrInvalidDeck)
	}
	switch side {
	case SideA, SideB, SideNone:
	default:
		return fmt.Errorf("assign deck %d: %w: %q", id, ErrUnknownSide, side)
	}
	c.SideA = slices.DeleteFunc(c.SideA, func(d int) bool { return d == id })
	c.SideB = slices.DeleteFunc(c.SideB, func(d int) bool { return d == id })
	switch side {
	case SideA:
		c.SideA = append(c.SideA, id)
	case SideB:
		c.SideB = append(c.SideB, id)
	}
	return nil
}

// SideOf reports which side deck id is on. A deck listed on both sides
// reports A.
func (c *Crossfader) SideOf(id int) Side {
	switch {
	case slices.Contains(c.SideA, id):
		return SideA
	case slices.Contains(c.SideB, id):
		return SideB
	}
	return SideNone
}

// Info copies the crossfader for serialization.
func (c *Crossfader) Info() CrossfaderInfo {
	return CrossfaderInfo{
		Position: c.Position,
		SideA:    slices.Clone(c.SideA),
		SideB:    slices.Clone(c.SideB),
		Curve:    c.Curve.String(),
		Enabled:  c.Enabled,
	}
}

// Clone returns a deep copy, used to read weights outside the owner's lock.
func (c *Crossfader) Clone() *Crossfader {
	cp := *c
	cp.SideA = slices.Clone(c.SideA)
	cp.SideB = slices.Clone(c.SideB)
	return &cp
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
