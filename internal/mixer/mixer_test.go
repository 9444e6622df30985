package mixer

import (
	"errors"
	"math"
	"testing"
)

// --- Crossfader ---

func TestCrossfaderDefaults(t *testing.T) {
	c := NewCrossfader()
	if c.Position != 0.5 {
		t.Errorf("Position = %v, want 0.5", c.Position)
	}
	if c.Curve != EqualPower {
		t.Errorf("Curve = %v, want equal_power", c.Curve)
	}
	if c.Enabled {
		t.Error("Enabled = true, want false")
	}
	for id, want := range []Side{SideA, SideA, SideB, SideB} {
		if got := c.SideOf(id); got != want {
			t.Errorf("SideOf(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestVolumeDisabledIsUnity(t *testing.T) {
	c := NewCrossfader()
	c.SideA = []int{0, 1, 2}
	c.SideB = []int{2, 3}
	for _, curve := range []Curve{Linear, EqualPower} {
		c.Curve = curve
		for _, p := range []float32{0, 0.25, 0.5, 1} {
			c.Position = p
			for id := 0; id < MaxDecks; id++ {
				if got := c.VolumeFor(id); got != 1 {
					t.Errorf("disabled %v p=%v VolumeFor(%d) = %v, want 1", curve, p, id, got)
				}
			}
		}
	}
}

func TestVolumeUnassignedIsUnity(t *testing.T) {
	c := NewCrossfader()
	c.Enabled = true
	c.Position = 0.1
	if err := c.Assign(3, SideNone); err != nil {
		t.Fatal(err)
	}
	if got := c.VolumeFor(3); got != 1 {
		t.Errorf("VolumeFor(unassigned) = %v, want 1", got)
	}
}

func TestVolumeLinear(t *testing.T) {
	c := NewCrossfader()
	c.Enabled = true
	c.Curve = Linear
	tests := []struct {
		pos   float32
		wantA float32
		wantB float32
	}{
		{0, 1, 0},
		{0.25, 0.75, 0.25},
		{0.5, 0.5, 0.5},
		{1, 0, 1},
	}
	for _, tt := range tests {
		c.SetPosition(tt.pos)
		if got := c.VolumeFor(0); math.Abs(float64(got-tt.wantA)) > 1e-6 {
			t.Errorf("p=%v side A = %v, want %v", tt.pos, got, tt.wantA)
		}
		if got := c.VolumeFor(2); math.Abs(float64(got-tt.wantB)) > 1e-6 {
			t.Errorf("p=%v side B = %v, want %v", tt.pos, got, tt.wantB)
		}
	}
}

func TestVolumeEqualPowerConstant(t *testing.T) {
	c := NewCrossfader()
	c.Enabled = true
	c.Curve = EqualPower
	for i := 0; i <= 100; i++ {
		c.SetPosition(float32(i) / 100)
		a := float64(c.VolumeFor(0))
		b := float64(c.VolumeFor(3))
		if sum := a*a + b*b; math.Abs(sum-1) > 1e-5 {
			t.Errorf("p=%v: A^2+B^2 = %v, want 1", c.Position, sum)
		}
	}
}

func TestSetPositionClamps(t *testing.T) {
	c := NewCrossfader()
	c.SetPosition(-2)
	if c.Position != 0 {
		t.Errorf("Position = %v, want 0", c.Position)
	}
	c.SetPosition(7)
	if c.Position != 1 {
		t.Errorf("Position = %v, want 1", c.Position)
	}
}

func TestAssignIsExclusive(t *testing.T) {
	c := NewCrossfader()
	c.SideB = append(c.SideB, 0) // misconfigured: 0 on both sides

	if err := c.Assign(0, SideB); err != nil {
		t.Fatal(err)
	}
	for _, id := range c.SideA {
		if id == 0 {
			t.Error("deck 0 still on side A")
		}
	}
	count := 0
	for _, id := range c.SideB {
		if id == 0 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("deck 0 appears %d times on side B, want 1", count)
	}

	if err := c.Assign(0, SideNone); err != nil {
		t.Fatal(err)
	}
	if c.SideOf(0) != SideNone {
		t.Errorf("SideOf(0) = %q, want none", c.SideOf(0))
	}

	if err := c.Assign(4, SideA); !errors.Is(err, ErrInvalidDeck) {
		t.Errorf("Assign(4) err = %v, want ErrInvalidDeck", err)
	}
	if err := c.Assign(1, Side("c")); !errors.Is(err, ErrUnknownSide) {
		t.Errorf("Assign side c err = %v, want ErrUnknownSide", err)
	}
	if c.SideOf(1) != SideA {
		t.Error("failed Assign changed deck 1's side")
	}
}

func TestParseCurveAndSide(t *testing.T) {
	for in, want := range map[string]Curve{"linear": Linear, "equal_power": EqualPower, "equalPower": EqualPower} {
		got, err := ParseCurve(in)
		if err != nil || got != want {
			t.Errorf("ParseCurve(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCurve("log"); !errors.Is(err, ErrUnknownCurve) {
		t.Errorf("ParseCurve(log) err = %v", err)
	}
	for in, want := range map[string]Side{"A": SideA, "b": SideB, "None": SideNone} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Errorf("ParseSide(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSide("left"); !errors.Is(err, ErrUnknownSide) {
		t.Errorf("ParseSide(left) err = %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewCrossfader()
	cp := c.Clone()
	cp.Assign(0, SideB)
	if c.SideOf(0) != SideA {
		t.Error("mutating clone changed the source crossfader")
	}
}

// --- Compositor ---

func TestCompositorDefaults(t *testing.T) {
	c := NewCompositor()
	if c.Enabled {
		t.Error("Enabled = true, want false")
	}
	if c.Width != 1920 || c.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", c.Width, c.Height)
	}
	if !c.LinkToCrossfader {
		t.Error("LinkToCrossfader = false, want true")
	}
	for i, l := range c.Layers {
		if l.Opacity != 1 || l.Blend != Normal || l.Order != i || !l.Enabled {
			t.Errorf("layer %d = %+v", i, l)
		}
	}
}

func TestCompositorSetters(t *testing.T) {
	c := NewCompositor()
	if err := c.SetOpacity(1, 1.7); err != nil {
		t.Fatal(err)
	}
	if c.Layers[1].Opacity != 1 {
		t.Errorf("opacity = %v, want clamp to 1", c.Layers[1].Opacity)
	}
	c.SetOpacity(1, -0.3)
	if c.Layers[1].Opacity != 0 {
		t.Errorf("opacity = %v, want clamp to 0", c.Layers[1].Opacity)
	}
	if err := c.SetOpacity(9, 0.5); !errors.Is(err, ErrInvalidDeck) {
		t.Errorf("SetOpacity(9) err = %v", err)
	}

	tests := []struct {
		name string
		want BlendMode
	}{
		{"normal", Normal},
		{"Additive", Add},
		{"ADD", Add},
		{"multiply", Multiply},
		{"screen", Screen},
		{"overlay", Overlay},
	}
	for _, tt := range tests {
		if err := c.SetBlendMode(2, tt.name); err != nil {
			t.Errorf("SetBlendMode(%q): %v", tt.name, err)
			continue
		}
		if c.Layers[2].Blend != tt.want {
			t.Errorf("SetBlendMode(%q) = %v, want %v", tt.name, c.Layers[2].Blend, tt.want)
		}
	}
	if err := c.SetBlendMode(2, "difference"); !errors.Is(err, ErrUnknownBlendMode) {
		t.Errorf("SetBlendMode(difference) err = %v", err)
	}
	if c.Layers[2].Blend != Overlay {
		t.Error("rejected blend mode changed the layer")
	}

	if err := c.SetResolution(0, 720); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("SetResolution(0, 720) = %v, want ErrInvalidResolution", err)
	}
	if err := c.SetResolution(1280, 720); err != nil || c.Width != 1280 {
		t.Errorf("SetResolution(1280, 720) = %v, width %d", err, c.Width)
	}
}

func TestDrawOrder(t *testing.T) {
	c := NewCompositor()
	c.SetLayerOrder(0, 5)
	c.SetLayerOrder(3, -1)
	c.SetDeckEnabled(2, false)
	got := c.DrawOrder()
	want := []int{3, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("DrawOrder = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DrawOrder = %v, want %v", got, want)
			break
		}
	}
}

func TestEffectiveOpacity(t *testing.T) {
	c := NewCompositor()
	xf := NewCrossfader()
	xf.Enabled = true
	xf.Curve = Linear
	xf.SetPosition(1)

	c.SetOpacity(0, 0.8)
	if got := c.EffectiveOpacity(0, xf); got != 0 {
		t.Errorf("linked side A at p=1 = %v, want 0", got)
	}
	if got := c.EffectiveOpacity(2, xf); got != 1 {
		t.Errorf("linked side B at p=1 = %v, want 1", got)
	}
	c.LinkToCrossfader = false
	if got := c.EffectiveOpacity(0, xf); got != 0.8 {
		t.Errorf("unlinked = %v, want 0.8", got)
	}
	c.SetDeckEnabled(0, false)
	if got := c.EffectiveOpacity(0, xf); got != 0 {
		t.Errorf("disabled layer = %v, want 0", got)
	}
}
