package playlist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func threeItems() *Playlist {
	p := New()
	p.Add(Item{Name: "a", Path: "/p/a.milk"})
	p.Add(Item{Name: "b", Path: "/p/b.milk"})
	p.Add(Item{Name: "c", Path: "/p/c.milk"})
	return p
}

func TestNewDefaults(t *testing.T) {
	p := New()
	if p.Name != "Untitled" {
		t.Errorf("Name = %q, want Untitled", p.Name)
	}
	if p.CycleDuration != 30*time.Second {
		t.Errorf("CycleDuration = %v, want 30s", p.CycleDuration)
	}
	if p.Shuffle || p.AutoCycle {
		t.Errorf("Shuffle/AutoCycle = %v/%v, want false/false", p.Shuffle, p.AutoCycle)
	}
}

func TestAdvanceCycles(t *testing.T) {
	p := threeItems()
	want := []int{1, 2, 0, 1, 2, 0}
	for i, w := range want {
		item, ok := p.Advance()
		if !ok {
			t.Fatalf("Advance %d returned none", i)
		}
		if p.Current != w {
			t.Errorf("Advance %d: Current = %d, want %d", i, p.Current, w)
		}
		if item != p.Items[w] {
			t.Errorf("Advance %d: item = %v, want %v", i, item, p.Items[w])
		}
	}
}

func TestPreviousWraps(t *testing.T) {
	p := threeItems()
	item, ok := p.Previous()
	if !ok {
		t.Fatal("Previous returned none")
	}
	if p.Current != 2 || item.Name != "c" {
		t.Errorf("Previous from 0: Current = %d item = %q, want 2 c", p.Current, item.Name)
	}
	p.Previous()
	if p.Current != 1 {
		t.Errorf("Previous from 2: Current = %d, want 1", p.Current)
	}
}

func TestPreviousIgnoresShuffle(t *testing.T) {
	p := threeItems()
	p.Shuffle = true
	p.Current = 2
	for _, want := range []int{1, 0, 2} {
		p.Previous()
		if p.Current != want {
			t.Errorf("Current = %d, want %d", p.Current, want)
		}
	}
}

func TestEmptyPlaylistIsNoop(t *testing.T) {
	p := New()
	if _, ok := p.Advance(); ok {
		t.Error("Advance on empty returned an item")
	}
	if _, ok := p.Previous(); ok {
		t.Error("Previous on empty returned an item")
	}
	if p.Current != 0 {
		t.Errorf("Current = %d, want 0", p.Current)
	}
	p.Shuffle = true
	if _, ok := p.Advance(); ok {
		t.Error("shuffled Advance on empty returned an item")
	}
	if _, ok := p.CurrentItem(); ok {
		t.Error("CurrentItem on empty returned an item")
	}
}

func TestShuffleIsNotDegenerate(t *testing.T) {
	p := threeItems()
	p.Shuffle = true
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		if _, ok := p.Advance(); !ok {
			t.Fatal("Advance returned none")
		}
		if p.Current < 0 || p.Current >= p.Len() {
			t.Fatalf("Current = %d out of range", p.Current)
		}
		seen[p.Current] = true
	}
	if len(seen) < 2 {
		t.Errorf("shuffle visited %d distinct indices, want at least 2", len(seen))
	}
}

func TestJumpTo(t *testing.T) {
	p := threeItems()
	item, err := p.JumpTo(2)
	if err != nil {
		t.Fatalf("JumpTo(2): %v", err)
	}
	if item.Name != "c" || p.Current != 2 {
		t.Errorf("JumpTo(2) = %q current %d, want c 2", item.Name, p.Current)
	}
	for _, idx := range []int{-1, 3, 10} {
		if _, err := p.JumpTo(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("JumpTo(%d) err = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
	if p.Current != 2 {
		t.Errorf("failed JumpTo changed Current to %d", p.Current)
	}
}

func TestRemoveKeepsCurrentItem(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		remove      int
		wantCurrent int
		wantName    string
	}{
		{"before current", 2, 0, 1, "c"},
		{"after current", 0, 2, 0, "a"},
		{"current middle", 1, 1, 1, "c"},
		{"current last", 2, 2, 1, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := threeItems()
			p.Current = tt.current
			if _, err := p.Remove(tt.remove); err != nil {
				t.Fatalf("Remove(%d): %v", tt.remove, err)
			}
			if p.Current != tt.wantCurrent {
				t.Errorf("Current = %d, want %d", p.Current, tt.wantCurrent)
			}
			item, _ := p.CurrentItem()
			if item.Name != tt.wantName {
				t.Errorf("current item = %q, want %q", item.Name, tt.wantName)
			}
		})
	}
}

func TestRemoveLastItem(t *testing.T) {
	p := New()
	p.Add(Item{Name: "only"})
	if _, err := p.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if p.Len() != 0 || p.Current != 0 {
		t.Errorf("Len/Current = %d/%d, want 0/0", p.Len(), p.Current)
	}
	if _, err := p.Remove(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Remove on empty err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestMoveFollowsCurrent(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		from, to    int
		wantCurrent int
		wantOrder   string
	}{
		{"move current forward", 0, 0, 2, 2, "bca"},
		{"move current back", 2, 2, 0, 0, "cab"},
		{"move over current forward", 1, 0, 2, 0, "bca"},
		{"move over current back", 1, 2, 0, 2, "cab"},
		{"move elsewhere", 0, 1, 2, 0, "acb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := threeItems()
			p.Current = tt.current
			before, _ := p.CurrentItem()
			if err := p.Move(tt.from, tt.to); err != nil {
				t.Fatalf("Move: %v", err)
			}
			order := ""
			for _, it := range p.Items {
				order += it.Name
			}
			if order != tt.wantOrder {
				t.Errorf("order = %q, want %q", order, tt.wantOrder)
			}
			if p.Current != tt.wantCurrent {
				t.Errorf("Current = %d, want %d", p.Current, tt.wantCurrent)
			}
			after, _ := p.CurrentItem()
			if after != before {
				t.Errorf("current item changed from %v to %v", before, after)
			}
		})
	}
	p := threeItems()
	if err := p.Move(0, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Move(0, 3) err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestInsertShiftsCurrent(t *testing.T) {
	p := threeItems()
	p.Current = 1
	if err := p.Insert(0, Item{Name: "z"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if item, _ := p.CurrentItem(); item.Name != "b" {
		t.Errorf("current item = %q, want b", item.Name)
	}
	if err := p.Insert(p.Len(), Item{Name: "end"}); err != nil {
		t.Fatalf("Insert at end: %v", err)
	}
	if item, _ := p.CurrentItem(); item.Name != "b" {
		t.Errorf("current item after append = %q, want b", item.Name)
	}
	if err := p.Insert(99, Item{}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Insert(99) err = %v, want ErrIndexOutOfRange", err)
	}

	empty := New()
	if err := empty.Insert(0, Item{Name: "first"}); err != nil {
		t.Fatalf("Insert into empty: %v", err)
	}
	if empty.Current != 0 {
		t.Errorf("Current after first insert = %d, want 0", empty.Current)
	}
}

func TestClear(t *testing.T) {
	p := threeItems()
	p.Current = 2
	p.Clear()
	if p.Len() != 0 || p.Current != 0 {
		t.Errorf("after Clear Len/Current = %d/%d, want 0/0", p.Len(), p.Current)
	}
}

func TestSetCycleDurationFloor(t *testing.T) {
	p := New()
	p.SetCycleDuration(2 * time.Second)
	if p.CycleDuration != 5*time.Second {
		t.Errorf("CycleDuration = %v, want 5s", p.CycleDuration)
	}
	p.SetCycleDuration(45 * time.Second)
	if p.CycleDuration != 45*time.Second {
		t.Errorf("CycleDuration = %v, want 45s", p.CycleDuration)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"Zebra.milk",
		"alpha.milk",
		"notes.txt",
		"sub/Beta.milk",
		"sub/a/b/deep.milk",
		"sub/a/b/c/too-deep.milk",
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	items := Scan(dir)
	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	want := []string{"alpha", "Beta", "deep", "Zebra"}
	if len(names) != len(want) {
		t.Fatalf("Scan names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Scan[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	first, ok := FirstPreset(dir)
	if !ok || first != filepath.Join(dir, "alpha.milk") {
		t.Errorf("FirstPreset = %q %v, want alpha.milk", first, ok)
	}
	if _, ok := FirstPreset(filepath.Join(dir, "missing")); ok {
		t.Error("FirstPreset on missing dir returned a preset")
	}
}

func TestSaveLoadFile(t *testing.T) {
	p := threeItems()
	p.Name = "set one"
	p.Shuffle = true
	p.AutoCycle = true
	p.CycleDuration = 12 * time.Second

	path := filepath.Join(t.TempDir(), "set.yaml")
	if err := SaveFile(path, p); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Name != "set one" || !got.Shuffle || !got.AutoCycle {
		t.Errorf("loaded settings = %q %v %v", got.Name, got.Shuffle, got.AutoCycle)
	}
	if got.CycleDuration != 12*time.Second {
		t.Errorf("CycleDuration = %v, want 12s", got.CycleDuration)
	}
	if got.Len() != 3 || got.Items[2].Path != "/p/c.milk" {
		t.Errorf("Items = %v", got.Items)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile on missing file returned nil error")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("items: [\n"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile on malformed yaml returned nil error")
	}
}
