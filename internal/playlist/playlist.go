package playlist

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	DefaultName          = "Untitled"
	DefaultCycleDuration = 30 * time.Second
	MinCycleDuration     = 5 * time.Second
)

// ErrIndexOutOfRange is returned by index-based operations on a missing item.
var ErrIndexOutOfRange = errors.New("playlist index out of range")

// Item is one preset entry.
type Item struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Playlist is an ordered preset list with a cursor.
// It is not safe for concurrent use; the owning deck serializes access.
type Playlist struct {
	Name          string
	Items         []Item
	Current       int
	Shuffle       bool
	AutoCycle     bool
	CycleDuration time.Duration
}

// Info is the read-only view of a playlist used by status reports.
type Info struct {
	Name          string  `json:"name"`
	Items         []Item  `json:"items"`
	CurrentIndex  int     `json:"current_index"`
	Shuffle       bool    `json:"shuffle"`
	AutoCycle     bool    `json:"auto_cycle"`
	CycleDuration float64 `json:"cycle_duration_secs"`
}

// New creates an empty playlist with default settings.
func New() *Playlist {
	return &Playlist{
		Name:          DefaultName,
		CycleDuration: DefaultCycleDuration,
	}
}

// Len returns the number of items.
func (p *Playlist) Len() int {
	return len(p.Items)
}

// CurrentItem returns the item under the cursor.
func (p *Playlist) CurrentItem() (Item, bool) {
	if p.Current < 0 || p.Current >= len(p.Items) {
		return Item{}, false
	}
	return p.Items[p.Current], true
}

// Advance moves the cursor forward and returns the new item. With shuffle on
// the next index is drawn from a generator seeded by the clock.
func (p *Playlist) Advance() (Item, bool) {
	n := len(p.Items)
	if n == 0 {
		return Item{}, false
	}
	if p.Shuffle {
		seed := uint64(time.Now().UnixNano())
		r := rand.New(rand.NewPCG(seed, seed>>32|1))
		p.Current = r.IntN(n)
	} else {
		p.Current = (p.Current + 1) % n
	}
	return p.Items[p.Current], true
}

// Previous moves the cursor back one item, wrapping to the end.
// Shuffle does not apply.
func (p *Playlist) Previous() (Item, bool) {
	n := len(p.Items)
	if n == 0 {
		return Item{}, false
	}
	if p.Current <= 0 || p.Current >= n {
		p.Current = n - 1
	} else {
		p.Current--
	}
	return p.Items[p.Current], true
}

// JumpTo sets the cursor to index.
func (p *Playlist) JumpTo(index int) (Item, error) {
	if index < 0 || index >= len(p.Items) {
		return Item{}, fmt.Errorf("jump to %d of %d: %w", index, len(p.Items), ErrIndexOutOfRange)
	}
	p.Current = index
	return p.Items[index], nil
}

// Add appends an item.
func (p *Playlist) Add(item Item) {
	p.Items = append(p.Items, item)
}

// Insert places item at index, shifting later items right. Index len(Items)
// appends.
func (p *Playlist) Insert(index int, item Item) error {
	if index < 0 || index > len(p.Items) {
		return fmt.Errorf("insert at %d of %d: %w", index, len(p.Items), ErrIndexOutOfRange)
	}
	p.Items = append(p.Items, Item{})
	copy(p.Items[index+1:], p.Items[index:])
	p.Items[index] = item
	if len(p.Items) > 1 && index <= p.Current {
		p.Current++
	}
	return nil
}

// Remove deletes the item at index. The cursor keeps pointing at the same
// item when it survives; removing the current item leaves the cursor on its
// successor (or the new last item).
func (p *Playlist) Remove(index int) (Item, error) {
	if index < 0 || index >= len(p.Items) {
		return Item{}, fmt.Errorf("remove %d of %d: %w", index, len(p.Items), ErrIndexOutOfRange)
	}
	removed := p.Items[index]
	p.Items = append(p.Items[:index], p.Items[index+1:]...)
	switch {
	case len(p.Items) == 0:
		p.Current = 0
	case index < p.Current:
		p.Current--
	case p.Current >= len(p.Items):
		p.Current = len(p.Items) - 1
	}
	return removed, nil
}

// Move relocates the item at from to position to.
func (p *Playlist) Move(from, to int) error {
	n := len(p.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d of %d: %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	item := p.Items[from]
	p.Items = append(p.Items[:from], p.Items[from+1:]...)
	p.Items = append(p.Items, Item{})
	copy(p.Items[to+1:], p.Items[to:])
	p.Items[to] = item

	switch {
	case p.Current == from:
		p.Current = to
	case from < p.Current && to >= p.Current:
		p.Current--
	case from > p.Current && to <= p.Current:
		p.Current++
	}
	return nil
}

// Clear removes every item and resets the cursor.
func (p *Playlist) Clear() {
	p.Items = nil
	p.Current = 0
}

// SetCycleDuration sets the auto-cycle period, floored at MinCycleDuration.
func (p *Playlist) SetCycleDuration(d time.Duration) {
	if d < MinCycleDuration {
		d = MinCycleDuration
	}
	p.CycleDuration = d
}

// Info returns a copy suitable for serialization.
func (p *Playlist) Info() Info {
	items := make([]Item, len(p.Items))
	copy(items, p.Items)
	return Info{
		Name:          p.Name,
		Items:         items,
		CurrentIndex:  p.Current,
		Shuffle:       p.Shuffle,
		AutoCycle:     p.AutoCycle,
		CycleDuration: p.CycleDuration.Seconds(),
	}
}
