package renderer

import (
	"encoding/json"
	"fmt"
)

// Health is the lifecycle state of a renderer process.
type Health int

const (
	Starting Health = iota
	Running
	Ready
	Crashed
	Stopped
)

func (h Health) String() string {
	switch h {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Crashed:
		return "crashed"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("health(%d)", int(h))
}

func (h Health) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Terminal reports whether no further transition is possible.
func (h Health) Terminal() bool {
	return h == Crashed || h == Stopped
}

// CanTransition reports whether h may move to next. Health only moves
// forward: Starting, Running, Ready, and any live state may end in Crashed
// or Stopped.
func (h Health) CanTransition(next Health) bool {
	if h.Terminal() {
		return false
	}
	switch next {
	case Running:
		return h == Starting
	case Ready:
		return h == Starting || h == Running
	case Crashed, Stopped:
		return true
	}
	return false
}

// Next returns next if the transition is allowed, otherwise h.
func (h Health) Next(next Health) Health {
	if h.CanTransition(next) {
		return next
	}
	return h
}
