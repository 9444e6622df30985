// Package control turns decoded action+value events from MIDI, MQTT and the
// operator console into deck operations.
package control

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownAction = errors.New("unknown control action")

// Action is an operation a control surface can trigger.
type Action int

const (
	DeckStart Action = iota
	DeckStop
	DeckToggle
	DeckVolume
	BeatSensitivity
	NextPreset
	PreviousPreset
	RandomPreset
	PlaylistNext
	PlaylistPrevious
	PlaylistToggleShuffle
	PlaylistToggleAutoCycle
	CrossfaderPosition
	CrossfaderCurve
	CrossfaderToggle
	ToggleFullscreen
	VideoOutputToggle
)

var actionNames = [...]string{
	DeckStart:               "deck_start",
	DeckStop:                "deck_stop",
	DeckToggle:              "deck_toggle",
	DeckVolume:              "deck_volume",
	BeatSensitivity:         "beat_sensitivity",
	NextPreset:              "next_preset",
	PreviousPreset:          "previous_preset",
	RandomPreset:            "random_preset",
	PlaylistNext:            "playlist_next",
	PlaylistPrevious:        "playlist_previous",
	PlaylistToggleShuffle:   "playlist_toggle_shuffle",
	PlaylistToggleAutoCycle: "playlist_toggle_auto_cycle",
	CrossfaderPosition:      "crossfader_position",
	CrossfaderCurve:         "crossfader_curve",
	CrossfaderToggle:        "crossfader_toggle",
	ToggleFullscreen:        "toggle_fullscreen",
	VideoOutputToggle:       "video_output_toggle",
}

// aliases are the short names older mappings use.
var aliases = map[string]Action{
	"crossfader":        CrossfaderPosition,
	"shuffle_toggle":    PlaylistToggleShuffle,
	"auto_cycle_toggle": PlaylistToggleAutoCycle,
	"fullscreen":        ToggleFullscreen,
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// MarshalText lets actions appear by name in JSON and YAML.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAction accepts an action name or alias in any case.
func ParseAction(s string) (Action, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	if a, ok := aliases[name]; ok {
		return a, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Continuous reports whether the action takes its value as a level rather
// than a button press.
func (a Action) Continuous() bool {
	switch a {
	case DeckVolume, BeatSensitivity, CrossfaderPosition:
		return true
	}
	return false
}

// Global reports whether the action ignores the deck id.
func (a Action) Global() bool {
	switch a {
	case CrossfaderPosition, CrossfaderCurve, CrossfaderToggle:
		return true
	}
	return false
}

// Actions lists every action name, in declaration order.
func Actions() []string {
	return append([]string(nil), actionNames[:]...)
}
