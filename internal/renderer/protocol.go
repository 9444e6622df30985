package renderer

import (
	"encoding/json"
	"fmt"
)

// Command types understood by the renderer.
const (
	CmdLoadPreset         = "load_preset"
	CmdAudio              = "audio"
	CmdToggleFullscreen   = "toggle_fullscreen"
	CmdSetBeatSensitivity = "set_beat_sensitivity"
	CmdSetVideoOutput     = "set_video_output"
	CmdSetNDIOutput       = "set_ndi_output"
	CmdSetTexturePaths    = "set_texture_paths"
	CmdStop               = "stop"
)

// Event types emitted by the renderer.
const (
	EventReady        = "ready"
	EventClosed       = "closed"
	EventError        = "error"
	EventPresetLoaded = "preset_loaded"
)

// Command is one host-to-renderer message. Only the fields relevant to Type
// are encoded.
type Command struct {
	Type    string
	Path    string
	Samples []float32
	Value   float32
	Enabled bool
	// Target is the video device path or NDI source name. Empty encodes as
	// null so the renderer picks its default.
	Target string
	Paths  []string
}

func LoadPreset(path string) Command { return Command{Type: CmdLoadPreset, Path: path} }

func Audio(samples []float32) Command { return Command{Type: CmdAudio, Samples: samples} }

func ToggleFullscreen() Command { return Command{Type: CmdToggleFullscreen} }

func SetBeatSensitivity(v float32) Command {
	return Command{Type: CmdSetBeatSensitivity, Value: v}
}

func SetVideoOutput(enabled bool, devicePath string) Command {
	return Command{Type: CmdSetVideoOutput, Enabled: enabled, Target: devicePath}
}

func SetNDIOutput(enabled bool, name string) Command {
	return Command{Type: CmdSetNDIOutput, Enabled: enabled, Target: name}
}

func SetTexturePaths(paths []string) Command {
	return Command{Type: CmdSetTexturePaths, Paths: paths}
}

func Stop() Command { return Command{Type: CmdStop} }

// MarshalJSON encodes the command as a flat object tagged by "type".
func (c Command) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": c.Type}
	switch c.Type {
	case CmdLoadPreset:
		m["path"] = c.Path
	case CmdAudio:
		samples := c.Samples
		if samples == nil {
			samples = []float32{}
		}
		m["samples"] = samples
	case CmdSetBeatSensitivity:
		m["value"] = c.Value
	case CmdSetVideoOutput:
		m["enabled"] = c.Enabled
		m["device_path"] = nullable(c.Target)
	case CmdSetNDIOutput:
		m["enabled"] = c.Enabled
		m["name"] = nullable(c.Target)
	case CmdSetTexturePaths:
		paths := c.Paths
		if paths == nil {
			paths = []string{}
		}
		m["paths"] = paths
	case CmdToggleFullscreen, CmdStop:
	default:
		return nil, fmt.Errorf("unknown renderer command %q", c.Type)
	}
	return json.Marshal(m)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Event is one renderer-to-host message.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ParseEvent decodes one output line. Malformed lines and unknown event
// types report false.
func ParseEvent(line []byte) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, false
	}
	switch ev.Type {
	case EventReady, EventClosed, EventError, EventPresetLoaded:
		return ev, true
	}
	return Event{}, false
}

// StartupConfig is passed to the renderer as its single argument.
type StartupConfig struct {
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	PresetPath   string   `json:"preset_path,omitempty"`
	Fullscreen   bool     `json:"fullscreen"`
	DeckID       int      `json:"deck_id"`
	MonitorIndex *int     `json:"monitor_index,omitempty"`
	TexturePaths []string `json:"texture_paths"`
}
