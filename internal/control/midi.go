package control

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Binding maps one MIDI control (a CC number, or a note when Note is set) on
// one channel to an action. Channels are 0-based.
type Binding struct {
	Channel    uint8  `yaml:"channel" json:"channel"`
	Controller uint8  `yaml:"controller" json:"controller"`
	Note       bool   `yaml:"note,omitempty" json:"note,omitempty"`
	Action     Action `yaml:"action" json:"action"`
	Deck       int    `yaml:"deck" json:"deck"`
}

// MIDISurface listens on one MIDI input port and applies bound messages.
type MIDISurface struct {
	dispatcher *Dispatcher
	bindings   []Binding

	mu   sync.Mutex
	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
	port string
}

func NewMIDISurface(d *Dispatcher, bindings []Binding) *MIDISurface {
	return &MIDISurface{dispatcher: d, bindings: bindings}
}

// ListMIDIInputs names the available MIDI input ports.
func ListMIDIInputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("open midi driver: %w", err)
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list midi inputs: %w", err)
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// Open starts listening on the first input whose name equals port, or
// failing that contains it.
func (s *MIDISurface) Open(port string) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("open midi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return fmt.Errorf("list midi inputs: %w", err)
	}
	in := findPort(ins, port)
	if in == nil {
		drv.Close()
		return fmt.Errorf("midi input %q not found", port)
	}
	if err := in.Open(); err != nil {
		drv.Close()
		return fmt.Errorf("open midi input %q: %w", in.String(), err)
	}

	name := in.String()
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		for _, ev := range s.Events(msg) {
			if err := s.dispatcher.Apply(ev); err != nil {
				slog.Warn("midi action failed", "action", ev.Action, "deck", ev.Deck, "error", err)
			}
		}
	}, midi.HandleError(func(err error) {
		slog.Warn("midi listener error, device likely disconnected", "device", name, "error", err)
	}))
	if err != nil {
		in.Close()
		drv.Close()
		return fmt.Errorf("listen on midi input %q: %w", name, err)
	}

	s.mu.Lock()
	s.drv, s.in, s.stop, s.port = drv, in, stop, name
	s.mu.Unlock()
	slog.Info("midi input connected", "device", name, "bindings", len(s.bindings))
	return nil
}

func findPort(ins []drivers.In, name string) drivers.In {
	for _, in := range ins {
		if in.String() == name {
			return in
		}
	}
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			return in
		}
	}
	return nil
}

// Events decodes msg against the bindings. CC values scale to value/127;
// note on is a press and note off a release.
func (s *MIDISurface) Events(msg midi.Message) []Event {
	var (
		ch, num, val uint8
		note         bool
		v            float32
	)
	switch {
	case msg.GetControlChange(&ch, &num, &val):
		v = float32(val) / 127
	case msg.GetNoteStart(&ch, &num, &val):
		note, v = true, 1
	case msg.GetNoteEnd(&ch, &num):
		note, v = true, 0
	default:
		return nil
	}

	var out []Event
	for _, b := range s.bindings {
		if b.Channel == ch && b.Controller == num && b.Note == note {
			out = append(out, Event{Action: b.Action, Deck: b.Deck, Value: v})
		}
	}
	return out
}

// Port is the connected input's name, or "" before Open.
func (s *MIDISurface) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *MIDISurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.in != nil {
		_ = s.in.Close()
		s.in = nil
	}
	if s.drv != nil {
		s.drv.Close()
		s.drv = nil
		slog.Info("midi input closed", "device", s.port)
	}
	s.port = ""
	return nil
}
