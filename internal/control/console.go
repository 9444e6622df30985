package control

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/deck"
)

// ConsoleTarget is what the operator console drives.
type ConsoleTarget interface {
	Target
	StartAudio(device string) error
	StopAudio()
}

var errQuit = errors.New("quit")

const consoleHelp = `commands:
  start <deck> [preset]     stop <deck>
  preset <deck> <path>      random <deck>
  next <deck>               prev <deck>
  vol <deck> <0..1>         sens <deck> <value>
  xf <0..1>                 xf on|off|curve
  audio start [device]      audio stop
  status                    devices
  <action> <deck> [value]   raw control action
  help                      quit`

// Console is a line-oriented operator console.
type Console struct {
	target     ConsoleTarget
	dispatcher *Dispatcher
	rl         *readline.Instance
	out        io.Writer
}

// NewConsole builds a console reading from the terminal.
func NewConsole(t ConsoleTarget, d *Dispatcher) (*Console, error) {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("start"), readline.PcItem("stop"), readline.PcItem("preset"),
		readline.PcItem("random"), readline.PcItem("next"), readline.PcItem("prev"),
		readline.PcItem("vol"), readline.PcItem("sens"),
		readline.PcItem("xf", readline.PcItem("on"), readline.PcItem("off"), readline.PcItem("curve")),
		readline.PcItem("audio", readline.PcItem("start"), readline.PcItem("stop")),
		readline.PcItem("status"), readline.PcItem("devices"), readline.PcItem("help"), readline.PcItem("quit"),
	}
	for _, name := range Actions() {
		items = append(items, readline.PcItem(name))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vjdeck> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("open console: %w", err)
	}
	return &Console{target: t, dispatcher: d, rl: rl, out: rl.Stdout()}, nil
}

// Run reads commands until quit, EOF or Close.
func (c *Console) Run() {
	fmt.Fprintln(c.out, `vjdeck console, "help" lists commands`)
	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			return
		}
		out, err := c.Exec(line)
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(c.out, out)
		}
	}
}

func (c *Console) Close() error {
	return c.rl.Close()
}

// Exec runs one command line and returns what to print.
func (c *Console) Exec(line string) (string, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return "", nil
	}
	t := c.target
	cmd, args := strings.ToLower(f[0]), f[1:]

	switch cmd {
	case "quit", "exit", "q":
		return "", errQuit
	case "help", "?":
		return consoleHelp, nil
	case "status":
		return formatStatus(t.Status()), nil
	case "devices":
		var b strings.Builder
		for _, d := range audio.ListDevices() {
			fmt.Fprintf(&b, "%-10s %s  %s\n", d.Backend, d.Name, d.Description)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case "audio":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: audio start [device] | audio stop")
		}
		switch args[0] {
		case "start":
			dev := ""
			if len(args) > 1 {
				dev = strings.Join(args[1:], " ")
			}
			return "audio started", t.StartAudio(dev)
		case "stop":
			t.StopAudio()
			return "audio stopped", nil
		}
		return "", fmt.Errorf("usage: audio start [device] | audio stop")
	case "xf":
		return c.crossfader(args)
	}

	// Everything else addresses a deck.
	if len(args) == 0 {
		return "", fmt.Errorf("%s: missing deck id (try help)", cmd)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("%s: deck id %q: %w", cmd, args[0], err)
	}
	rest := args[1:]

	switch cmd {
	case "start":
		so := deck.StartOptions{}
		if len(rest) > 0 {
			so.PresetPath = strings.Join(rest, " ")
		}
		return fmt.Sprintf("deck %d started", id), t.StartDeck(id, so)
	case "stop":
		return fmt.Sprintf("deck %d stopped", id), t.StopDeck(id)
	case "preset":
		if len(rest) == 0 {
			return "", fmt.Errorf("usage: preset <deck> <path>")
		}
		return "", t.LoadPreset(id, strings.Join(rest, " "))
	case "random":
		p, err := t.RandomPreset(id)
		return p, err
	case "next", "prev":
		move := t.PlaylistNext
		if cmd == "prev" {
			move = t.PlaylistPrevious
		}
		p, ok, err := move(id)
		if err != nil {
			return "", err
		}
		if !ok {
			return "playlist is empty", nil
		}
		return p, nil
	case "vol", "sens":
		if len(rest) == 0 {
			return "", fmt.Errorf("usage: %s <deck> <value>", cmd)
		}
		v, err := strconv.ParseFloat(rest[0], 32)
		if err != nil {
			return "", fmt.Errorf("%s: value %q: %w", cmd, rest[0], err)
		}
		if cmd == "vol" {
			return "", t.SetVolume(id, float32(v))
		}
		return "", t.SetBeatSensitivity(id, float32(v))
	}

	a, err := ParseAction(cmd)
	if err != nil {
		return "", err
	}
	ev := Event{Action: a, Deck: id, Value: 1}
	if len(rest) > 0 {
		v, err := strconv.ParseFloat(rest[0], 32)
		if err != nil {
			return "", fmt.Errorf("%s: value %q: %w", cmd, rest[0], err)
		}
		ev.Value = clamp01(float32(v))
	}
	return "", c.dispatcher.Apply(ev)
}

func (c *Console) crossfader(args []string) (string, error) {
	t := c.target
	if len(args) == 0 {
		xf := t.Crossfader()
		return fmt.Sprintf("crossfader %.2f enabled=%t curve=%s A=%v B=%v",
			xf.Position, xf.Enabled, xf.Curve, xf.SideA, xf.SideB), nil
	}
	switch args[0] {
	case "on", "off":
		if t.Crossfader().Enabled != (args[0] == "on") {
			t.ToggleCrossfader()
		}
		return "", nil
	case "curve":
		return "", c.dispatcher.Apply(Event{Action: CrossfaderCurve, Value: 1})
	}
	v, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return "", fmt.Errorf("xf: position %q: %w", args[0], err)
	}
	t.SetCrossfaderPosition(float32(v))
	return "", nil
}

func formatStatus(st deck.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "audio running=%t levels L=%.2f R=%.2f\n", st.AudioRunning, st.Levels.Left, st.Levels.Right)
	for _, d := range st.Decks {
		state := "stopped"
		if d.Running {
			state = "running"
		} else if d.Health != nil {
			state = d.Health.String()
		}
		fmt.Fprintf(&b, "deck %d %-8s vol=%.2f xf=%.2f crashes=%d preset=%s\n",
			d.ID, state, d.Volume, d.CrossfaderGain, d.CrashCount, d.Preset)
	}
	xf := st.Crossfader
	fmt.Fprintf(&b, "crossfader %.2f enabled=%t curve=%s", xf.Position, xf.Enabled, xf.Curve)
	return b.String()
}
