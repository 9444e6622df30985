package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/control"
	"github.com/satindergrewal/vjdeck/internal/deck"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all runtime configuration: defaults, then an optional YAML
// file, then environment variables.
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text or json

	Renderer RendererConfig `yaml:"renderer"`
	Presets  PresetsConfig  `yaml:"presets"`
	Audio    AudioConfig    `yaml:"audio"`
	Pump     PumpConfig     `yaml:"pump"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	MIDI     MIDIConfig     `yaml:"midi"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

type RendererConfig struct {
	Path         string   `yaml:"path"` // explicit executable, searched first
	Name         string   `yaml:"name"`
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
	TexturePaths []string `yaml:"texture_paths"`
}

type PresetsConfig struct {
	Dir string `yaml:"dir"`
}

type AudioConfig struct {
	Device       string `yaml:"device"`
	Backend      string `yaml:"backend"`
	SampleRate   int    `yaml:"sample_rate"`
	BufferFrames int    `yaml:"buffer_frames"`
}

type PumpConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MQTTConfig enables the MQTT control surface when Broker is set.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Topic          string        `yaml:"topic"`
	StatusTopic    string        `yaml:"status_topic"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// MIDIConfig enables the MIDI control surface when Port is set.
type MIDIConfig struct {
	Port     string            `yaml:"port"`
	Bindings []control.Binding `yaml:"bindings"`
}

type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "text",
		Renderer: RendererConfig{
			Name:   renderer.DefaultExecutable,
			Width:  deck.DefaultWidth,
			Height: deck.DefaultHeight,
		},
		Presets: PresetsConfig{Dir: playlist.DefaultPresetDir},
		Audio: AudioConfig{
			Backend:      audio.BackendAuto,
			SampleRate:   audio.SampleRate,
			BufferFrames: audio.DefaultBufferFrames,
		},
		Pump: PumpConfig{Interval: deck.DefaultPumpInterval},
		MQTT: MQTTConfig{
			ClientID:       "vjdeck",
			Topic:          control.DefaultTopic,
			StatusTopic:    control.DefaultStatusTopic,
			StatusInterval: control.DefaultStatusInterval,
		},
		Monitor: MonitorConfig{Enabled: true},
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file over the defaults, applies environment
// overrides and validates the result.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("VJDECK_PORT", c.Port)
	c.LogLevel = envStr("VJDECK_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envStr("VJDECK_LOG_FORMAT", c.LogFormat)

	c.Renderer.Path = envStr("VJDECK_RENDERER", c.Renderer.Path)
	c.Renderer.Width = envInt("VJDECK_RENDER_WIDTH", c.Renderer.Width)
	c.Renderer.Height = envInt("VJDECK_RENDER_HEIGHT", c.Renderer.Height)
	c.Renderer.TexturePaths = envList("VJDECK_TEXTURE_PATHS", c.Renderer.TexturePaths)

	c.Presets.Dir = envStr("VJDECK_PRESET_DIR", c.Presets.Dir)

	c.Audio.Device = envStr("VJDECK_AUDIO_DEVICE", c.Audio.Device)
	c.Audio.Backend = envStr("VJDECK_AUDIO_BACKEND", c.Audio.Backend)
	c.Audio.SampleRate = envInt("VJDECK_SAMPLE_RATE", c.Audio.SampleRate)

	c.Pump.Interval = envDuration("VJDECK_PUMP_INTERVAL", c.Pump.Interval)

	c.MQTT.Broker = envStr("VJDECK_MQTT_BROKER", c.MQTT.Broker)
	c.MIDI.Port = envStr("VJDECK_MIDI_PORT", c.MIDI.Port)
	c.Monitor.Enabled = envBool("VJDECK_MONITOR", c.Monitor.Enabled)
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Port < 1 || c.Port > 65535 {
		bad("port %d out of range", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		bad("log_level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		bad("log_format %q (use text or json)", c.LogFormat)
	}
	if c.Renderer.Width <= 0 || c.Renderer.Height <= 0 {
		bad("renderer size %dx%d", c.Renderer.Width, c.Renderer.Height)
	}
	switch c.Audio.Backend {
	case audio.BackendAuto, audio.BackendPulse, audio.BackendPortAudio, audio.BackendFile, audio.BackendSim:
	default:
		bad("audio backend %q", c.Audio.Backend)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		bad("audio sample_rate %d", c.Audio.SampleRate)
	}
	if c.Audio.BufferFrames <= 0 {
		bad("audio buffer_frames %d", c.Audio.BufferFrames)
	}
	if c.Pump.Interval < time.Millisecond {
		bad("pump interval %v (minimum 1ms)", c.Pump.Interval)
	}
	for i, b := range c.MIDI.Bindings {
		if b.Channel > 15 || b.Controller > 127 {
			bad("midi binding %d: channel %d controller %d", i, b.Channel, b.Controller)
		}
		if b.Deck < 0 || b.Deck >= deck.MaxDecks {
			bad("midi binding %d: deck %d", i, b.Deck)
		}
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// AudioCapture converts the audio section to the capture engine's config.
func (c Config) AudioCapture() audio.Config {
	return audio.Config{
		Backend:      c.Audio.Backend,
		Device:       c.Audio.Device,
		SampleRate:   c.Audio.SampleRate,
		BufferFrames: c.Audio.BufferFrames,
	}
}

// ControlMQTT converts the mqtt section to the control surface's config.
func (c Config) ControlMQTT() control.MQTTConfig {
	return control.MQTTConfig{
		Broker:         c.MQTT.Broker,
		ClientID:       c.MQTT.ClientID,
		Topic:          c.MQTT.Topic,
		StatusTopic:    c.MQTT.StatusTopic,
		StatusInterval: c.MQTT.StatusInterval,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a colon-separated list.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
