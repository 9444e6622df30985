package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/vjdeck/internal/api"
	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/config"
	"github.com/satindergrewal/vjdeck/internal/control"
	"github.com/satindergrewal/vjdeck/internal/deck"
	"github.com/satindergrewal/vjdeck/internal/monitor"
)

type serveOptions struct {
	configPath string
	port       int
	console    bool
	simulate   bool
	noAudio    bool
}

func (o *serveOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	f.IntVarP(&o.port, "port", "p", 0, "HTTP API port (overrides config)")
	f.BoolVar(&o.console, "console", false, "Run the interactive operator console")
	f.BoolVar(&o.simulate, "simulate", false, "Capture a generated test tone instead of a real device")
	f.BoolVar(&o.noAudio, "no-audio", false, "Do not start audio capture at launch")
}

func loadConfig(o serveOptions) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return cfg, err
		}
	} else {
		cfg = config.Load()
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.simulate {
		cfg.Audio.Backend = audio.BackendSim
	}
	return cfg, cfg.Validate()
}

func setupLogger(cfg config.Config, w io.Writer) {
	level, _ := cfg.SlogLevel()
	hopts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	var h slog.Handler = slog.NewTextHandler(w, hopts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, hopts)
	}
	slog.SetDefault(slog.New(h))
}

func runServe(parent context.Context, o serveOptions) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	setupLogger(cfg, os.Stderr)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("vjdeck starting up", "port", cfg.Port, "presets", cfg.Presets.Dir, "audio_backend", cfg.Audio.Backend)

	opts := deck.Options{
		RendererPath: cfg.Renderer.Path,
		RendererName: cfg.Renderer.Name,
		PresetDir:    cfg.Presets.Dir,
		Width:        cfg.Renderer.Width,
		Height:       cfg.Renderer.Height,
		TexturePaths: cfg.Renderer.TexturePaths,
		Audio:        cfg.AudioCapture(),
	}
	var broadcaster *monitor.Broadcaster
	if cfg.Monitor.Enabled {
		broadcaster = monitor.NewBroadcaster()
		opts.Tap = broadcaster
	}
	state := deck.New(opts)
	defer func() {
		if err := state.Close(); err != nil {
			slog.Warn("shutdown", "error", err)
		}
		slog.Info("vjdeck stopped")
	}()

	if !o.noAudio {
		if err := state.StartAudio(""); err != nil {
			slog.Warn("audio capture not started", "error", err)
		}
	}
	go state.Run(ctx, cfg.Pump.Interval)

	dispatcher := control.NewDispatcher(state)
	surfaces, err := startSurfaces(ctx, cfg, o, state, dispatcher, cancel)
	if err != nil {
		return err
	}
	if len(surfaces) > 0 {
		state.SetController(surfaces)
	}

	srv := api.New(state, dispatcher)
	if broadcaster != nil {
		rtc := monitor.NewWebRTCHandler(broadcaster, cfg.Audio.SampleRate)
		defer rtc.Close()
		srv.WithMonitor(
			monitor.NewHTTPHandler(broadcaster, cfg.Audio.SampleRate),
			rtc,
			func() int { return broadcaster.ListenerCount() },
		)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
		defer done()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("vjdeck live", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		cancel()
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// startSurfaces brings up the configured control surfaces. A surface that
// fails to connect is logged and skipped; the console is fatal.
func startSurfaces(ctx context.Context, cfg config.Config, o serveOptions, state *deck.State, d *control.Dispatcher, stop context.CancelFunc) (control.Group, error) {
	var g control.Group

	if cfg.MQTT.Broker != "" {
		m := control.NewMQTTSurface(cfg.ControlMQTT(), d, func() any { return state.Status() })
		if err := m.Start(ctx); err != nil {
			slog.Error("mqtt control surface disabled", "error", err)
		} else {
			g = append(g, m)
		}
	}

	if cfg.MIDI.Port != "" {
		m := control.NewMIDISurface(d, cfg.MIDI.Bindings)
		if err := m.Open(cfg.MIDI.Port); err != nil {
			slog.Error("midi control surface disabled", "error", err)
		} else {
			g = append(g, m)
		}
	}

	if o.console {
		c, err := control.NewConsole(state, d)
		if err != nil {
			g.Close()
			return nil, err
		}
		g = append(g, c)
		go func() {
			c.Run()
			stop()
		}()
	}
	return g, nil
}
