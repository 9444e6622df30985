package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// paSource is a blocking PortAudio input stream. One Read fills one buffer.
type paSource struct {
	ctx    context.Context
	stream *portaudio.Stream
	buf    []float32
}

func openPortAudio(ctx context.Context, cfg Config) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := findInputDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferFrames

	buf := make([]float32, cfg.BufferFrames*Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio stream on %q: %w", dev.Name, err)
	}
	slog.Info("portaudio capture started", "device", dev.Name, "rate", cfg.SampleRate)
	return &paSource{ctx: ctx, stream: stream, buf: buf}, nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "auto" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}

func (s *paSource) Read() ([]float32, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	// An overflow still leaves a full buffer; the dropped input is lost either way.
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("portaudio read: %w", err)
	}
	out := make([]float32, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *paSource) Close() error {
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}

// portaudioInputs lists PortAudio devices that can record.
func portaudioInputs() []DeviceInfo {
	if err := portaudio.Initialize(); err != nil {
		slog.Debug("portaudio unavailable", "error", err)
		return nil
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		slog.Debug("portaudio device list failed", "error", err)
		return nil
	}
	var defName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defName = def.Name
	}

	var out []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		lower := strings.ToLower(d.Name)
		loopback := strings.Contains(lower, "monitor") ||
			strings.Contains(lower, "loopback") ||
			strings.Contains(lower, "blackhole")
		kind := "Input"
		if loopback {
			kind = "Loopback"
		}
		out = append(out, DeviceInfo{
			Name:        d.Name,
			Description: fmt.Sprintf("%s (%s)", d.Name, kind),
			IsDefault:   d.Name == defName,
			IsMonitor:   loopback,
			Backend:     BackendPortAudio,
		})
	}
	return out
}
