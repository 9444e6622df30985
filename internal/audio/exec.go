package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
)

// execSource reads raw PCM from a child process's stdout.
type execSource struct {
	name   string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	format SampleFormat
	buf    []byte
}

func startExec(ctx context.Context, cfg Config, name string, args ...string) (*execSource, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	slog.Info("audio capture process started", "cmd", name, "pid", cmd.Process.Pid)
	return &execSource{
		name:   name,
		cmd:    cmd,
		stdout: stdout,
		format: cfg.Format,
		buf:    make([]byte, cfg.BufferFrames*Channels*cfg.Format.BytesPerSample()),
	}, nil
}

func (s *execSource) Read() ([]float32, error) {
	n, err := io.ReadFull(s.stdout, s.buf)
	if n > 0 && (err == nil || err == io.ErrUnexpectedEOF) {
		return s.format.Decode(s.buf[:n]), nil
	}
	if err == io.EOF {
		return nil, fmt.Errorf("%s exited", s.name)
	}
	return nil, fmt.Errorf("read %s: %w", s.name, err)
}

func (s *execSource) Close() error {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// Killed on purpose, so the exit status says nothing useful.
	_ = s.cmd.Wait()
	slog.Info("audio capture process stopped", "cmd", s.name)
	return nil
}

// openPulse captures from a PulseAudio/PipeWire source via parec. "auto"
// picks the first monitor source.
func openPulse(ctx context.Context, cfg Config) (Source, error) {
	device := cfg.Device
	if device == "" || device == "auto" {
		if mon, ok := defaultMonitor(); ok {
			device = mon
		} else {
			device = "@DEFAULT_MONITOR@"
		}
	}
	slog.Info("using pulse capture device", "device", device)
	return startExec(ctx, cfg, "parec",
		"--device", device,
		"--format="+cfg.Format.parecName(),
		"--channels="+strconv.Itoa(Channels),
		"--rate="+strconv.Itoa(cfg.SampleRate),
		"--latency-msec=50",
	)
}

// openFile plays an audio file through ffmpeg at its native rate, standing
// in for a live input during rehearsal.
func openFile(ctx context.Context, cfg Config) (Source, error) {
	if cfg.Device == "" || cfg.Device == "auto" {
		return nil, fmt.Errorf("file backend needs a file path as device")
	}
	return startExec(ctx, cfg, "ffmpeg",
		"-re",
		"-i", cfg.Device,
		"-f", string(cfg.Format),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)
}
