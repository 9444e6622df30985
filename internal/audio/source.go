package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"time"
)

// Source produces interleaved stereo float32 chunks. Each Read returns
// exactly one chunk from the underlying device or subprocess.
type Source interface {
	Read() ([]float32, error)
	Close() error
}

// OpenSource opens the backend named by cfg.Backend. The source must stop
// producing once ctx is cancelled.
func OpenSource(ctx context.Context, cfg Config) (Source, error) {
	cfg = cfg.withDefaults()
	switch resolveBackend(cfg.Backend) {
	case BackendPulse:
		return openPulse(ctx, cfg)
	case BackendPortAudio:
		return openPortAudio(ctx, cfg)
	case BackendFile:
		return openFile(ctx, cfg)
	case BackendSim:
		return newSimSource(ctx, cfg), nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
}

// resolveBackend maps "auto" to parec on Linux when it is installed and to
// PortAudio everywhere else.
func resolveBackend(name string) string {
	if name != BackendAuto {
		return name
	}
	if runtime.GOOS == "linux" {
		if _, err := exec.LookPath("parec"); err == nil {
			return BackendPulse
		}
	}
	return BackendPortAudio
}

// simSource generates a stereo test tone paced in real time.
type simSource struct {
	ctx    context.Context
	frames int
	rate   float64
	phase  float64
	ticker *time.Ticker
}

const simFrequency = 220.0

func newSimSource(ctx context.Context, cfg Config) *simSource {
	return &simSource{
		ctx:    ctx,
		frames: cfg.BufferFrames,
		rate:   float64(cfg.SampleRate),
		ticker: time.NewTicker(cfg.ChunkDuration()),
	}
}

func (s *simSource) Read() ([]float32, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-s.ticker.C:
	}
	out := make([]float32, s.frames*Channels)
	step := 2 * math.Pi * simFrequency / s.rate
	for i := 0; i < s.frames; i++ {
		v := float32(0.5 * math.Sin(s.phase))
		out[i*2] = v
		out[i*2+1] = v
		s.phase += step
	}
	s.phase = math.Mod(s.phase, 2*math.Pi)
	return out, nil
}

func (s *simSource) Close() error {
	s.ticker.Stop()
	return nil
}
