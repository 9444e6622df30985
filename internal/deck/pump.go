package deck

import (
	"context"
	"log/slog"
	"time"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

const DefaultPumpInterval = 16 * time.Millisecond

// delivery is the work planned for one live deck in a pump cycle.
type delivery struct {
	id     int
	proc   *renderer.Process
	preset string // non-empty when the playlist auto-advanced
	gain   float32
}

// Pump runs one distribution cycle: drain the capture queue, publish levels,
// then for each live deck in id order apply any due playlist advance and
// forward the batch scaled by deck volume times crossfader weight. It
// returns how many audio commands were written. Pump never fails; a deck
// whose pipe is broken is skipped.
func (s *State) Pump(now time.Time) int {
	s.decksMu.Lock()

	var batch [][]float32
	for {
		chunk, ok := s.capture.TryRecv()
		if !ok {
			break
		}
		batch = append(batch, chunk)
	}
	if lv, ok := audio.RMS(batch); ok {
		s.levelsMu.Lock()
		s.levels = lv
		s.levelsMu.Unlock()
	}

	s.xfMu.RLock()
	xf := s.xf.Clone()
	s.xfMu.RUnlock()

	var (
		plan []delivery
		dead []*renderer.Process
	)
	for _, d := range s.decks {
		if d.proc == nil {
			continue
		}
		if !d.proc.IsRunning() {
			if d.Active {
				d.Active = false
				dead = append(dead, d.proc)
			}
			continue
		}
		dl := delivery{id: d.ID, proc: d.proc, gain: d.Volume * xf.VolumeFor(d.ID)}
		dl.preset, _ = d.dueAdvance(now)
		plan = append(plan, dl)
	}
	s.decksMu.Unlock()

	for _, p := range dead {
		slog.Warn("deck renderer exited", "instance", p.ID(), "health", p.Health(), "crashes", p.CrashCount())
		p.Close()
	}
	if s.opts.Tap != nil {
		for _, chunk := range batch {
			s.opts.Tap.Publish(chunk)
		}
	}

	sent := 0
	for _, dl := range plan {
		if dl.preset != "" {
			if err := dl.proc.Send(renderer.LoadPreset(dl.preset)); err != nil {
				slog.Warn("auto-cycle preset load failed", "deck", dl.id, "error", err)
			} else {
				slog.Info("auto-cycled preset", "deck", dl.id, "path", dl.preset)
			}
		}
		for _, chunk := range batch {
			if err := dl.proc.Send(renderer.Audio(audio.Scale(chunk, dl.gain))); err != nil {
				slog.Debug("audio send failed", "deck", dl.id, "error", err)
				break
			}
			sent++
		}
	}
	return sent
}

// Run calls Pump every interval until ctx is cancelled.
func (s *State) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPumpInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("pump started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("pump stopped")
			return
		case now := <-ticker.C:
			s.Pump(now)
		}
	}
}
