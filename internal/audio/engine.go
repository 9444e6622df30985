package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Engine owns at most one capture session. A background worker reads chunks
// from the Source and hands them over a bounded queue; the consumer drains
// it with TryRecv and never blocks.
type Engine struct {
	open func(context.Context, Config) (Source, error)

	mu      sync.Mutex
	cfg     Config
	sess    *session
	ch      chan []float32
	lastErr error

	dropped atomic.Uint64
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{} // closed when the worker has exited and closed its source
	err    error         // set by the worker before done is closed
	seen   bool          // exit already logged
}

func NewEngine() *Engine {
	return &Engine{open: OpenSource}
}

// Start opens the configured source and starts the capture worker. It is a
// no-op while a worker is alive. A worker that has died is replaced.
func (e *Engine) Start(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil && !e.exitedLocked() {
		return nil
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	src, err := e.open(ctx, cfg)
	if err != nil {
		cancel()
		e.lastErr = err
		return fmt.Errorf("open %s capture: %w", cfg.Backend, err)
	}

	s := &session{cancel: cancel, done: make(chan struct{})}
	ch := make(chan []float32, chunkQueue)
	e.sess, e.ch, e.cfg, e.lastErr = s, ch, cfg, nil
	go e.capture(ctx, s, src, ch)

	slog.Info("audio capture started", "backend", cfg.Backend, "device", cfg.Device)
	return nil
}

func (e *Engine) capture(ctx context.Context, s *session, src Source, ch chan<- []float32) {
	defer close(s.done)
	defer src.Close()

	for ctx.Err() == nil {
		chunk, err := src.Read()
		if err != nil {
			if ctx.Err() == nil {
				s.err = err
			}
			return
		}
		select {
		case ch <- chunk:
		default:
			if n := e.dropped.Add(1); n%100 == 1 {
				slog.Warn("audio queue full, dropping chunks", "dropped", n)
			}
		}
	}
}

// exitedLocked reports whether the current worker has exited and records
// its error the first time it is seen.
func (e *Engine) exitedLocked() bool {
	select {
	case <-e.sess.done:
	default:
		return false
	}
	if !e.sess.seen {
		e.sess.seen = true
		if e.sess.err != nil {
			e.lastErr = e.sess.err
			slog.Error("audio capture failed", "error", e.sess.err)
		}
	}
	return true
}

// Stop cancels the worker and waits until it has exited and closed the
// source. Chunks still queued are discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.sess
	e.sess, e.ch = nil, nil
	e.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("audio capture stopped")
}

// TryRecv returns the next queued chunk without blocking. ok is false when
// nothing is queued or the engine is not started.
func (e *Engine) TryRecv() (chunk []float32, ok bool) {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()

	if ch == nil {
		return nil, false
	}
	select {
	case chunk = <-ch:
		return chunk, true
	default:
		return nil, false
	}
}

// Drain collects every chunk queued right now, in arrival order.
func (e *Engine) Drain() [][]float32 {
	var batch [][]float32
	for {
		chunk, ok := e.TryRecv()
		if !ok {
			return batch
		}
		batch = append(batch, chunk)
	}
}

// IsRunning reports whether a capture worker is alive. A worker that failed
// is noticed here, on the first call after it exited.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess != nil && !e.exitedLocked()
}

// Err is the error that ended the most recent capture session, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		e.exitedLocked()
	}
	return e.lastErr
}

// Config is the configuration of the current or last session.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Dropped counts chunks discarded because the queue was full.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}
