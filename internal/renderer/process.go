package renderer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultStartGrace is how long a live process stays Starting before it
	// counts as Running.
	DefaultStartGrace = 2 * time.Second
	// DefaultStopGrace is how long Stop waits after the stop command before
	// killing the process.
	DefaultStopGrace = 100 * time.Millisecond
	// DefaultWriteTimeout bounds a single Send.
	DefaultWriteTimeout = 250 * time.Millisecond

	// readerDrain bounds how long Stop waits for buffered output after the
	// process has been reaped.
	readerDrain = 250 * time.Millisecond
	maxLineSize = 1 << 20
)

var (
	// ErrProcessExited is returned by Send once the renderer has been reaped.
	ErrProcessExited = errors.New("renderer process exited")
	// ErrWriteTimeout is returned by Send when the renderer stopped reading
	// its stdin. The pipe may hold a partial line afterwards, so every later
	// Send fails with it too.
	ErrWriteTimeout = errors.New("renderer stdin write timed out")
)

// Options tunes a Process. The zero value uses the defaults.
type Options struct {
	StartGrace time.Duration
	StopGrace    time.Duration
	WriteTimeout time.Duration
	Stderr       io.Writer
}

// Process supervises one renderer subprocess.
type Process struct {
	id        uuid.UUID
	deckID    int
	cmd       *exec.Cmd
	startedAt time.Time
	opts      Options

	writeMu sync.Mutex
	stdin   *os.File
	stalled bool // guarded by writeMu
	stdout  *os.File

	mu         sync.Mutex
	health     Health
	crashes    int
	exited     bool
	lastPreset string
	lastError  string

	done       chan struct{} // closed once the process has been reaped
	waitErr    error
	readerDone chan struct{}
	stopOnce   sync.Once
}

// Start spawns exe with cfg as its only argument.
func Start(exe string, cfg StartupConfig, opts Options) (*Process, error) {
	if opts.StartGrace <= 0 {
		opts.StartGrace = DefaultStartGrace
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	if cfg.TexturePaths == nil {
		cfg.TexturePaths = []string{}
	}
	arg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode renderer config: %w", err)
	}

	cmd := exec.Command(exe, string(arg))
	cmd.Stderr = opts.Stderr

	// Both pipes are plain os.Pipe files: the stdin write end takes
	// deadlines, and reaping never waits on an unread stdout.
	inR, stdin, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("renderer stdin pipe: %w", err)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		inR.Close()
		stdin.Close()
		return nil, fmt.Errorf("renderer stdout pipe: %w", err)
	}
	cmd.Stdin = inR
	cmd.Stdout = pw

	if err := cmd.Start(); err != nil {
		inR.Close()
		stdin.Close()
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start renderer %s for deck %d: %w", exe, cfg.DeckID, err)
	}
	inR.Close()
	pw.Close()

	p := &Process{
		id:         uuid.New(),
		deckID:     cfg.DeckID,
		cmd:        cmd,
		startedAt:  time.Now(),
		opts:       opts,
		stdin:      stdin,
		stdout:     pr,
		health:     Starting,
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go p.readEvents()
	go p.wait()

	slog.Info("renderer started",
		"deck", cfg.DeckID,
		"pid", cmd.Process.Pid,
		"instance", p.id,
		"exe", exe)
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.waitErr = err
	close(p.done)
}

func (p *Process) readEvents() {
	defer close(p.readerDone)

	scanner := bufio.NewScanner(p.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		ev, ok := ParseEvent(scanner.Bytes())
		if !ok {
			continue
		}
		p.handleEvent(ev)
	}
}

func (p *Process) handleEvent(ev Event) {
	log := slog.With("deck", p.deckID, "instance", p.id)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Type {
	case EventReady:
		p.health = p.health.Next(Ready)
		log.Info("renderer ready")
	case EventPresetLoaded:
		p.lastPreset = ev.Path
		log.Debug("renderer loaded preset", "path", ev.Path)
	case EventError:
		p.lastError = ev.Message
		log.Warn("renderer error", "message", ev.Message)
	case EventClosed:
		log.Info("renderer window closed")
	}
}

// Send writes cmd as one JSON line within the write timeout. Write
// failures are returned as is and never retried.
func (p *Process) Send(cmd Command) error {
	line, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	select {
	case <-p.done:
		return fmt.Errorf("send %s to deck %d: %w", cmd.Type, p.deckID, ErrProcessExited)
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.writeLocked(cmd.Type, line, p.opts.WriteTimeout)
}

func (p *Process) writeLocked(typ string, line []byte, timeout time.Duration) error {
	if p.stalled {
		return fmt.Errorf("send %s to deck %d: %w", typ, p.deckID, ErrWriteTimeout)
	}
	err := p.stdin.SetWriteDeadline(time.Now().Add(timeout))
	if err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return fmt.Errorf("send %s to deck %d: %w", typ, p.deckID, err)
	}
	if _, err := p.stdin.Write(line); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			p.stalled = true
			slog.Warn("renderer stopped reading commands", "deck", p.deckID, "instance", p.id)
			return fmt.Errorf("send %s to deck %d: %w", typ, p.deckID, ErrWriteTimeout)
		}
		return fmt.Errorf("send %s to deck %d: %w", typ, p.deckID, err)
	}
	return nil
}

// sendStop delivers the stop command unless another Send holds the pipe.
// It never waits longer than the stop grace.
func (p *Process) sendStop() error {
	if !p.writeMu.TryLock() {
		return errors.New("stdin busy")
	}
	defer p.writeMu.Unlock()
	line, err := json.Marshal(Stop())
	if err != nil {
		return err
	}
	return p.writeLocked(CmdStop, append(line, '\n'), p.opts.StopGrace)
}

// IsRunning polls the process without blocking and advances Health.
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited {
		return false
	}
	select {
	case <-p.done:
		p.observeExitLocked()
		return false
	default:
	}
	if p.health == Starting && time.Since(p.startedAt) >= p.opts.StartGrace {
		p.health = p.health.Next(Running)
	}
	return true
}

func (p *Process) observeExitLocked() {
	p.exited = true
	if p.waitErr == nil {
		p.health = p.health.Next(Stopped)
		slog.Info("renderer exited", "deck", p.deckID, "instance", p.id)
		return
	}
	if p.health.CanTransition(Crashed) {
		p.health = Crashed
		p.crashes++
	}
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) {
		slog.Warn("renderer crashed", "deck", p.deckID, "instance", p.id, "status", exitErr.String())
	} else {
		slog.Warn("renderer wait failed", "deck", p.deckID, "instance", p.id, "error", p.waitErr)
	}
}

// Stop asks the renderer to quit, waits the stop grace, then kills and reaps
// it whatever happened. Safe to call more than once.
func (p *Process) Stop() {
	p.stopOnce.Do(p.stop)
}

// Close is Stop; owners defer it so no renderer outlives its handle.
func (p *Process) Close() error {
	p.Stop()
	return nil
}

func (p *Process) stop() {
	select {
	case <-p.done:
		// Already gone on its own; record how it went.
		p.mu.Lock()
		if !p.exited {
			p.observeExitLocked()
		}
		p.mu.Unlock()
	default:
		if err := p.sendStop(); err != nil {
			slog.Debug("renderer stop command failed", "deck", p.deckID, "error", err)
		}
		time.Sleep(p.opts.StopGrace)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Warn("renderer kill failed", "deck", p.deckID, "error", err)
		}
		<-p.done

		p.mu.Lock()
		p.exited = true
		p.health = p.health.Next(Stopped)
		p.mu.Unlock()
	}

	p.stdin.Close()
	select {
	case <-p.readerDone:
	case <-time.After(readerDrain):
	}
	p.stdout.Close()
	<-p.readerDone

	slog.Info("renderer stopped", "deck", p.deckID, "instance", p.id)
}

// ID identifies this process instance across restarts of the same deck.
func (p *Process) ID() uuid.UUID { return p.id }

func (p *Process) PID() int { return p.cmd.Process.Pid }

func (p *Process) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

func (p *Process) Uptime() time.Duration { return time.Since(p.startedAt) }

func (p *Process) CrashCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.crashes
}

// LastPreset is the path from the most recent preset_loaded event.
func (p *Process) LastPreset() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPreset
}

// LastError is the message from the most recent error event.
func (p *Process) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}
