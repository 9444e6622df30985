// Package monitor lets an operator listen to the captured audio feed over
// WebRTC or a plain HTTP MP3 stream.
package monitor

import (
	"sync"
	"sync/atomic"
)

// listenerBuffer is how many chunks a listener may fall behind before
// chunks are dropped for it (about 6s at 2048-frame chunks).
const listenerBuffer = 128

// Broadcaster fans out captured chunks to N listeners. It implements the
// pump's tap: Publish never blocks.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	dropped   atomic.Uint64
}

// Listener receives chunks from the broadcaster.
type Listener struct {
	C    chan []float32 // interleaved stereo chunks, as captured
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []float32, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it twice
// is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands chunk to every listener. Slow listeners lose the chunk
// rather than holding up the pump. Listeners must not modify chunks.
func (b *Broadcaster) Publish(chunk []float32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- chunk:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped counts chunks not delivered to slow listeners.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
