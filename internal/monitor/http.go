package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/satindergrewal/vjdeck/internal/audio"
)

// HTTPHandler serves the capture feed as a chunked MP3 stream. Each
// connection gets its own ffmpeg encoder.
type HTTPHandler struct {
	broadcaster *Broadcaster
	sampleRate  int
	encoder     string // ffmpeg binary
}

func NewHTTPHandler(b *Broadcaster, sampleRate int) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, sampleRate: sampleRate, encoder: "ffmpeg"}
}

func (h *HTTPHandler) encoderArgs() []string {
	return []string{
		"-f", "f32le",
		"-ar", strconv.Itoa(h.sampleRate),
		"-ac", "2",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.encoder, h.encoderArgs()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		slog.Error("monitor stream stdin pipe", "error", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		slog.Error("monitor stream stdout pipe", "error", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		slog.Error("monitor stream encoder start", "error", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "vjdeck monitor")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)
	slog.Info("monitor listener connected", "listeners", h.broadcaster.ListenerCount())
	defer slog.Info("monitor listener disconnected")

	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case chunk := <-listener.C:
				if _, err := stdin.Write(audio.Float32ToBytes(chunk)); err != nil {
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("monitor stream encoder read", "error", err)
			}
			break
		}
	}
	cancel()
	cmd.Wait()
}
