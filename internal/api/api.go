// Package api serves the deck state as a JSON HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/control"
	"github.com/satindergrewal/vjdeck/internal/deck"
	"github.com/satindergrewal/vjdeck/internal/mixer"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

var errBadRequest = errors.New("bad request")

// Server routes HTTP requests to a deck state.
type Server struct {
	state      *deck.State
	dispatcher *control.Dispatcher

	stream http.Handler // optional monitor endpoints
	webrtc http.Handler
	peers  func() int
}

func New(state *deck.State, d *control.Dispatcher) *Server {
	return &Server{state: state, dispatcher: d}
}

// WithMonitor mounts the audio monitor at /monitor/stream and
// /monitor/webrtc. peers, if non-nil, is reported by /health.
func (s *Server) WithMonitor(stream, webrtc http.Handler, peers func() int) *Server {
	s.stream, s.webrtc, s.peers = stream, webrtc, peers
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.state.Status())
	})
	mux.HandleFunc("GET /api/levels", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.state.Levels())
	})
	mux.HandleFunc("GET /api/devices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, audio.ListDevices())
	})
	mux.HandleFunc("GET /api/presets", s.presets)
	mux.HandleFunc("GET /api/monitors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, renderer.ListMonitors())
	})

	mux.HandleFunc("POST /api/audio/start", s.audioStart)
	mux.HandleFunc("POST /api/audio/stop", func(w http.ResponseWriter, r *http.Request) {
		s.state.StopAudio()
		writeOK(w, map[string]any{"audio_running": false})
	})

	mux.HandleFunc("POST /api/decks/{id}/start", s.deckOp(s.startDeck))
	mux.HandleFunc("POST /api/decks/{id}/stop", s.deckOp(func(id int, _ *http.Request) (any, error) {
		return nil, s.state.StopDeck(id)
	}))
	mux.HandleFunc("POST /api/decks/{id}/preset", s.deckOp(s.loadPreset))
	mux.HandleFunc("POST /api/decks/{id}/volume", s.deckOp(func(id int, r *http.Request) (any, error) {
		var req struct {
			Volume *float32 `json:"volume"`
		}
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		if req.Volume == nil {
			return nil, fmt.Errorf("%w: volume is required", errBadRequest)
		}
		return map[string]any{"volume": *req.Volume}, s.state.SetVolume(id, *req.Volume)
	}))
	mux.HandleFunc("POST /api/decks/{id}/sensitivity", s.deckOp(func(id int, r *http.Request) (any, error) {
		var req struct {
			Value *float32 `json:"value"`
		}
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		if req.Value == nil {
			return nil, fmt.Errorf("%w: value is required", errBadRequest)
		}
		return nil, s.state.SetBeatSensitivity(id, *req.Value)
	}))
	mux.HandleFunc("POST /api/decks/{id}/fullscreen", s.deckOp(func(id int, _ *http.Request) (any, error) {
		return nil, s.state.ToggleFullscreen(id)
	}))
	mux.HandleFunc("POST /api/decks/{id}/video", s.deckOp(func(id int, r *http.Request) (any, error) {
		var req struct {
			Enabled    bool   `json:"enabled"`
			DevicePath string `json:"device_path"`
		}
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return nil, s.state.SetVideoOutput(id, req.Enabled, req.DevicePath)
	}))
	mux.HandleFunc("POST /api/decks/{id}/ndi", s.deckOp(func(id int, r *http.Request) (any, error) {
		var req struct {
			Enabled bool   `json:"enabled"`
			Name    string `json:"name"`
		}
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return nil, s.state.SetNDIOutput(id, req.Enabled, req.Name)
	}))
	mux.HandleFunc("POST /api/decks/{id}/textures", s.deckOp(func(id int, r *http.Request) (any, error) {
		var req struct {
			Paths []string `json:"paths"`
		}
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return nil, s.state.SetTexturePaths(id, req.Paths)
	}))

	mux.HandleFunc("GET /api/decks/{id}/playlist", s.deckOp(func(id int, _ *http.Request) (any, error) {
		return s.state.Playlist(id)
	}))
	mux.HandleFunc("POST /api/decks/{id}/playlist/{op}", s.deckOp(s.playlistOp))

	mux.HandleFunc("POST /api/crossfader", s.crossfader)
	mux.HandleFunc("POST /api/crossfader/assign", s.crossfaderAssign)
	mux.HandleFunc("POST /api/compositor", s.compositor)
	mux.HandleFunc("POST /api/compositor/decks/{id}", s.deckOp(s.compositorLayer))

	mux.HandleFunc("POST /api/control", s.controlEvent)

	if s.stream != nil {
		mux.Handle("/monitor/stream", s.stream)
	}
	if s.webrtc != nil {
		mux.Handle("/monitor/webrtc", s.webrtc)
	}
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.state.Status()
	running := 0
	for _, d := range st.Decks {
		if d.Running {
			running++
		}
	}
	body := map[string]any{
		"status":        "ok",
		"decks_running": running,
		"audio_running": st.AudioRunning,
		"controller":    st.ControllerLive,
	}
	if s.peers != nil {
		body["monitor_listeners"] = s.peers()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) presets(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = s.state.PresetDir()
	}
	items := playlist.Scan(dir)
	if items == nil {
		items = []playlist.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dir": dir, "presets": items})
}

func (s *Server) audioStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device string `json:"device"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.state.StartAudio(req.Device); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"audio_running": s.state.AudioRunning()})
}

type startRequest struct {
	PresetPath   string   `json:"preset_path"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Fullscreen   bool     `json:"fullscreen"`
	MonitorIndex *int     `json:"monitor_index"`
	TexturePaths []string `json:"texture_paths"`
}

func (s *Server) startDeck(id int, r *http.Request) (any, error) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	err := s.state.StartDeck(id, deck.StartOptions{
		PresetPath:   req.PresetPath,
		Width:        req.Width,
		Height:       req.Height,
		Fullscreen:   req.Fullscreen,
		MonitorIndex: req.MonitorIndex,
		TexturePaths: req.TexturePaths,
	})
	return nil, err
}

func (s *Server) loadPreset(id int, r *http.Request) (any, error) {
	var req struct {
		Path   string `json:"path"`
		Random bool   `json:"random"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.Random {
		path, err := s.state.RandomPreset(id)
		return map[string]any{"path": path}, err
	}
	if req.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errBadRequest)
	}
	return map[string]any{"path": req.Path}, s.state.LoadPreset(id, req.Path)
}

type playlistRequest struct {
	Name              string   `json:"name"`
	Path              string   `json:"path"`
	Index             int      `json:"index"`
	From              int      `json:"from"`
	To                int      `json:"to"`
	Shuffle           *bool    `json:"shuffle"`
	AutoCycle         *bool    `json:"auto_cycle"`
	CycleDurationSecs *float64 `json:"cycle_duration_secs"`
}

func (s *Server) playlistOp(id int, r *http.Request) (any, error) {
	var req playlistRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	item := playlist.Item{Name: req.Name, Path: req.Path}
	if item.Name == "" {
		item.Name = presetName(req.Path)
	}

	var err error
	switch op := r.PathValue("op"); op {
	case "add":
		if req.Path == "" {
			return nil, fmt.Errorf("%w: path is required", errBadRequest)
		}
		err = s.state.PlaylistAdd(id, item)
	case "insert":
		if req.Path == "" {
			return nil, fmt.Errorf("%w: path is required", errBadRequest)
		}
		err = s.state.PlaylistInsert(id, req.Index, item)
	case "remove":
		err = s.state.PlaylistRemove(id, req.Index)
	case "clear":
		err = s.state.PlaylistClear(id)
	case "move":
		err = s.state.PlaylistMove(id, req.From, req.To)
	case "next", "previous":
		step := s.state.PlaylistNext
		if op == "previous" {
			step = s.state.PlaylistPrevious
		}
		_, _, err = step(id)
	case "jump":
		_, err = s.state.PlaylistJumpTo(id, req.Index)
	case "settings":
		ps := deck.PlaylistSettings{Shuffle: req.Shuffle, AutoCycle: req.AutoCycle}
		if req.CycleDurationSecs != nil {
			d := time.Duration(*req.CycleDurationSecs * float64(time.Second))
			ps.CycleDuration = &d
		}
		err = s.state.PlaylistSettings(id, ps)
	case "save", "load":
		if req.Path == "" {
			return nil, fmt.Errorf("%w: path is required", errBadRequest)
		}
		if op == "save" {
			err = s.state.PlaylistSave(id, req.Path)
		} else {
			err = s.state.PlaylistLoad(id, req.Path)
		}
	default:
		return nil, fmt.Errorf("%w: unknown playlist operation %q", errBadRequest, op)
	}
	if err != nil {
		return nil, err
	}
	return s.state.Playlist(id)
}

func (s *Server) crossfader(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *float32 `json:"position"`
		Enabled  *bool    `json:"enabled"`
		Curve    *string  `json:"curve"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Curve != nil {
		if err := s.state.SetCrossfaderCurve(*req.Curve); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Position != nil {
		s.state.SetCrossfaderPosition(*req.Position)
	}
	if req.Enabled != nil {
		s.state.SetCrossfaderEnabled(*req.Enabled)
	}
	writeJSON(w, http.StatusOK, s.state.Crossfader())
}

func (s *Server) crossfaderAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deck int    `json:"deck"`
		Side string `json:"side"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.state.AssignCrossfader(req.Deck, req.Side); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state.Crossfader())
}

func (s *Server) compositor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled          *bool `json:"enabled"`
		Width            *int  `json:"width"`
		Height           *int  `json:"height"`
		LinkToCrossfader *bool `json:"link_to_crossfader"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := s.state.UpdateCompositor(deck.CompositorUpdate{
		Enabled:          req.Enabled,
		Width:            req.Width,
		Height:           req.Height,
		LinkToCrossfader: req.LinkToCrossfader,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state.Compositor())
}

func (s *Server) compositorLayer(id int, r *http.Request) (any, error) {
	var req struct {
		Opacity   *float32 `json:"opacity"`
		BlendMode *string  `json:"blend_mode"`
		Order     *int     `json:"order"`
		Enabled   *bool    `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	err := s.state.UpdateLayer(id, deck.LayerUpdate{
		Opacity:   req.Opacity,
		BlendMode: req.BlendMode,
		Order:     req.Order,
		Enabled:   req.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return s.state.Compositor(), nil
}

func (s *Server) controlEvent(w http.ResponseWriter, r *http.Request) {
	var msg control.Message
	if err := decode(r, &msg); err != nil {
		writeError(w, err)
		return
	}
	ev, err := msg.Event()
	if err == nil {
		err = s.dispatcher.Apply(ev)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"action": ev.Action, "deck": ev.Deck, "value": ev.Value})
}

// deckOp parses {id} and runs fn, answering with its result or error.
func (s *Server) deckOp(fn func(id int, r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %q", deck.ErrInvalidDeck, r.PathValue("id")))
			return
		}
		v, err := fn(id, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if v == nil {
			writeOK(w, map[string]any{"deck": id})
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// decode reads an optional JSON body into v.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, deck.ErrInvalidDeck),
		errors.Is(err, mixer.ErrInvalidDeck),
		errors.Is(err, mixer.ErrUnknownCurve),
		errors.Is(err, mixer.ErrUnknownSide),
		errors.Is(err, mixer.ErrUnknownBlendMode),
		errors.Is(err, mixer.ErrInvalidResolution),
		errors.Is(err, playlist.ErrIndexOutOfRange),
		errors.Is(err, renderer.ErrExecutableNotFound),
		errors.Is(err, control.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, deck.ErrDeckRunning),
		errors.Is(err, deck.ErrDeckNotRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("api request failed", "error", err)
	}
	writeJSON(w, code, map[string]any{"ok": false, "error": err.Error()})
}

func writeOK(w http.ResponseWriter, fields map[string]any) {
	fields["ok"] = true
	writeJSON(w, http.StatusOK, fields)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api write failed", "error", err)
	}
}

func presetName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), playlist.PresetExt)
}
