package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/control"
	"github.com/satindergrewal/vjdeck/internal/deck"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

type fakeCapture struct {
	mu      sync.Mutex
	running bool
	device  string
}

func (f *fakeCapture) Start(cfg audio.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running, f.device = true, cfg.Device
	return nil
}

func (f *fakeCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeCapture) TryRecv() ([]float32, bool) { return nil, false }

func (f *fakeCapture) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// idleRenderer reads commands until it is told to stop.
const idleRenderer = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in *'"type":"stop"'*) exit 0 ;; esac
done
`

type fixture struct {
	srv     *httptest.Server
	state   *deck.State
	capture *fakeCapture
	presets string
}

func newFixture(t *testing.T, rendererPath string) *fixture {
	t.Helper()
	presets := t.TempDir()
	capture := &fakeCapture{}
	if rendererPath == "" {
		rendererPath = filepath.Join(t.TempDir(), "missing-renderer")
	}
	st := deck.New(deck.Options{
		RendererPath: rendererPath,
		RendererName: "vjdeck-api-test-renderer-missing",
		PresetDir:    presets,
		Capture:      capture,
		Process:      renderer.Options{StopGrace: 100 * time.Millisecond, Stderr: io.Discard},
	})
	srv := httptest.NewServer(New(st, control.NewDispatcher(st)).Handler())
	t.Cleanup(func() {
		srv.Close()
		st.Close()
	})
	return &fixture{srv: srv, state: st, capture: capture, presets: presets}
}

// do sends a request and decodes the JSON answer into a map.
func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t, "")

	code, body := f.do(t, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" || body["decks_running"] != float64(0) {
		t.Errorf("GET /health = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", code)
	}
	decks, _ := body["decks"].([]any)
	if len(decks) != deck.MaxDecks {
		t.Errorf("status has %d decks, want %d", len(decks), deck.MaxDecks)
	}
	if body["preset_dir"] != f.presets {
		t.Errorf("preset_dir = %v, want %s", body["preset_dir"], f.presets)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, "")
	if code, _ := f.do(t, http.MethodGet, "/api/decks/0/stop", ""); code != http.StatusMethodNotAllowed {
		t.Errorf("GET on a POST route = %d, want 405", code)
	}
}

func TestDeckVolume(t *testing.T) {
	f := newFixture(t, "")

	code, _ := f.do(t, http.MethodPost, "/api/decks/1/volume", `{"volume":0.25}`)
	if code != http.StatusOK {
		t.Fatalf("set volume = %d", code)
	}
	if got := f.state.Status().Decks[1].Volume; got != 0.25 {
		t.Errorf("volume = %v, want 0.25", got)
	}

	tests := []struct {
		path, body string
		want       int
	}{
		{"/api/decks/1/volume", `{}`, http.StatusBadRequest},
		{"/api/decks/1/volume", `{"volume":`, http.StatusBadRequest},
		{"/api/decks/x/volume", `{"volume":1}`, http.StatusBadRequest},
		{"/api/decks/7/volume", `{"volume":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if code, body := f.do(t, http.MethodPost, tt.path, tt.body); code != tt.want || body["ok"] != false {
			t.Errorf("POST %s %s = %d %v, want %d", tt.path, tt.body, code, body, tt.want)
		}
	}
}

func TestDeckErrorsMapToStatus(t *testing.T) {
	f := newFixture(t, "")

	if code, _ := f.do(t, http.MethodPost, "/api/decks/0/stop", ""); code != http.StatusConflict {
		t.Errorf("stop idle deck = %d, want 409", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/decks/0/preset", `{"path":"/a.milk"}`); code != http.StatusConflict {
		t.Errorf("preset on idle deck = %d, want 409", code)
	}
	if code, body := f.do(t, http.MethodPost, "/api/decks/0/start", ""); code != http.StatusBadRequest {
		t.Errorf("start without a renderer = %d %v, want 400", code, body)
	}
	if f.state.Status().Decks[0].Running {
		t.Error("failed start left the deck running")
	}
}

func TestDeckLifecycle(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	exe := filepath.Join(t.TempDir(), "vjdeck-renderer")
	if err := os.WriteFile(exe, []byte(idleRenderer), 0o755); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, exe)

	if code, body := f.do(t, http.MethodPost, "/api/decks/2/start", `{"preset_path":"/p/a.milk","width":640,"height":360}`); code != http.StatusOK {
		t.Fatalf("start = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/decks/2/start", ""); code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", code)
	}
	if code, body := f.do(t, http.MethodPost, "/api/decks/2/preset", `{"path":"/p/b.milk"}`); code != http.StatusOK || body["path"] != "/p/b.milk" {
		t.Errorf("load preset = %d %v", code, body)
	}
	if got := f.state.Status().Decks[2].Preset; got != "/p/b.milk" {
		t.Errorf("preset = %q, want /p/b.milk", got)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/decks/2/fullscreen", ""); code != http.StatusOK {
		t.Errorf("fullscreen = %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/decks/2/video", `{"enabled":true}`); code != http.StatusOK {
		t.Errorf("video = %d", code)
	}
	if !f.state.Status().Decks[2].VideoOutput {
		t.Error("video output not recorded")
	}
	_, health := f.do(t, http.MethodGet, "/health", "")
	if health["decks_running"] != float64(1) {
		t.Errorf("decks_running = %v, want 1", health["decks_running"])
	}
	if code, _ := f.do(t, http.MethodPost, "/api/decks/2/stop", ""); code != http.StatusOK {
		t.Errorf("stop = %d", code)
	}
	if f.state.Status().Decks[2].Running {
		t.Error("deck still running after stop")
	}
}

func TestPlaylistOps(t *testing.T) {
	f := newFixture(t, "")
	post := func(op, body string) (int, map[string]any) {
		t.Helper()
		return f.do(t, http.MethodPost, "/api/decks/3/playlist/"+op, body)
	}

	for _, p := range []string{"/p/a.milk", "/p/b.milk", "/p/c.milk"} {
		if code, _ := post("add", `{"path":"`+p+`"}`); code != http.StatusOK {
			t.Fatalf("add %s = %d", p, code)
		}
	}
	code, body := post("next", "")
	if code != http.StatusOK || body["current_index"] != float64(1) {
		t.Errorf("next = %d %v, want current_index 1", code, body)
	}
	items, _ := body["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("items = %v", body["items"])
	}
	if first, _ := items[0].(map[string]any); first["name"] != "a" {
		t.Errorf("derived name = %v, want a", first["name"])
	}

	if code, body := post("move", `{"from":2,"to":0}`); code != http.StatusOK {
		t.Errorf("move = %d %v", code, body)
	}
	if code, body := post("settings", `{"shuffle":true,"cycle_duration_secs":12}`); code != http.StatusOK || body["shuffle"] != true || body["cycle_duration_secs"] != float64(12) {
		t.Errorf("settings = %d %v", code, body)
	}

	path := filepath.Join(t.TempDir(), "set.yaml")
	if code, body := post("save", `{"path":"`+path+`"}`); code != http.StatusOK {
		t.Fatalf("save = %d %v", code, body)
	}
	if code, _ := post("clear", ""); code != http.StatusOK {
		t.Errorf("clear = %d", code)
	}
	if code, body := post("load", `{"path":"`+path+`"}`); code != http.StatusOK || len(body["items"].([]any)) != 3 {
		t.Errorf("load = %d %v", code, body)
	}

	tests := []struct {
		op, body string
		want     int
	}{
		{"jump", `{"index":9}`, http.StatusBadRequest},
		{"remove", `{"index":-1}`, http.StatusBadRequest},
		{"add", `{}`, http.StatusBadRequest},
		{"shuffle", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if code, _ := post(tt.op, tt.body); code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.op, tt.body, code, tt.want)
		}
	}

	if code, body := f.do(t, http.MethodGet, "/api/decks/3/playlist", ""); code != http.StatusOK || body["shuffle"] != true {
		t.Errorf("GET playlist = %d %v", code, body)
	}
}

func TestCrossfaderEndpoints(t *testing.T) {
	f := newFixture(t, "")

	code, body := f.do(t, http.MethodPost, "/api/crossfader", `{"position":0.25,"enabled":true,"curve":"linear"}`)
	if code != http.StatusOK || body["position"] != 0.25 || body["enabled"] != true || body["curve"] != "linear" {
		t.Errorf("crossfader = %d %v", code, body)
	}
	if got := f.state.VolumeFor(0); got != 0.75 {
		t.Errorf("side A gain = %v, want 0.75", got)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/crossfader", `{"curve":"s-curve"}`); code != http.StatusBadRequest {
		t.Errorf("bad curve = %d, want 400", code)
	}

	code, body = f.do(t, http.MethodPost, "/api/crossfader/assign", `{"deck":2,"side":"a"}`)
	if code != http.StatusOK {
		t.Fatalf("assign = %d %v", code, body)
	}
	if sideA, _ := body["side_a"].([]any); len(sideA) != 3 {
		t.Errorf("side_a = %v, want three decks", body["side_a"])
	}
	if code, _ := f.do(t, http.MethodPost, "/api/crossfader/assign", `{"deck":2,"side":"c"}`); code != http.StatusBadRequest {
		t.Errorf("bad side = %d, want 400", code)
	}
}

func TestCompositorEndpoints(t *testing.T) {
	f := newFixture(t, "")

	code, body := f.do(t, http.MethodPost, "/api/compositor", `{"enabled":true,"width":1280,"height":720}`)
	if code != http.StatusOK || body["enabled"] != true || body["output_width"] != float64(1280) {
		t.Errorf("compositor = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/compositor", `{"width":0}`); code != http.StatusBadRequest {
		t.Errorf("zero width = %d, want 400", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/compositor/decks/1", `{"opacity":0.5,"blend_mode":"add"}`); code != http.StatusOK {
		t.Errorf("layer update = %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/compositor/decks/1", `{"blend_mode":"dissolve"}`); code != http.StatusBadRequest {
		t.Errorf("bad blend mode = %d, want 400", code)
	}
	if got := f.state.Compositor().Decks[1].Opacity; got != 0.5 {
		t.Errorf("opacity = %v, want 0.5", got)
	}
}

func TestAudioEndpoints(t *testing.T) {
	f := newFixture(t, "")

	code, body := f.do(t, http.MethodPost, "/api/audio/start", `{"device":"hw:1"}`)
	if code != http.StatusOK || body["audio_running"] != true {
		t.Errorf("audio start = %d %v", code, body)
	}
	if f.capture.device != "hw:1" {
		t.Errorf("capture device = %q, want hw:1", f.capture.device)
	}
	if code, body := f.do(t, http.MethodPost, "/api/audio/stop", ""); code != http.StatusOK || body["audio_running"] != false {
		t.Errorf("audio stop = %d %v", code, body)
	}
	if code, body := f.do(t, http.MethodGet, "/api/levels", ""); code != http.StatusOK || body["left"] != float64(0) {
		t.Errorf("levels = %d %v", code, body)
	}
}

func TestControlEndpoint(t *testing.T) {
	f := newFixture(t, "")

	if code, body := f.do(t, http.MethodPost, "/api/control", `{"action":"deck_volume","deck":0,"value":0.5}`); code != http.StatusOK || body["action"] != "deck_volume" {
		t.Errorf("control = %d %v", code, body)
	}
	if got := f.state.Status().Decks[0].Volume; got != 0.5 {
		t.Errorf("volume = %v, want 0.5", got)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/control", `{"action":"teleport"}`); code != http.StatusBadRequest {
		t.Errorf("unknown action = %d, want 400", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/control", `{"action":"deck_stop","deck":1}`); code != http.StatusConflict {
		t.Errorf("stop idle deck via control = %d, want 409", code)
	}
}

func TestPresetsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	if err := os.WriteFile(filepath.Join(f.presets, "Nebula.milk"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	code, body := f.do(t, http.MethodGet, "/api/presets", "")
	if code != http.StatusOK {
		t.Fatalf("presets = %d", code)
	}
	list, _ := body["presets"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["name"] != "Nebula" {
		t.Errorf("presets = %v", body["presets"])
	}

	_, body = f.do(t, http.MethodGet, "/api/presets?dir="+t.TempDir(), "")
	if list, ok := body["presets"].([]any); !ok || len(list) != 0 {
		t.Errorf("empty dir presets = %v, want []", body["presets"])
	}
}

func TestMonitorMount(t *testing.T) {
	st := deck.New(deck.Options{Capture: &fakeCapture{}})
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "monitor")
	})
	h := New(st, control.NewDispatcher(st)).WithMonitor(stub, stub, func() int { return 3 }).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitor/stream", nil))
	if rec.Body.String() != "monitor" {
		t.Errorf("/monitor/stream body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(rec.Body.String(), `"monitor_listeners":3`) {
		t.Errorf("/health = %s, want monitor_listeners", rec.Body.String())
	}
}
