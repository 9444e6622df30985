package renderer

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"
)

// Monitor is a display the renderer can go fullscreen on.
type Monitor struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	IsPrimary bool   `json:"is_primary"`
}

// ListMonitors asks xrandr for connected outputs. When that yields nothing a
// single 1920x1080 "Primary" entry is returned.
func ListMonitors() []Monitor {
	out, err := exec.Command("xrandr", "--query").Output()
	var monitors []Monitor
	if err == nil {
		monitors = parseXrandr(string(out))
	}
	if len(monitors) == 0 {
		monitors = []Monitor{{Index: 0, Name: "Primary", Width: 1920, Height: 1080, IsPrimary: true}}
	}
	return monitors
}

// parseXrandr reads lines like "HDMI-1 connected primary 1920x1080+0+0 ...".
// Connected outputs without an active mode are skipped.
func parseXrandr(out string) []Monitor {
	var monitors []Monitor
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, " connected") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		w, h, ok := findGeometry(fields[2:])
		if !ok {
			continue
		}
		monitors = append(monitors, Monitor{
			Index:     len(monitors),
			Name:      fields[0],
			Width:     w,
			Height:    h,
			IsPrimary: strings.Contains(line, " primary "),
		})
	}
	return monitors
}

func findGeometry(fields []string) (int, int, bool) {
	for _, f := range fields {
		if f == "" || f[0] < '0' || f[0] > '9' {
			continue
		}
		res, _, _ := strings.Cut(f, "+")
		ws, hs, found := strings.Cut(res, "x")
		if !found {
			continue
		}
		w, err1 := strconv.Atoi(ws)
		h, err2 := strconv.Atoi(hs)
		if err1 == nil && err2 == nil && w > 0 && h > 0 {
			return w, h, true
		}
	}
	return 0, 0, false
}
