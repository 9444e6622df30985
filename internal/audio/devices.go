package audio

import (
	"bufio"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// ListDevices returns capture devices usable as Config.Device. On Linux the
// list starts with the "auto" entry followed by every PulseAudio/PipeWire
// monitor source; PortAudio inputs come after.
func ListDevices() []DeviceInfo {
	var devices []DeviceInfo
	if runtime.GOOS == "linux" {
		devices = append(devices, DeviceInfo{
			Name:        "auto",
			Description: "System Audio (Auto-detect)",
			IsDefault:   true,
			IsMonitor:   true,
			Backend:     BackendPulse,
		})
		if out, err := exec.Command("pactl", "list", "sources", "short").Output(); err == nil {
			for _, name := range parsePactlSources(string(out)) {
				if !strings.Contains(name, ".monitor") {
					continue
				}
				devices = append(devices, DeviceInfo{
					Name:        name,
					Description: monitorDescription(name),
					IsMonitor:   true,
					Backend:     BackendPulse,
				})
			}
		} else {
			slog.Debug("pactl unavailable", "error", err)
		}
	}
	devices = append(devices, portaudioInputs()...)
	slog.Info("found audio devices", "count", len(devices))
	return devices
}

// defaultMonitor returns the first monitor source pactl reports.
func defaultMonitor() (string, bool) {
	out, err := exec.Command("pactl", "list", "sources", "short").Output()
	if err != nil {
		return "", false
	}
	for _, name := range parsePactlSources(string(out)) {
		if strings.Contains(name, ".monitor") {
			slog.Debug("auto-detected monitor", "device", name)
			return name, true
		}
	}
	return "", false
}

// parsePactlSources extracts the name column from `pactl list sources short`.
func parsePactlSources(out string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "\t")
		if len(parts) >= 2 && parts[1] != "" {
			names = append(names, parts[1])
		}
	}
	return names
}

var monitorNameCleaner = strings.NewReplacer(
	"alsa_output.", "",
	".monitor", "",
	"_", " ",
	"-", " ",
)

// monitorDescription turns a pulse source name into something readable, e.g.
// "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor" becomes
// "pci 0000 00 1f.3 (Stereo) (Monitor)".
func monitorDescription(name string) string {
	d := monitorNameCleaner.Replace(name)
	d = strings.ReplaceAll(d, ".analog stereo", " (Stereo)")
	return d + " (Monitor)"
}
