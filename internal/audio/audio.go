package audio

import "time"

const (
	SampleRate          = 44100
	Channels            = 2
	DefaultBufferFrames = 2048                           // frames per chunk
	DefaultChunkSamples = DefaultBufferFrames * Channels // interleaved samples per chunk

	// chunkQueue is how many chunks the capture worker may get ahead of the
	// consumer before new chunks are dropped (about 12s at the defaults).
	chunkQueue = 256
)

// Backend names accepted in Config.Backend.
const (
	BackendAuto      = "auto"
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"
	BackendFile      = "file"
	BackendSim       = "sim"
)

// Config selects and parameterizes a capture source.
type Config struct {
	Backend      string
	Device       string // device name, "auto"/"" for the default, or a file path for BackendFile
	SampleRate   int
	BufferFrames int
	Format       SampleFormat // wire format for subprocess backends
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	if c.SampleRate <= 0 {
		c.SampleRate = SampleRate
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = DefaultBufferFrames
	}
	if c.Format == "" {
		c.Format = F32LE
	}
	return c
}

// ChunkDuration is the wall-clock length of one chunk.
func (c Config) ChunkDuration() time.Duration {
	c = c.withDefaults()
	return time.Duration(c.BufferFrames) * time.Second / time.Duration(c.SampleRate)
}

// DeviceInfo describes a capture device for selection lists.
type DeviceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
	IsMonitor   bool   `json:"is_monitor"`
	Backend     string `json:"backend"`
}
