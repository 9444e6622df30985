package audio

import "math"

// Levels is a stereo VU reading in [0,1].
type Levels struct {
	Left  float32 `json:"left"`
	Right float32 `json:"right"`
}

// RMS computes per-channel root-mean-square over a batch of interleaved
// stereo chunks. An odd trailing sample in a chunk is ignored. ok is false
// when the batch holds no complete frame.
func RMS(batch [][]float32) (lv Levels, ok bool) {
	var sumL, sumR float64
	frames := 0
	for _, chunk := range batch {
		for i := 0; i+1 < len(chunk); i += 2 {
			l, r := float64(chunk[i]), float64(chunk[i+1])
			sumL += l * l
			sumR += r * r
			frames++
		}
	}
	if frames == 0 {
		return Levels{}, false
	}
	return Levels{
		Left:  clamp01(math.Sqrt(sumL / float64(frames))),
		Right: clamp01(math.Sqrt(sumR / float64(frames))),
	}, true
}

func clamp01(v float64) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}

// Scale returns chunk multiplied by gain. A gain of exactly 1 returns chunk
// itself without copying.
func Scale(chunk []float32, gain float32) []float32 {
	if gain == 1 {
		return chunk
	}
	out := make([]float32, len(chunk))
	for i, s := range chunk {
		out[i] = s * gain
	}
	return out
}
