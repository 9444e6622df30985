package monitor

// Framer converts captured chunks of any size and rate into fixed-size
// stereo frames at the encoder's rate, resampling by linear interpolation.
type Framer struct {
	step         float64 // input frames advanced per output frame
	pos          float64 // read position; 0 is the last frame of the previous chunk
	prevL        float32
	prevR        float32
	primed       bool
	frameSamples int
	pending      []float32
}

// NewFramer emits frames of frameFrames stereo frames at outRate from input
// at inRate.
func NewFramer(inRate, outRate, frameFrames int) *Framer {
	return &Framer{
		step:         float64(inRate) / float64(outRate),
		frameSamples: frameFrames * 2,
	}
}

// Push consumes one interleaved stereo chunk and returns every frame that
// is now complete. An odd trailing sample is ignored.
func (f *Framer) Push(chunk []float32) [][]float32 {
	n := len(chunk) / 2
	if n == 0 {
		return nil
	}
	if !f.primed {
		f.prevL, f.prevR = chunk[0], chunk[1]
		f.primed = true
		chunk = chunk[2:]
		n--
	}

	// Combined index 0 is prev, index k>0 is chunk frame k-1.
	at := func(k int) (float32, float32) {
		if k == 0 {
			return f.prevL, f.prevR
		}
		return chunk[(k-1)*2], chunk[(k-1)*2+1]
	}
	for {
		i := int(f.pos)
		if i+1 > n {
			break
		}
		frac := float32(f.pos - float64(i))
		l0, r0 := at(i)
		l1, r1 := at(i + 1)
		f.pending = append(f.pending, l0+(l1-l0)*frac, r0+(r1-r0)*frac)
		f.pos += f.step
	}
	if n > 0 {
		f.pos -= float64(n)
		f.prevL, f.prevR = at(n)
	}

	var frames [][]float32
	used := 0
	for len(f.pending)-used >= f.frameSamples {
		frame := make([]float32, f.frameSamples)
		copy(frame, f.pending[used:])
		frames = append(frames, frame)
		used += f.frameSamples
	}
	f.pending = append(f.pending[:0], f.pending[used:]...)
	return frames
}
