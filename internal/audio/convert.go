package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleFormat is a raw PCM encoding read from a subprocess backend.
type SampleFormat string

const (
	F32LE SampleFormat = "f32le"
	S32LE SampleFormat = "s32le"
	S16LE SampleFormat = "s16le"
	S8    SampleFormat = "s8"
	U8    SampleFormat = "u8"
)

// ParseSampleFormat validates a format name.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch f := SampleFormat(s); f {
	case F32LE, S32LE, S16LE, S8, U8:
		return f, nil
	}
	return "", fmt.Errorf("unknown sample format %q", s)
}

// BytesPerSample is the size of one sample of f.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case F32LE, S32LE:
		return 4
	case S16LE:
		return 2
	}
	return 1
}

// parecName is the --format value parec expects for f.
func (f SampleFormat) parecName() string {
	switch f {
	case F32LE:
		return "float32le"
	case S32LE:
		return "s32le"
	case S16LE:
		return "s16le"
	}
	return string(f)
}

// Decode converts raw little-endian PCM to float32. A trailing partial
// sample is ignored.
func (f SampleFormat) Decode(buf []byte) []float32 {
	n := len(buf) / f.BytesPerSample()
	out := make([]float32, n)
	switch f {
	case F32LE:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	case S32LE:
		for i := range out {
			out[i] = FromInt32(int32(binary.LittleEndian.Uint32(buf[i*4:])))
		}
	case S16LE:
		for i := range out {
			out[i] = FromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
		}
	case S8:
		for i := range out {
			out[i] = FromInt8(int8(buf[i]))
		}
	case U8:
		for i := range out {
			out[i] = FromUint8(buf[i])
		}
	}
	return out
}

func FromInt8(s int8) float32 { return float32(s) / 128 }

// FromUint8 maps unsigned 8-bit PCM (silence at 128) to [-1, 1).
func FromUint8(s uint8) float32 { return float32(int(s)-128) / 128 }

func FromInt16(s int16) float32 { return float32(s) / 32768 }

func FromInt32(s int32) float32 { return float32(float64(s) / 2147483648) }

// ToInt16 converts a float sample to int16 with clipping.
func ToInt16(s float32) int16 {
	v := float64(s) * 32767
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// Float32ToBytes encodes samples as little-endian f32 PCM.
func Float32ToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}
