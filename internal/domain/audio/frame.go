package audio

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// Frame is a buffer of interleaved, normalized samples tagged with a Format.
// Frames are treated as immutable once built; use Clone before mutating samples.
type Frame struct {
	format  Format
	samples []float64
}

// NewFrame builds a frame over samples. The slice is retained, not copied.
func NewFrame(format Format, samples []float64) (Frame, error) {
	if err := format.Validate(); err != nil {
		return Frame{}, err
	}
	if len(samples)%format.Channels() != 0 {
		return Frame{}, errors.Wrapf(ErrInvalidFormat,
			"%d samples is not a multiple of %d channels", len(samples), format.Channels())
	}
	return Frame{format: format, samples: samples}, nil
}

// Silence returns a frame of n zero samples per channel.
func Silence(format Format, n int) Frame {
	return Frame{format: format, samples: make([]float64, n*format.Channels())}
}

// Format returns the frame's format.
func (f Frame) Format() Format {
	return f.format
}

// Len returns the number of samples per channel.
func (f Frame) Len() int {
	ch := f.format.Channels()
	if ch == 0 {
		return 0
	}
	return len(f.samples) / ch
}

// IsEmpty reports whether the frame carries no samples.
func (f Frame) IsEmpty() bool {
	return len(f.samples) == 0
}

// Samples returns the interleaved samples. Callers must not modify them.
func (f Frame) Samples() []float64 {
	return f.samples
}

// Duration returns the playback time covered by the frame.
func (f Frame) Duration() time.Duration {
	return f.format.Duration(f.Len())
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	samples := make([]float64, len(f.samples))
	copy(samples, f.samples)
	return Frame{format: f.format, samples: samples}
}

// Int16 returns the samples as interleaved signed 16-bit PCM.
func (f Frame) Int16() []int16 {
	out := make([]int16, len(f.samples))
	for i, v := range f.samples {
		out[i] = toInt16(v)
	}
	return out
}

// Bytes encodes the samples as little-endian PCM in the frame's sample type.
func (f Frame) Bytes() []byte {
	width := f.format.SampleType.BytesPerSample()
	out := make([]byte, len(f.samples)*width)
	for i, v := range f.samples {
		b := out[i*width:]
		switch f.format.SampleType {
		case SampleInt16:
			binary.LittleEndian.PutUint16(b, uint16(toInt16(v)))
		case SampleInt32:
			binary.LittleEndian.PutUint32(b, uint32(toInt32(v)))
		case SampleFloat32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case SampleFloat64:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		}
	}
	return out
}

// FrameFromPCM decodes little-endian PCM produced by Bytes.
func FrameFromPCM(format Format, data []byte) (Frame, error) {
	if err := format.Validate(); err != nil {
		return Frame{}, err
	}
	width := format.SampleType.BytesPerSample()
	if len(data)%(width*format.Channels()) != 0 {
		return Frame{}, errors.Wrapf(ErrInvalidFormat, "%d bytes is not a whole number of %s samples", len(data), format)
	}
	samples := make([]float64, len(data)/width)
	for i := range samples {
		b := data[i*width:]
		switch format.SampleType {
		case SampleInt16:
			samples[i] = float64(int16(binary.LittleEndian.Uint16(b))) / 32768
		case SampleInt32:
			samples[i] = float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
		case SampleFloat32:
			samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case SampleFloat64:
			samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	return Frame{format: format, samples: samples}, nil
}
