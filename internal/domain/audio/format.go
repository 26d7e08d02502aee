// Package audio provides the Frame and FrameFormat domain types.
package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidFormat is returned when a format or frame is malformed.
var ErrInvalidFormat = errors.New("invalid audio format")

// SampleType represents the native sample representation.
type SampleType int

const (
	SampleInt16   SampleType = iota // Signed 16-bit PCM
	SampleInt32                     // Signed 32-bit PCM
	SampleFloat32                   // 32-bit IEEE float
	SampleFloat64                   // 64-bit IEEE float
)

// String returns the string representation of the sample type.
func (s SampleType) String() string {
	switch s {
	case SampleInt16:
		return "s16"
	case SampleInt32:
		return "s32"
	case SampleFloat32:
		return "f32"
	case SampleFloat64:
		return "f64"
	default:
		return "unknown"
	}
}

// ParseSampleType parses the names produced by String.
func ParseSampleType(name string) (SampleType, error) {
	switch name {
	case "s16":
		return SampleInt16, nil
	case "s32":
		return SampleInt32, nil
	case "f32":
		return SampleFloat32, nil
	case "f64":
		return SampleFloat64, nil
	default:
		return 0, errors.Wrapf(ErrInvalidFormat, "unknown sample type %q", name)
	}
}

// BytesPerSample returns the encoded width of one sample.
func (s SampleType) BytesPerSample() int {
	switch s {
	case SampleInt16:
		return 2
	case SampleInt32, SampleFloat32:
		return 4
	case SampleFloat64:
		return 8
	default:
		return 0
	}
}

// Quantize maps a normalized sample onto the values this type can represent.
// Integer types clamp to [-1, 1).
func (s SampleType) Quantize(v float64) float64 {
	switch s {
	case SampleInt16:
		return float64(toInt16(v)) / 32768
	case SampleInt32:
		return float64(toInt32(v)) / 2147483648
	case SampleFloat32:
		return float64(float32(v))
	default:
		return v
	}
}

func toInt16(v float64) int16 {
	x := math.Round(v * 32768)
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}

func toInt32(v float64) int32 {
	x := math.Round(v * 2147483648)
	if x > math.MaxInt32 {
		return math.MaxInt32
	}
	if x < math.MinInt32 {
		return math.MinInt32
	}
	return int32(x)
}

// ChannelLayout represents the channel arrangement of interleaved samples.
type ChannelLayout int

const (
	Mono   ChannelLayout = 1
	Stereo ChannelLayout = 2
)

// Channels returns the number of channels in the layout.
func (c ChannelLayout) Channels() int {
	return int(c)
}

// String returns the string representation of the layout.
func (c ChannelLayout) String() string {
	switch c {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return "unknown"
	}
}

// LayoutForChannels returns the layout with the given channel count.
func LayoutForChannels(n int) (ChannelLayout, error) {
	switch n {
	case 1:
		return Mono, nil
	case 2:
		return Stereo, nil
	default:
		return 0, errors.Wrapf(ErrInvalidFormat, "unsupported channel count %d", n)
	}
}

// Format describes the samples carried by a Frame.
type Format struct {
	SampleType SampleType    // Native sample representation
	Layout     ChannelLayout // Channel layout
	SampleRate int           // Samples per second per channel
}

// Channels returns the number of interleaved channels.
func (f Format) Channels() int {
	return f.Layout.Channels()
}

// Validate checks that every field holds a supported value.
func (f Format) Validate() error {
	if f.SampleType.BytesPerSample() == 0 {
		return errors.Wrapf(ErrInvalidFormat, "sample type %d", f.SampleType)
	}
	if f.Layout != Mono && f.Layout != Stereo {
		return errors.Wrapf(ErrInvalidFormat, "channel layout %d", f.Layout)
	}
	if f.SampleRate <= 0 {
		return errors.Wrapf(ErrInvalidFormat, "sample rate %d", f.SampleRate)
	}
	return nil
}

// Duration returns how long n samples per channel last at this format's rate.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

// SamplesFor returns the number of samples per channel covering d.
func (f Format) SamplesFor(d time.Duration) int {
	return int(d * time.Duration(f.SampleRate) / time.Second)
}

// String returns e.g. "s16/stereo/48000".
func (f Format) String() string {
	return fmt.Sprintf("%s/%s/%d", f.SampleType, f.Layout, f.SampleRate)
}
