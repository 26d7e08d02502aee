// Package resize re-chunks a stream of frames into frames of a fixed length.
package resize

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// ErrFormatMismatch is returned when a frame does not match the resizer's format.
var ErrFormatMismatch = errors.New("frame format does not match resizer format")

// Mode selects how ReadFrame treats a partial tail.
type Mode int

const (
	WaitForFullFrames Mode = iota // Only emit frames of the configured size
	Drain                         // Emit the remaining tail as one short frame
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case WaitForFullFrames:
		return "wait_for_full_frames"
	case Drain:
		return "drain"
	default:
		return "unknown"
	}
}

// Resizer accumulates samples and hands them out in frames of Size samples.
// It is not safe for concurrent use.
type Resizer struct {
	format  audio.Format
	size    int
	pending []float64 // Interleaved samples not yet emitted
	drained bool      // Final frame already emitted for the current input
}

// New creates a resizer emitting frames of size samples per channel.
func New(format audio.Format, size int) (*Resizer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.Newf("frame size must be positive, got %d", size)
	}
	return &Resizer{format: format, size: size}, nil
}

// Format returns the format of accepted and emitted frames.
func (r *Resizer) Format() audio.Format {
	return r.format
}

// Size returns the configured frame length in samples per channel.
func (r *Resizer) Size() int {
	return r.size
}

// Buffered returns the number of samples per channel waiting to be emitted.
func (r *Resizer) Buffered() int {
	return len(r.pending) / r.format.Channels()
}

// SendFrame appends the frame's samples to the accumulation buffer.
func (r *Resizer) SendFrame(frame audio.Frame) error {
	if frame.Format() != r.format {
		return errors.Wrapf(ErrFormatMismatch, "got %s, want %s", frame.Format(), r.format)
	}
	if frame.IsEmpty() {
		return nil
	}
	r.pending = append(r.pending, frame.Samples()...)
	r.drained = false
	return nil
}

// ReadFrame returns the next output frame, if mode allows one to be produced.
//
// In Drain mode full frames are still emitted first; once fewer than Size
// samples remain, exactly one frame holding the remainder (possibly empty) is
// returned and further calls report false until more input arrives.
func (r *Resizer) ReadFrame(mode Mode) (audio.Frame, bool) {
	if r.Buffered() >= r.size {
		return r.take(r.size), true
	}
	if mode != Drain || r.drained {
		return audio.Frame{}, false
	}
	r.drained = true
	return r.take(r.Buffered()), true
}

// Reset discards all buffered samples.
func (r *Resizer) Reset() {
	r.pending = nil
	r.drained = false
}

func (r *Resizer) take(n int) audio.Frame {
	count := n * r.format.Channels()
	samples := make([]float64, count)
	copy(samples, r.pending[:count])
	r.pending = r.pending[count:]
	if len(r.pending) == 0 {
		r.pending = nil
	}
	// The length is a multiple of the channel count by construction.
	frame, _ := audio.NewFrame(r.format, samples)
	return frame
}
