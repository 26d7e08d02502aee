package source

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// Memory returns pre-built frames. Each Load hands out fresh copies.
type Memory struct {
	frames []audio.Frame
}

// NewMemory creates a loader over the given frames.
func NewMemory(frames ...audio.Frame) *Memory {
	return &Memory{frames: frames}
}

// Load implements loader.TrackLoader.
func (m *Memory) Load() ([]audio.Frame, error) {
	out := make([]audio.Frame, len(m.frames))
	for i, f := range m.frames {
		out[i] = f.Clone()
	}
	return out, nil
}

// Tone generates a sine wave. A zero Frequency produces silence.
type Tone struct {
	Frequency float64 // Hz
	Amplitude float64 // 0..1
	Duration  time.Duration
	Format    audio.Format
	ChunkSize int
}

// Load implements loader.TrackLoader.
func (t *Tone) Load() ([]audio.Frame, error) {
	if err := t.Format.Validate(); err != nil {
		return nil, err
	}
	if t.Duration <= 0 {
		return nil, errors.Newf("tone duration must be positive, got %s", t.Duration)
	}
	chunk := t.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	total := t.Format.SamplesFor(t.Duration)
	channels := t.Format.Channels()
	step := 2 * math.Pi * t.Frequency / float64(t.Format.SampleRate)

	frames := make([]audio.Frame, 0, total/chunk+1)
	for start := 0; start < total; start += chunk {
		n := min(chunk, total-start)
		samples := make([]float64, 0, n*channels)
		for i := 0; i < n; i++ {
			v := t.Format.SampleType.Quantize(t.Amplitude * math.Sin(step*float64(start+i)))
			for c := 0; c < channels; c++ {
				samples = append(samples, v)
			}
		}
		frame, err := audio.NewFrame(t.Format, samples)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
