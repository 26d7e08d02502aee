// Package convert normalizes frames of any source format into one target format.
package convert

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// ErrInvalidFormat is returned when a frame does not match the primed source format.
var ErrInvalidFormat = errors.New("frame format does not match converter source format")

// rateConverter is the streaming sample rate conversion capability used per channel.
type rateConverter interface {
	Process(input []float64) ([]float64, error)
	Flush() ([]float64, error)
}

func newRateConverter(from, to int) (rateConverter, error) {
	engine, err := resampler.NewEngine(float64(from), float64(to), resampler.QualityMedium)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create rate converter %d->%d", from, to)
	}
	return engine, nil
}

// Resampler converts frames into the target format.
//
// The first frame sent after construction or Reset primes the source format;
// every later frame must carry that same format. Output keeps input order and
// is returned by ReadFrame in whatever amounts are ready.
// It is not safe for concurrent use.
type Resampler struct {
	target audio.Format

	source  *audio.Format
	engines []rateConverter // One per target channel; nil when rates match
	carry   [][]float64     // Per-channel converted samples not yet interleaved
	pending []float64       // Interleaved output in the target format
}

// New creates a converter producing frames in target.
func New(target audio.Format) (*Resampler, error) {
	if err := target.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid target format")
	}
	return &Resampler{target: target}, nil
}

// Target returns the output format.
func (r *Resampler) Target() audio.Format {
	return r.target
}

// Source returns the primed source format, if any.
func (r *Resampler) Source() (audio.Format, bool) {
	if r.source == nil {
		return audio.Format{}, false
	}
	return *r.source, true
}

// SendFrame converts a frame and buffers the result.
func (r *Resampler) SendFrame(frame audio.Frame) error {
	if r.source == nil {
		if err := r.prime(frame.Format()); err != nil {
			return err
		}
	} else if frame.Format() != *r.source {
		return errors.Wrapf(ErrInvalidFormat, "got %s, primed with %s", frame.Format(), *r.source)
	}
	if frame.IsEmpty() {
		return nil
	}

	planes := r.remix(frame)
	if r.engines == nil {
		r.interleave(planes)
		return nil
	}

	for c, engine := range r.engines {
		out, err := engine.Process(planes[c])
		if err != nil {
			return errors.Wrap(err, "rate conversion failed")
		}
		r.carry[c] = append(r.carry[c], out...)
	}
	r.interleaveCarry()
	return nil
}

// ReadFrame returns all converted samples buffered so far as one frame.
func (r *Resampler) ReadFrame() (audio.Frame, bool) {
	if len(r.pending) == 0 {
		return audio.Frame{}, false
	}
	samples := r.pending
	r.pending = nil
	frame, err := audio.NewFrame(r.target, samples)
	if err != nil {
		// pending only ever grows by whole target frames
		zlog.Error().Msgf("convert: dropping malformed output: %v", err)
		return audio.Frame{}, false
	}
	return frame, true
}

// Flush moves the rate converters' internal tail into the output buffer.
func (r *Resampler) Flush() error {
	if r.engines == nil {
		return nil
	}
	for c, engine := range r.engines {
		out, err := engine.Flush()
		if err != nil {
			return errors.Wrap(err, "rate conversion flush failed")
		}
		r.carry[c] = append(r.carry[c], out...)
	}
	r.interleaveCarry()
	// Any uneven remainder cannot be paired across channels.
	for c := range r.carry {
		r.carry[c] = nil
	}
	return nil
}

// Reset drops all buffered state and forgets the source format.
func (r *Resampler) Reset() {
	r.source = nil
	r.engines = nil
	r.carry = nil
	r.pending = nil
}

func (r *Resampler) prime(source audio.Format) error {
	if err := source.Validate(); err != nil {
		return errors.Wrap(err, "invalid source format")
	}
	r.source = &source
	if source.SampleRate == r.target.SampleRate {
		return nil
	}

	channels := r.target.Channels()
	engines := make([]rateConverter, channels)
	for c := range engines {
		engine, err := newRateConverter(source.SampleRate, r.target.SampleRate)
		if err != nil {
			r.source = nil
			return err
		}
		engines[c] = engine
	}
	r.engines = engines
	r.carry = make([][]float64, channels)
	zlog.Debug().Msgf("convert: primed %s -> %s", source, r.target)
	return nil
}

// remix splits interleaved input into one plane per target channel.
func (r *Resampler) remix(frame audio.Frame) [][]float64 {
	in := frame.Samples()
	srcCh := frame.Format().Channels()
	dstCh := r.target.Channels()
	n := frame.Len()

	planes := make([][]float64, dstCh)
	for c := range planes {
		planes[c] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		row := in[i*srcCh : (i+1)*srcCh]
		switch {
		case srcCh == dstCh:
			for c := 0; c < dstCh; c++ {
				planes[c][i] = row[c]
			}
		case dstCh == 1:
			var sum float64
			for _, v := range row {
				sum += v
			}
			planes[0][i] = sum / float64(srcCh)
		default:
			for c := 0; c < dstCh; c++ {
				planes[c][i] = row[c%srcCh]
			}
		}
	}
	return planes
}

func (r *Resampler) interleave(planes [][]float64) {
	if len(planes) == 0 {
		return
	}
	n := len(planes[0])
	for _, p := range planes[1:] {
		n = min(n, len(p))
	}
	st := r.target.SampleType
	for i := 0; i < n; i++ {
		for _, p := range planes {
			r.pending = append(r.pending, st.Quantize(p[i]))
		}
	}
}

func (r *Resampler) interleaveCarry() {
	r.interleave(r.carry)
	n := len(r.carry[0])
	for _, p := range r.carry[1:] {
		n = min(n, len(p))
	}
	for c := range r.carry {
		r.carry[c] = r.carry[c][n:]
	}
}
