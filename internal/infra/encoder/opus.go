// Package encoder compresses canonical playlist frames into Opus packets.
package encoder

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/hraban/opus.v2"

	"github.com/osa030/gaplessbox/internal/app/resize"
	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// ErrUnsupportedFormat is returned for formats Opus cannot encode.
var ErrUnsupportedFormat = errors.New("unsupported format for opus")

// MaxPacketSize is the largest packet libopus produces for one frame.
const MaxPacketSize = 4000

var supportedRates = []int{8000, 12000, 16000, 24000, 48000}

var supportedFrameDurations = []time.Duration{
	2500 * time.Microsecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	60 * time.Millisecond,
}

// Config holds Opus encoder settings.
type Config struct {
	Bitrate       int           `yaml:"bitrate" default:"128000" validate:"gte=6000,lte=510000"`
	Complexity    int           `yaml:"complexity" default:"10" validate:"gte=0,lte=10"`
	FrameDuration time.Duration `yaml:"frame_duration" default:"20ms"`
}

// Packet is one encoded Opus frame.
type Packet struct {
	Data     []byte
	Duration time.Duration
}

// Opus re-chunks frames to the codec frame size and encodes them.
type Opus struct {
	format  audio.Format
	enc     *opus.Encoder
	resizer *resize.Resizer
	buf     []byte
}

// NewOpus creates an encoder for frames in format.
func NewOpus(format audio.Format, cfg Config) (*Opus, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "encoder config validation failed")
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if !slices.Contains(supportedRates, format.SampleRate) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "sample rate %d", format.SampleRate)
	}
	if !slices.Contains(supportedFrameDurations, cfg.FrameDuration) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "frame duration %s", cfg.FrameDuration)
	}

	enc, err := opus.NewEncoder(format.SampleRate, format.Channels(), opus.AppAudio)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opus encoder")
	}
	if err := enc.SetBitrate(cfg.Bitrate); err != nil {
		return nil, errors.Wrap(err, "failed to set bitrate")
	}
	if err := enc.SetComplexity(cfg.Complexity); err != nil {
		return nil, errors.Wrap(err, "failed to set complexity")
	}

	resizer, err := resize.New(format, format.SamplesFor(cfg.FrameDuration))
	if err != nil {
		return nil, err
	}

	return &Opus{
		format:  format,
		enc:     enc,
		resizer: resizer,
		buf:     make([]byte, MaxPacketSize),
	}, nil
}

// FrameSize returns the number of samples per channel in each packet.
func (o *Opus) FrameSize() int {
	return o.resizer.Size()
}

// Encode buffers frame and returns every packet that is now complete.
func (o *Opus) Encode(frame audio.Frame) ([]Packet, error) {
	if err := o.resizer.SendFrame(frame); err != nil {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "frame format %s, encoder format %s", frame.Format(), o.format)
	}

	var packets []Packet
	for {
		chunk, ok := o.resizer.ReadFrame(resize.WaitForFullFrames)
		if !ok {
			return packets, nil
		}
		packet, err := o.encode(chunk)
		if err != nil {
			return packets, err
		}
		packets = append(packets, packet)
	}
}

// Flush encodes the buffered tail, padded with silence to a whole packet.
func (o *Opus) Flush() ([]Packet, error) {
	tail, ok := o.resizer.ReadFrame(resize.Drain)
	if !ok || tail.IsEmpty() {
		return nil, nil
	}

	padded := make([]float64, o.FrameSize()*o.format.Channels())
	copy(padded, tail.Samples())
	frame, err := audio.NewFrame(o.format, padded)
	if err != nil {
		return nil, err
	}

	packet, err := o.encode(frame)
	if err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("opus: flushed %d samples padded to %d", tail.Len(), o.FrameSize())
	return []Packet{packet}, nil
}

func (o *Opus) encode(frame audio.Frame) (Packet, error) {
	n, err := o.enc.Encode(frame.Int16(), o.buf)
	if err != nil {
		return Packet{}, errors.Wrap(err, "opus encode failed")
	}
	return Packet{Data: slices.Clone(o.buf[:n]), Duration: frame.Duration()}, nil
}
