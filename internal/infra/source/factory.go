package source

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/gaplessbox/internal/app/loader"
	"github.com/osa030/gaplessbox/internal/domain/audio"
	"github.com/osa030/gaplessbox/internal/domain/playlist"
	"github.com/osa030/gaplessbox/internal/domain/track"
)

// Source is a loader paired with the info shown for it.
type Source struct {
	Loader loader.TrackLoader
	Info   track.Info
}

// FileSettings configures a "file" entry.
type FileSettings struct {
	Path      string `mapstructure:"path" validate:"required"`
	ChunkSize int    `mapstructure:"chunk_size" default:"4096" validate:"gt=0"`
}

// RawSettings configures a "raw" entry.
type RawSettings struct {
	Path       string `mapstructure:"path" validate:"required"`
	SampleType string `mapstructure:"sample_type" default:"s16" validate:"oneof=s16 s32 f32 f64"`
	SampleRate int    `mapstructure:"sample_rate" default:"48000" validate:"gt=0"`
	Channels   int    `mapstructure:"channels" default:"2" validate:"oneof=1 2"`
	ChunkSize  int    `mapstructure:"chunk_size" default:"4096" validate:"gt=0"`
}

// ToneSettings configures a "tone" entry.
type ToneSettings struct {
	Frequency  float64 `mapstructure:"frequency" default:"440" validate:"gte=0"`
	Amplitude  float64 `mapstructure:"amplitude" default:"0.5" validate:"gt=0,lte=1"`
	DurationMs int     `mapstructure:"duration_ms" default:"1000" validate:"gt=0"`
	SampleRate int     `mapstructure:"sample_rate" default:"48000" validate:"gt=0"`
	Channels   int     `mapstructure:"channels" default:"1" validate:"oneof=1 2"`
	ChunkSize  int     `mapstructure:"chunk_size" default:"4096" validate:"gt=0"`
}

// SilenceSettings configures a "silence" entry.
type SilenceSettings struct {
	DurationMs int `mapstructure:"duration_ms" default:"1000" validate:"gt=0"`
	SampleRate int `mapstructure:"sample_rate" default:"48000" validate:"gt=0"`
	Channels   int `mapstructure:"channels" default:"1" validate:"oneof=1 2"`
}

type builder func(settings map[string]any) (Source, error)

var builders = map[string]builder{
	"file":    newFileSource,
	"raw":     newRawSource,
	"tone":    newToneSource,
	"silence": newSilenceSource,
}

// Types returns the supported entry types, sorted.
func Types() []string {
	types := lo.Keys(builders)
	slices.Sort(types)
	return types
}

// New builds the source for a manifest entry.
func New(entry playlist.Entry) (Source, error) {
	build, ok := builders[entry.Type]
	if !ok {
		return Source{}, errors.Newf("unsupported source type: %s", entry.Type)
	}

	zlog.Debug().Msgf("source: creating: type=%s settings=%+v", entry.Type, entry.Settings)
	src, err := build(entry.Settings)
	if err != nil {
		return Source{}, errors.Wrapf(err, "failed to create source (type %s)", entry.Type)
	}

	src.Info.ID = uuid.New().String()
	src.Info.DisplayName = entry.DisplayName
	return src, nil
}

// NewFromManifest builds a source for every entry, in order.
func NewFromManifest(m *playlist.Manifest) ([]Source, error) {
	if len(m.Entries) == 0 {
		return nil, errors.New("no tracks configured")
	}

	sources := make([]Source, 0, len(m.Entries))
	for i, entry := range m.Entries {
		src, err := New(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "track index %d", i)
		}
		sources = append(sources, src)
		zlog.Info().Msgf("source: registered track: index=%d type=%s title=%s", i+1, entry.Type, src.Info.DisplayTitle())
	}
	return sources, nil
}

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

func newFileSource(settings map[string]any) (Source, error) {
	var cfg FileSettings
	if err := decodeSettings(settings, &cfg); err != nil {
		return Source{}, err
	}
	return Source{
		Loader: &File{Path: cfg.Path, ChunkSize: cfg.ChunkSize},
		Info:   ReadInfo(cfg.Path),
	}, nil
}

func newRawSource(settings map[string]any) (Source, error) {
	var cfg RawSettings
	if err := decodeSettings(settings, &cfg); err != nil {
		return Source{}, err
	}
	sampleType, err := audio.ParseSampleType(cfg.SampleType)
	if err != nil {
		return Source{}, err
	}
	layout, err := audio.LayoutForChannels(cfg.Channels)
	if err != nil {
		return Source{}, err
	}
	format := audio.Format{SampleType: sampleType, Layout: layout, SampleRate: cfg.SampleRate}

	info := ReadInfo(cfg.Path)
	if stat, err := os.Stat(cfg.Path); err == nil {
		info.Duration = format.Duration(int(stat.Size()) / (sampleType.BytesPerSample() * cfg.Channels))
	}
	return Source{
		Loader: &Raw{Path: cfg.Path, Format: format, ChunkSize: cfg.ChunkSize},
		Info:   info,
	}, nil
}

func newToneSource(settings map[string]any) (Source, error) {
	var cfg ToneSettings
	if err := decodeSettings(settings, &cfg); err != nil {
		return Source{}, err
	}
	format, err := floatFormat(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return Source{}, err
	}
	duration := time.Duration(cfg.DurationMs) * time.Millisecond
	return Source{
		Loader: &Tone{
			Frequency: cfg.Frequency,
			Amplitude: cfg.Amplitude,
			Duration:  duration,
			Format:    format,
			ChunkSize: cfg.ChunkSize,
		},
		Info: track.Info{
			Title:    fmt.Sprintf("%g Hz tone", cfg.Frequency),
			Source:   fmt.Sprintf("tone:%g", cfg.Frequency),
			Origin:   track.OriginTone,
			Duration: duration,
		},
	}, nil
}

func newSilenceSource(settings map[string]any) (Source, error) {
	var cfg SilenceSettings
	if err := decodeSettings(settings, &cfg); err != nil {
		return Source{}, err
	}
	format, err := floatFormat(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return Source{}, err
	}
	duration := time.Duration(cfg.DurationMs) * time.Millisecond
	return Source{
		Loader: NewMemory(audio.Silence(format, format.SamplesFor(duration))),
		Info: track.Info{
			Title:    "silence",
			Source:   "silence",
			Origin:   track.OriginSilence,
			Duration: duration,
		},
	}, nil
}

func floatFormat(rate, channels int) (audio.Format, error) {
	layout, err := audio.LayoutForChannels(channels)
	if err != nil {
		return audio.Format{}, err
	}
	format := audio.Format{SampleType: audio.SampleFloat32, Layout: layout, SampleRate: rate}
	return format, format.Validate()
}
