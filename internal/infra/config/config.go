// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/gaplessbox/internal/domain/audio"
	"github.com/osa030/gaplessbox/internal/domain/playlist"
)

// Playback modes
const (
	ModeRealtime = "realtime"
	ModeFast     = "fast"
)

// Config represents the application configuration.
type Config struct {
	Title    string         `yaml:"title" default:"gaplessbox"`
	Output   OutputConfig   `yaml:"output"`
	Playback PlaybackConfig `yaml:"playback"`
	Tracks   []TrackConfig  `yaml:"tracks" validate:"required,min=1,dive"`
}

// OutputConfig represents the canonical frame format and where frames go.
type OutputConfig struct {
	SampleType string     `yaml:"sample_type" default:"s16" validate:"oneof=s16 s32 f32 f64"`
	Channels   int        `yaml:"channels" default:"2" validate:"oneof=1 2"`
	SampleRate int        `yaml:"sample_rate" default:"48000" validate:"gte=8000,lte=384000"`
	FrameSize  int        `yaml:"frame_size" default:"960" validate:"gt=0"`
	Sink       SinkConfig `yaml:"sink"`
}

// SinkConfig represents the output sink.
type SinkConfig struct {
	Type string     `yaml:"type" default:"pcm" validate:"oneof=pcm opus null"`
	Path string     `yaml:"path"` // Empty or "-" writes to stdout
	Opus OpusConfig `yaml:"opus"`
}

// OpusConfig represents Opus encoder settings.
type OpusConfig struct {
	Bitrate         int `yaml:"bitrate" default:"128000" validate:"gte=6000,lte=510000"`
	Complexity      int `yaml:"complexity" default:"10" validate:"gte=0,lte=10"`
	FrameDurationMs int `yaml:"frame_duration_ms" default:"20" validate:"oneof=5 10 20 40 60"`
}

// PlaybackConfig represents how the frame stream is consumed.
type PlaybackConfig struct {
	Mode           string `yaml:"mode" default:"realtime" validate:"oneof=realtime fast"`
	PollIntervalMs int    `yaml:"poll_interval_ms" default:"5" validate:"gte=1,lte=1000"`
	MaxIdlePolls   int    `yaml:"max_idle_polls" validate:"gte=0"` // 0 waits forever for a loading track
}

// TrackConfig represents a single playlist entry.
type TrackConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("GAPLESSBOX_SINK_TYPE"); v != "" {
		c.Output.Sink.Type = v
	}
	if v := os.Getenv("GAPLESSBOX_SINK_PATH"); v != "" {
		c.Output.Sink.Path = v
	}
	if v := os.Getenv("GAPLESSBOX_OPUS_BITRATE"); v != "" {
		bitrate, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid GAPLESSBOX_OPUS_BITRATE %q", v)
		}
		c.Output.Sink.Opus.Bitrate = bitrate
	}
	if v := os.Getenv("GAPLESSBOX_PLAYBACK_MODE"); v != "" {
		c.Playback.Mode = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Output.Sink.Type == "opus" && c.Output.SampleType != "s16" {
		return errors.Newf("opus sink requires sample_type s16, got %s", c.Output.SampleType)
	}
	return nil
}

// Format returns the canonical output frame format.
func (c *Config) Format() (audio.Format, error) {
	sampleType, err := audio.ParseSampleType(c.Output.SampleType)
	if err != nil {
		return audio.Format{}, err
	}
	layout, err := audio.LayoutForChannels(c.Output.Channels)
	if err != nil {
		return audio.Format{}, err
	}
	format := audio.Format{SampleType: sampleType, Layout: layout, SampleRate: c.Output.SampleRate}
	return format, format.Validate()
}

// Manifest returns the configured tracks as a playlist manifest.
func (c *Config) Manifest() *playlist.Manifest {
	m := &playlist.Manifest{Name: c.Title, Entries: make([]playlist.Entry, len(c.Tracks))}
	for i, t := range c.Tracks {
		m.Entries[i] = playlist.Entry{Type: t.Type, DisplayName: t.DisplayName, Settings: t.Settings}
	}
	return m
}

// PollInterval returns the idle wait between frame reads.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Playback.PollIntervalMs) * time.Millisecond
}

// OpusFrameDuration returns the Opus packet duration.
func (c *Config) OpusFrameDuration() time.Duration {
	return time.Duration(c.Output.Sink.Opus.FrameDurationMs) * time.Millisecond
}
