// Package source provides concrete track loaders: decoded audio files,
// generated tones and silence.
package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// DefaultChunkSize is the number of samples per channel in each decoded frame.
const DefaultChunkSize = 4096

// ErrUnsupportedFile is returned for file extensions no decoder handles.
var ErrUnsupportedFile = errors.New("unsupported audio file")

const (
	extWAV  = ".wav"
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extOGG  = ".ogg"
)

// Extensions returns the file extensions File can decode.
func Extensions() []string {
	return []string{extWAV, extMP3, extFLAC, extOGG}
}

// File loads a whole audio file at its native rate and channel count.
type File struct {
	Path      string
	ChunkSize int
}

// NewFile creates a loader for the audio file at path.
func NewFile(path string) *File {
	return &File{Path: path, ChunkSize: DefaultChunkSize}
}

// Load decodes the file into frames of ChunkSize samples.
func (f *File) Load() ([]audio.Frame, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", f.Path)
	}
	defer file.Close()

	streamer, format, err := decode(file, filepath.Ext(f.Path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", f.Path)
	}
	defer streamer.Close()

	frames, err := readAll(streamer, format, f.ChunkSize)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", f.Path)
	}
	zlog.Debug().Msgf("source: decoded %s: %d frames, %d Hz, %d channels", f.Path, len(frames), format.SampleRate, format.NumChannels)
	return frames, nil
}

func decode(rc io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(ext) {
	case extWAV:
		return wav.Decode(rc)
	case extMP3:
		return mp3.Decode(rc)
	case extFLAC:
		return flac.Decode(rc)
	case extOGG:
		return vorbis.Decode(rc)
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFile, "extension %q", ext)
	}
}

// decodedFormat maps a decoder's format to the raw frame format.
func decodedFormat(format beep.Format) (audio.Format, error) {
	layout, err := audio.LayoutForChannels(format.NumChannels)
	if err != nil {
		return audio.Format{}, err
	}

	sampleType := audio.SampleFloat32
	switch format.Precision {
	case 1, 2:
		sampleType = audio.SampleInt16
	case 3, 4:
		sampleType = audio.SampleInt32
	}

	result := audio.Format{SampleType: sampleType, Layout: layout, SampleRate: int(format.SampleRate)}
	return result, result.Validate()
}

// readAll drains s into frames. beep always streams stereo pairs; mono
// sources carry the same value on both sides.
func readAll(s beep.Streamer, format beep.Format, chunkSize int) ([]audio.Frame, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	target, err := decodedFormat(format)
	if err != nil {
		return nil, err
	}
	channels := target.Channels()

	var frames []audio.Frame
	buf := make([][2]float64, chunkSize)
	for {
		n, ok := s.Stream(buf)
		if n > 0 {
			samples := make([]float64, 0, n*channels)
			for _, pair := range buf[:n] {
				samples = append(samples, pair[:channels]...)
			}
			frame, err := audio.NewFrame(target, samples)
			if err != nil {
				return nil, err
			}
			frames = append(frames, frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}
