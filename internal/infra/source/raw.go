package source

import (
	"os"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// Raw loads headerless little-endian PCM, such as the output of the pcm sink.
type Raw struct {
	Path      string
	Format    audio.Format
	ChunkSize int
}

// Load reads the file into frames of ChunkSize samples. A trailing partial
// sample is dropped.
func (r *Raw) Load() ([]audio.Frame, error) {
	if err := r.Format.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", r.Path)
	}

	stride := r.Format.SampleType.BytesPerSample() * r.Format.Channels()
	if tail := len(data) % stride; tail != 0 {
		zlog.Warn().Msgf("source: dropping %d trailing bytes from %s", tail, r.Path)
		data = data[:len(data)-tail]
	}

	chunkSize := r.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkBytes := chunkSize * stride

	var frames []audio.Frame
	for len(data) > 0 {
		n := min(chunkBytes, len(data))
		frame, err := audio.FrameFromPCM(r.Format, data[:n])
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		data = data[n:]
	}
	zlog.Debug().Msgf("source: read %s: %d frames, %s", r.Path, len(frames), r.Format)
	return frames, nil
}
