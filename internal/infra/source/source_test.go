package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/gaplessbox/internal/domain/audio"
	"github.com/osa030/gaplessbox/internal/domain/playlist"
	"github.com/osa030/gaplessbox/internal/domain/track"
)

// writeWAV writes 16-bit PCM where sample i is left(i) / right(i).
func writeWAV(t *testing.T, path string, channels, rate, n int, left, right func(i int) float64) {
	t.Helper()

	pos := 0
	streamer := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= n {
			return 0, false
		}
		count := min(len(samples), n-pos)
		for i := 0; i < count; i++ {
			samples[i] = [2]float64{left(pos + i), right(pos + i)}
		}
		pos += count
		return count, true
	})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: channels, Precision: 2}
	require.NoError(t, wav.Encode(f, streamer, format))
}

func level(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func TestFile_LoadMonoWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeWAV(t, path, 1, 8000, 10000, level(0.25), level(0.25))

	f := NewFile(path)
	frames, err := f.Load()
	require.NoError(t, err)
	require.Len(t, frames, 3)

	want := audio.Format{SampleType: audio.SampleInt16, Layout: audio.Mono, SampleRate: 8000}
	total := 0
	for _, frame := range frames {
		assert.Equal(t, want, frame.Format())
		total += frame.Len()
	}
	assert.Equal(t, 10000, total)
	assert.Equal(t, DefaultChunkSize, frames[0].Len())
	assert.InDelta(t, 0.25, frames[2].Samples()[0], 1e-3)
}

func TestFile_LoadStereoWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 2, 44100, 100, level(0.5), level(-0.5))

	f := &File{Path: path, ChunkSize: 40}
	frames, err := f.Load()
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, []int{40, 40, 20}, []int{frames[0].Len(), frames[1].Len(), frames[2].Len()})

	samples := frames[1].Samples()
	assert.Equal(t, audio.Stereo, frames[1].Format().Layout)
	assert.InDelta(t, 0.5, samples[0], 1e-3)
	assert.InDelta(t, -0.5, samples[1], 1e-3)
}

func TestFile_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	unsupported := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unsupported, []byte("not audio"), 0o644))

	_, err := NewFile(unsupported).Load()
	assert.True(t, errors.Is(err, ErrUnsupportedFile))

	_, err = NewFile(filepath.Join(dir, "missing.wav")).Load()
	assert.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.wav")
	require.NoError(t, os.WriteFile(corrupt, []byte("RIFF"), 0o644))
	_, err = NewFile(corrupt).Load()
	assert.Error(t, err)
}

func TestTone_Load(t *testing.T) {
	format := audio.Format{SampleType: audio.SampleFloat64, Layout: audio.Stereo, SampleRate: 1000}
	tone := &Tone{Frequency: 250, Amplitude: 0.5, Duration: 100 * time.Millisecond, Format: format, ChunkSize: 30}

	frames, err := tone.Load()
	require.NoError(t, err)
	require.Len(t, frames, 4)
	assert.Equal(t, 10, frames[3].Len())

	// A quarter of the sample rate visits 0, peak, 0, trough.
	samples := frames[0].Samples()
	assert.InDelta(t, 0, samples[0], 1e-9)
	assert.InDelta(t, 0.5, samples[2], 1e-9)
	assert.InDelta(t, 0.5, samples[3], 1e-9)
	assert.InDelta(t, -0.5, samples[6], 1e-9)
}

func TestTone_LoadRejectsBadInput(t *testing.T) {
	format := audio.Format{SampleType: audio.SampleFloat32, Layout: audio.Mono, SampleRate: 1000}

	_, err := (&Tone{Frequency: 440, Amplitude: 1, Format: format}).Load()
	assert.Error(t, err)

	_, err = (&Tone{Frequency: 440, Amplitude: 1, Duration: time.Second}).Load()
	assert.True(t, errors.Is(err, audio.ErrInvalidFormat))
}

func TestMemory_LoadReturnsCopies(t *testing.T) {
	format := audio.Format{SampleType: audio.SampleFloat64, Layout: audio.Mono, SampleRate: 1000}
	frame, err := audio.NewFrame(format, []float64{0.1, 0.2})
	require.NoError(t, err)

	m := NewMemory(frame)
	first, err := m.Load()
	require.NoError(t, err)
	first[0].Samples()[0] = 0.9

	second, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, second[0].Samples())
}

func writeRaw(t *testing.T, path string, format audio.Format, n int, extra ...byte) []float64 {
	t.Helper()
	samples := make([]float64, n*format.Channels())
	for i := range samples {
		samples[i] = float64(i%200)/200 - 0.5
	}
	frame, err := audio.NewFrame(format, samples)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(frame.Bytes(), extra...), 0o644))

	want := make([]float64, len(samples))
	for i, v := range samples {
		want[i] = format.SampleType.Quantize(v)
	}
	return want
}

func TestRaw_Load(t *testing.T) {
	tests := []struct {
		name      string
		format    audio.Format
		extra     []byte
		chunkSize int
		lens      []int
	}{
		{
			name:      "s16 stereo",
			format:    audio.Format{SampleType: audio.SampleInt16, Layout: audio.Stereo, SampleRate: 48000},
			chunkSize: 400,
			lens:      []int{400, 400, 200},
		},
		{
			name:      "f32 mono drops partial sample",
			format:    audio.Format{SampleType: audio.SampleFloat32, Layout: audio.Mono, SampleRate: 8000},
			extra:     []byte{1, 2},
			chunkSize: 1000,
			lens:      []int{1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.pcm")
			want := writeRaw(t, path, tt.format, 1000, tt.extra...)

			frames, err := (&Raw{Path: path, Format: tt.format, ChunkSize: tt.chunkSize}).Load()
			require.NoError(t, err)

			var got []float64
			var lens []int
			for _, f := range frames {
				assert.Equal(t, tt.format, f.Format())
				lens = append(lens, f.Len())
				got = append(got, f.Samples()...)
			}
			assert.Equal(t, tt.lens, lens)
			assert.Equal(t, want, got)
		})
	}
}

func TestRaw_LoadErrors(t *testing.T) {
	format := audio.Format{SampleType: audio.SampleInt16, Layout: audio.Mono, SampleRate: 8000}
	_, err := (&Raw{Path: filepath.Join(t.TempDir(), "missing.pcm"), Format: format}).Load()
	assert.Error(t, err)

	_, err = (&Raw{Path: "unused.pcm"}).Load()
	assert.True(t, errors.Is(err, audio.ErrInvalidFormat))
}

func TestReadInfo_FallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Morning Song.wav")
	writeWAV(t, path, 1, 8000, 10, level(0), level(0))

	info := ReadInfo(path)
	assert.Equal(t, "Morning Song", info.Title)
	assert.Equal(t, path, info.Source)
	assert.Equal(t, track.OriginFile, info.Origin)
	assert.Empty(t, info.Artists)
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{"file", "raw", "silence", "tone"}, Types())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		entry   playlist.Entry
		origin  track.Origin
		samples int
		wantErr bool
	}{
		{
			name:    "tone",
			entry:   playlist.Entry{Type: "tone", DisplayName: "beep", Settings: map[string]any{"frequency": 220, "duration_ms": 50}},
			origin:  track.OriginTone,
			samples: 2400,
		},
		{
			name:    "stereo silence with defaults",
			entry:   playlist.Entry{Type: "silence", Settings: map[string]any{"channels": 2, "sample_rate": 8000}},
			origin:  track.OriginSilence,
			samples: 8000,
		},
		{
			name:    "silence without settings",
			entry:   playlist.Entry{Type: "silence"},
			origin:  track.OriginSilence,
			samples: 48000,
		},
		{
			name:    "unknown type",
			entry:   playlist.Entry{Type: "stream"},
			wantErr: true,
		},
		{
			name:    "file without path",
			entry:   playlist.Entry{Type: "file", Settings: map[string]any{}},
			wantErr: true,
		},
		{
			name:    "tone amplitude out of range",
			entry:   playlist.Entry{Type: "tone", Settings: map[string]any{"amplitude": 2.0}},
			wantErr: true,
		},
		{
			name:    "invalid channel count",
			entry:   playlist.Entry{Type: "silence", Settings: map[string]any{"channels": 6}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, src.Info.ID)
			assert.Equal(t, tt.origin, src.Info.Origin)
			assert.Equal(t, tt.entry.DisplayName, src.Info.DisplayName)

			frames, err := src.Loader.Load()
			require.NoError(t, err)
			total := 0
			for _, f := range frames {
				total += f.Len()
			}
			assert.Equal(t, tt.samples, total)
		})
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeWAV(t, path, 1, 8000, 100, level(0.1), level(0.1))

	src, err := New(playlist.Entry{Type: "file", Settings: map[string]any{"path": path, "chunk_size": 64}})
	require.NoError(t, err)
	assert.Equal(t, "clip", src.Info.Title)

	frames, err := src.Loader.Load()
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 64, frames[0].Len())
}

func TestNew_Raw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcm")
	format := audio.Format{SampleType: audio.SampleInt16, Layout: audio.Mono, SampleRate: 8000}
	writeRaw(t, path, format, 800)

	src, err := New(playlist.Entry{Type: "raw", Settings: map[string]any{"path": path, "channels": 1, "sample_rate": 8000}})
	require.NoError(t, err)
	assert.Equal(t, "capture", src.Info.Title)
	assert.Equal(t, track.OriginFile, src.Info.Origin)
	assert.Equal(t, 100*time.Millisecond, src.Info.Duration)

	frames, err := src.Loader.Load()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, format, frames[0].Format())
	assert.Equal(t, 800, frames[0].Len())

	_, err = New(playlist.Entry{Type: "raw", Settings: map[string]any{"path": path, "sample_type": "u8"}})
	assert.Error(t, err)
}

func TestNewFromManifest(t *testing.T) {
	_, err := NewFromManifest(&playlist.Manifest{})
	assert.Error(t, err)

	sources, err := NewFromManifest(&playlist.Manifest{Entries: []playlist.Entry{
		{Type: "tone"},
		{Type: "silence"},
	}})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.NotEqual(t, sources[0].Info.ID, sources[1].Info.ID)

	_, err = NewFromManifest(&playlist.Manifest{Entries: []playlist.Entry{{Type: "tone"}, {Type: "bogus"}}})
	assert.Error(t, err)
}
