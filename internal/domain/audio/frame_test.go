package audio

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stereo48k = Format{SampleType: SampleInt16, Layout: Stereo, SampleRate: 48000}

func TestFormat_Validate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{name: "valid stereo", format: stereo48k},
		{name: "valid mono float", format: Format{SampleType: SampleFloat32, Layout: Mono, SampleRate: 44100}},
		{name: "zero rate", format: Format{SampleType: SampleInt16, Layout: Stereo}, wantErr: true},
		{name: "unknown layout", format: Format{SampleType: SampleInt16, Layout: 6, SampleRate: 48000}, wantErr: true},
		{name: "unknown sample type", format: Format{SampleType: 42, Layout: Mono, SampleRate: 48000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidFormat))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormat_Duration(t *testing.T) {
	assert.Equal(t, 20*time.Millisecond, stereo48k.Duration(960))
	assert.Equal(t, 960, stereo48k.SamplesFor(20*time.Millisecond))
	assert.Equal(t, "s16/stereo/48000", stereo48k.String())
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(stereo48k, []float64{0.1, 0.2, 0.3, 0.4})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, stereo48k, f.Format())
	assert.False(t, f.IsEmpty())

	_, err = NewFrame(stereo48k, []float64{0.1, 0.2, 0.3})
	assert.True(t, errors.Is(err, ErrInvalidFormat))
}

func TestFrame_Clone(t *testing.T) {
	samples := []float64{0.5, -0.5}
	f, err := NewFrame(stereo48k, samples)
	require.NoError(t, err)

	c := f.Clone()
	samples[0] = 0
	assert.Equal(t, []float64{0.5, -0.5}, c.Samples())
	assert.Equal(t, f.Format(), c.Format())
}

func TestFrame_PCMRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		sampleType SampleType
	}{
		{name: "s16", sampleType: SampleInt16},
		{name: "s32", sampleType: SampleInt32},
		{name: "f32", sampleType: SampleFloat32},
		{name: "f64", sampleType: SampleFloat64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format := Format{SampleType: tt.sampleType, Layout: Stereo, SampleRate: 8000}
			in := []float64{0, 0.5, -0.5, 0.25}
			f, err := NewFrame(format, in)
			require.NoError(t, err)

			data := f.Bytes()
			assert.Len(t, data, len(in)*tt.sampleType.BytesPerSample())

			out, err := FrameFromPCM(format, data)
			require.NoError(t, err)
			assert.Equal(t, in, out.Samples())
		})
	}
}

func TestSampleType_QuantizeClamps(t *testing.T) {
	assert.InDelta(t, 32767.0/32768.0, SampleInt16.Quantize(1.5), 1e-12)
	assert.Equal(t, -1.0, SampleInt16.Quantize(-2))
	assert.Equal(t, 0.75, SampleFloat64.Quantize(0.75))
}

func TestParseSampleType(t *testing.T) {
	for _, st := range []SampleType{SampleInt16, SampleInt32, SampleFloat32, SampleFloat64} {
		got, err := ParseSampleType(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseSampleType("u8")
	assert.Error(t, err)
}

func TestSilence(t *testing.T) {
	f := Silence(stereo48k, 10)
	assert.Equal(t, 10, f.Len())
	assert.Len(t, f.Samples(), 20)
}
