package loader

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

var mono = audio.Format{SampleType: audio.SampleFloat64, Layout: audio.Mono, SampleRate: 1000}

func framesOf(n int) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		f, _ := audio.NewFrame(mono, []float64{float64(i) / 100})
		frames[i] = f
	}
	return frames
}

func waitIdle(t *testing.T, l *Loader) {
	t.Helper()
	require.Eventually(t, func() bool { return !l.Running() }, time.Second, time.Millisecond)
}

func TestFrameBuffer_FIFO(t *testing.T) {
	b := NewFrameBuffer()
	_, ok := b.Pop()
	assert.False(t, ok)

	for _, f := range framesOf(3) {
		b.Push(f)
	}
	assert.Equal(t, 3, b.Len())

	for i := 0; i < 3; i++ {
		f, ok := b.Pop()
		require.True(t, ok)
		assert.Equal(t, float64(i)/100, f.Samples()[0])
	}
	assert.Equal(t, 0, b.Len())

	b.Push(framesOf(1)[0])
	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func TestLoader_DeliversAllFramesInOrder(t *testing.T) {
	l := New(NewFrameBuffer())
	assert.False(t, l.Running())

	l.StartLoading(Func(func() ([]audio.Frame, error) { return framesOf(50), nil }))
	waitIdle(t, l)

	require.Equal(t, 50, l.Buffer().Len())
	for i := 0; i < 50; i++ {
		f, ok := l.Buffer().Pop()
		require.True(t, ok)
		assert.Equal(t, float64(i)/100, f.Samples()[0])
	}
}

func TestLoader_FailuresProduceNoFrames(t *testing.T) {
	tests := []struct {
		name   string
		loader TrackLoader
	}{
		{name: "error", loader: Func(func() ([]audio.Frame, error) { return framesOf(3), errors.New("unreadable") })},
		{name: "empty", loader: Func(func() ([]audio.Frame, error) { return nil, nil })},
		{name: "panic", loader: Func(func() ([]audio.Frame, error) { panic("corrupt stream") })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(NewFrameBuffer())
			l.StartLoading(tt.loader)
			waitIdle(t, l)
			assert.Equal(t, 0, l.Buffer().Len())
		})
	}
}

func TestLoader_StopLoadingJoinsWorker(t *testing.T) {
	release := make(chan struct{})
	l := New(NewFrameBuffer())
	l.StartLoading(Func(func() ([]audio.Frame, error) {
		<-release
		return framesOf(10), nil
	}))
	assert.True(t, l.Running())

	stopped := make(chan struct{})
	go func() {
		l.StopLoading(true)
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("StopLoading returned before the worker exited")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("StopLoading did not return")
	}

	assert.False(t, l.Running())
	assert.Equal(t, 0, l.Buffer().Len(), "disabled worker must not deliver frames")
}

func TestLoader_StopWithoutClearKeepsFrames(t *testing.T) {
	l := New(NewFrameBuffer())
	l.StartLoading(Func(func() ([]audio.Frame, error) { return framesOf(5), nil }))
	waitIdle(t, l)

	l.StopLoading(false)
	assert.Equal(t, 5, l.Buffer().Len())

	l.StopLoading(true)
	assert.Equal(t, 0, l.Buffer().Len())
}

func TestLoader_StartLoadingReplacesWorker(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	l := New(NewFrameBuffer())
	tl := Func(func() ([]audio.Frame, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return framesOf(2), nil
	})

	l.StartLoading(tl)
	l.StartLoading(tl)
	waitIdle(t, l)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
	// The first worker was joined before the second started, so at most two
	// complete deliveries can be present.
	assert.LessOrEqual(t, l.Buffer().Len(), 4)
	assert.GreaterOrEqual(t, l.Buffer().Len(), 2)
}
