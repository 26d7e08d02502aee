// Package loader runs track decoding on a background worker and hands the
// decoded frames to the consumer through a shared FrameBuffer.
package loader

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// TrackLoader produces the complete decoded frames of one track.
// Load may block for as long as decoding takes.
type TrackLoader interface {
	Load() ([]audio.Frame, error)
}

// Func adapts a plain function to TrackLoader.
type Func func() ([]audio.Frame, error)

// Load calls f.
func (f Func) Load() ([]audio.Frame, error) {
	return f()
}

// Loader keeps at most one TrackLoader invocation in flight.
// StartLoading and StopLoading must not be called concurrently with each other.
type Loader struct {
	buffer  *FrameBuffer
	enabled atomic.Bool
	done    chan struct{} // Closed when the current worker exits; nil if none started
}

// New creates a loader delivering into buffer.
func New(buffer *FrameBuffer) *Loader {
	return &Loader{buffer: buffer}
}

// Buffer returns the shared frame buffer.
func (l *Loader) Buffer() *FrameBuffer {
	return l.buffer
}

// StartLoading stops any running worker and starts a new one for tl.
func (l *Loader) StartLoading(tl TrackLoader) {
	l.StopLoading(false)

	done := make(chan struct{})
	l.done = done
	l.enabled.Store(true)

	go l.run(tl, done)
}

// StopLoading disables the worker and waits for it to exit.
// When clearFrames is set the shared buffer is emptied afterwards.
func (l *Loader) StopLoading(clearFrames bool) {
	l.enabled.Store(false)
	if l.done != nil {
		<-l.done
	}
	if clearFrames {
		l.buffer.Clear()
	}
}

// Running reports whether a worker has been started and has not exited yet.
// Every frame a worker delivers is in the buffer before Running turns false.
func (l *Loader) Running() bool {
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Loader) run(tl TrackLoader, done chan struct{}) {
	defer close(done)

	start := time.Now()
	frames, err := load(tl)
	if err != nil {
		zlog.Warn().Msgf("loader: track load failed, skipping track: error=%v", err)
		return
	}
	if len(frames) == 0 {
		zlog.Warn().Msg("loader: track produced no frames, skipping track")
		return
	}
	zlog.Debug().Msgf("loader: decoded %d frames in %v", len(frames), time.Since(start))

	for i, frame := range frames {
		if !l.enabled.Load() {
			zlog.Debug().Msgf("loader: loading stopped after %d of %d frames", i, len(frames))
			return
		}
		l.buffer.Push(frame)
	}
}

// load invokes the track loader, converting a panic into an error.
func load(tl TrackLoader) (frames []audio.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			frames = nil
			err = errors.Newf("track loader panicked: %s", fmt.Sprint(r))
		}
	}()
	return tl.Load()
}
