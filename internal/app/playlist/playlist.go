// Package playlist assembles a gapless stream of fixed-size frames from an
// ordered queue of tracks with history and bidirectional navigation.
package playlist

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/app/convert"
	"github.com/osa030/gaplessbox/internal/app/loader"
	"github.com/osa030/gaplessbox/internal/app/notification"
	"github.com/osa030/gaplessbox/internal/app/resize"
	"github.com/osa030/gaplessbox/internal/domain/audio"
	"github.com/osa030/gaplessbox/internal/infra/source"
)

// Errors
var (
	ErrIndexOutOfRange = errors.New("track index out of range")
	ErrClosed          = errors.New("playlist is closed")
)

// Config holds playlist configuration.
type Config struct {
	Format    audio.Format // Canonical output format
	FrameSize int          `default:"960" validate:"gt=0"` // Output frame length in samples per channel
}

// track is one enqueued item. Its frames are only produced while it is current.
type track[T any] struct {
	id     string
	loader loader.TrackLoader
	data   T
}

// Playlist owns the track queues, the conversion pipeline and the background
// loader. All methods are safe for concurrent use.
type Playlist[T any] struct {
	mu sync.Mutex

	format    audio.Format
	frameSize int

	// Pipeline, touched only with mu held
	resampler *convert.Resampler
	resizer   *resize.Resizer
	loader    *loader.Loader

	// Position model
	previous []*track[T] // Oldest first
	current  *track[T]
	next     []*track[T] // Soonest first

	state  State
	events *notification.Broadcaster[Event]
	closed bool
}

// New creates an empty playlist producing frames of cfg.FrameSize samples in cfg.Format.
func New[T any](cfg Config) (*Playlist[T], error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	resampler, err := convert.New(cfg.Format)
	if err != nil {
		return nil, err
	}
	resizer, err := resize.New(cfg.Format, cfg.FrameSize)
	if err != nil {
		return nil, err
	}

	return &Playlist[T]{
		format:    cfg.Format,
		frameSize: cfg.FrameSize,
		resampler: resampler,
		resizer:   resizer,
		loader:    loader.New(loader.NewFrameBuffer()),
		state:     StateEmpty,
		events:    notification.NewBroadcaster[Event](),
	}, nil
}

// CreateEventReceiver subscribes to all events posted from now on.
func (p *Playlist[T]) CreateEventReceiver() *notification.Receiver[Event] {
	return p.events.Subscribe()
}

// Enqueue appends a track and returns its index.
// If nothing is playing and nothing is queued the track becomes current and
// starts loading immediately.
func (p *Playlist[T]) Enqueue(tl loader.TrackLoader, data T) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	t := &track[T]{id: uuid.New().String(), loader: tl, data: data}
	index := p.lengthLocked()

	p.events.Post(SongAddedEvent[T]{Index: index, AssociatedData: data})
	zlog.Debug().Msgf("playlist: enqueued track: index=%d track_id=%s", index, t.id)

	if p.current == nil && len(p.next) == 0 {
		offset := index - p.positionLocked()
		p.current = t
		p.beginCurrentLocked(offset)
		return index, nil
	}

	p.next = append(p.next, t)
	return index, nil
}

// EnqueueFile appends a track decoded from the audio file at path.
func (p *Playlist[T]) EnqueueFile(path string, data T) (int, error) {
	return p.Enqueue(source.NewFile(path), data)
}

// RemoveTrack removes the track at index. Removing the current track
// discards its frames and makes the next track current.
func (p *Playlist[T]) RemoveTrack(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkIndexLocked(index); err != nil {
		return err
	}

	switch {
	case index < len(p.previous):
		p.previous = append(p.previous[:index], p.previous[index+1:]...)
		p.events.Post(SongRemovedEvent{Index: index})

	case p.current != nil && index == len(p.previous):
		p.loader.StopLoading(true)
		p.resetPipelineLocked()
		p.current = nil
		p.events.Post(SongRemovedEvent{Index: index})
		if len(p.next) > 0 {
			p.current = p.next[0]
			p.next = p.next[1:]
			p.beginCurrentLocked(1)
		}

	default:
		i := index - len(p.previous)
		if p.current != nil {
			i--
		}
		p.next = append(p.next[:i], p.next[i+1:]...)
		p.events.Post(SongRemovedEvent{Index: index})
	}

	zlog.Debug().Msgf("playlist: removed track: index=%d", index)
	return nil
}

// GotoNextTrack makes the next queued track current. No-op at the end.
func (p *Playlist[T]) GotoNextTrack() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.next) == 0 {
		return
	}

	p.loader.StopLoading(true)
	p.resetPipelineLocked()

	if p.current != nil {
		p.previous = append(p.previous, p.current)
	}
	p.current = p.next[0]
	p.next = p.next[1:]
	p.beginCurrentLocked(1)
}

// GotoPrevTrack makes the most recently played track current. No-op at the start.
// Decoded frames are not kept once a track is done, so the track's loader runs again.
func (p *Playlist[T]) GotoPrevTrack() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.previous) == 0 {
		return
	}

	p.loader.StopLoading(true)
	p.resetPipelineLocked()

	if p.current != nil {
		p.next = append([]*track[T]{p.current}, p.next...)
	}
	last := len(p.previous) - 1
	p.current = p.previous[last]
	p.previous = p.previous[:last]
	p.beginCurrentLocked(-1)
}

// ReadFrame returns the next fixed-size frame, or false if none is ready.
//
// A false result while a track is loading means the caller should poll
// again; ReadFrame never waits for the background loader. Once every track
// has been read, the remaining partial frame is returned and
// PlaybackEndedEvent is posted exactly once.
func (p *Playlist[T]) ReadFrame() (audio.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return audio.Frame{}, false
	}

	buffer := p.loader.Buffer()
	for {
		if frame, ok := p.resizer.ReadFrame(resize.WaitForFullFrames); ok {
			return frame, true
		}

		if frame, ok := p.resampler.ReadFrame(); ok {
			p.resizeLocked(frame)
			continue
		}

		// Running must be sampled before Pop: a worker that has exited has
		// already pushed all of its frames.
		running := p.loader.Running()
		if frame, ok := buffer.Pop(); ok {
			p.convertLocked(frame)
			continue
		}
		if running {
			return audio.Frame{}, false
		}

		// The current track is fully read. Flush the converter so the next
		// track can prime it with its own format; the resizer keeps its tail
		// so the boundary stays gapless.
		if p.finishTrackLocked() {
			continue
		}

		if len(p.next) > 0 {
			offset := 1
			if p.current == nil {
				offset = len(p.previous) - p.positionLocked()
			}
			if p.current != nil {
				p.previous = append(p.previous, p.current)
			}
			p.current = p.next[0]
			p.next = p.next[1:]
			p.beginCurrentLocked(offset)
			continue
		}

		if p.current != nil {
			p.previous = append(p.previous, p.current)
			p.current = nil
		}

		if frame, ok := p.resizer.ReadFrame(resize.Drain); ok && !frame.IsEmpty() {
			return frame, true
		}

		if p.state == StatePlaying {
			p.state = StateEnded
			zlog.Info().Msg("playlist: playback ended")
			p.events.Post(PlaybackEndedEvent{})
		}
		return audio.Frame{}, false
	}
}

// GetState returns the playback state.
func (p *Playlist[T]) GetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// GetCurrentTrackIndex returns the index of the current track.
func (p *Playlist[T]) GetCurrentTrackIndex() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return 0, false
	}
	return len(p.previous), true
}

// Length returns the number of tracks across history, current and queue.
func (p *Playlist[T]) Length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lengthLocked()
}

// GetFrameFormat returns the canonical output format.
func (p *Playlist[T]) GetFrameFormat() audio.Format {
	return p.format
}

// GetFrameSize returns the output frame length in samples per channel.
func (p *Playlist[T]) GetFrameSize() int {
	return p.frameSize
}

// GetTrackAssociatedData returns the data attached to the track at index.
func (p *Playlist[T]) GetTrackAssociatedData(index int) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.trackAtLocked(index)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.data, nil
}

// SetTrackAssociatedData replaces the data attached to the track at index.
func (p *Playlist[T]) SetTrackAssociatedData(index int, data T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.trackAtLocked(index)
	if err != nil {
		return err
	}
	t.data = data
	return nil
}

// Close stops the background loader and closes every event receiver.
func (p *Playlist[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.loader.StopLoading(true)
	p.resetPipelineLocked()
	p.events.Close()
}

// beginCurrentLocked starts loading the current track and announces it.
// Must be called with lock held.
func (p *Playlist[T]) beginCurrentLocked(offset int) {
	p.loader.StartLoading(p.current.loader)
	p.state = StatePlaying

	index := len(p.previous)
	zlog.Info().Msgf("playlist: track began: index=%d offset=%+d track_id=%s", index, offset, p.current.id)
	p.events.Post(SongBeganEvent[T]{Index: index, Offset: offset, AssociatedData: p.current.data})
}

// finishTrackLocked flushes the converter into the resizer and un-primes it.
// Returns true if the flush produced output.
// Must be called with lock held.
func (p *Playlist[T]) finishTrackLocked() bool {
	if _, primed := p.resampler.Source(); !primed {
		return false
	}
	if err := p.resampler.Flush(); err != nil {
		zlog.Error().Msgf("playlist: format converter flush failed: %v", err)
		panic(err)
	}
	produced := false
	for {
		frame, ok := p.resampler.ReadFrame()
		if !ok {
			break
		}
		p.resizeLocked(frame)
		produced = true
	}
	p.resampler.Reset()
	return produced
}

// convertLocked feeds a decoded frame to the converter. A format change within
// a track is a loader bug, not a runtime condition.
// Must be called with lock held.
func (p *Playlist[T]) convertLocked(frame audio.Frame) {
	if err := p.resampler.SendFrame(frame); err != nil {
		zlog.Error().Msgf("playlist: track loader produced inconsistent frames: %v", err)
		panic(err)
	}
}

// Must be called with lock held.
func (p *Playlist[T]) resizeLocked(frame audio.Frame) {
	if err := p.resizer.SendFrame(frame); err != nil {
		zlog.Error().Msgf("playlist: format converter produced a foreign format: %v", err)
		panic(err)
	}
}

// resetPipelineLocked drops every sample buffered for the abandoned track.
// Must be called with lock held.
func (p *Playlist[T]) resetPipelineLocked() {
	p.resampler.Reset()
	p.resizer.Reset()
}

// positionLocked returns the index the playlist is at: the current track, or
// the last played one when nothing is current.
// Must be called with lock held.
func (p *Playlist[T]) positionLocked() int {
	if p.current != nil || len(p.previous) == 0 {
		return len(p.previous)
	}
	return len(p.previous) - 1
}

// Must be called with lock held.
func (p *Playlist[T]) lengthLocked() int {
	n := len(p.previous) + len(p.next)
	if p.current != nil {
		n++
	}
	return n
}

// Must be called with lock held.
func (p *Playlist[T]) checkIndexLocked(index int) error {
	if index < 0 || index >= p.lengthLocked() {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", index, p.lengthLocked())
	}
	return nil
}

// Must be called with lock held.
func (p *Playlist[T]) trackAtLocked(index int) (*track[T], error) {
	if err := p.checkIndexLocked(index); err != nil {
		return nil, err
	}
	if index < len(p.previous) {
		return p.previous[index], nil
	}
	index -= len(p.previous)
	if p.current != nil {
		if index == 0 {
			return p.current, nil
		}
		index--
	}
	return p.next[index], nil
}
