// Package playback drives a frame source into a sink at the stream's own pace.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/app/playlist"
	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// Errors
var (
	ErrStarved    = errors.New("frame source starved")
	ErrNotRunning = errors.New("not running")
	ErrNotPaused  = errors.New("not paused")
)

// FrameSource is the consumer side of a playlist.
type FrameSource interface {
	ReadFrame() (audio.Frame, bool)
	GetState() playlist.State
	GetFrameFormat() audio.Format
	GetFrameSize() int
}

// FrameSink receives every frame read from the source.
type FrameSink interface {
	WriteFrame(frame audio.Frame) error
}

// State represents the controller state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds controller configuration.
type Config struct {
	Realtime     bool          // Emit frames no faster than their duration
	PollInterval time.Duration // Wait between reads while the source has nothing ready
	MaxIdlePolls int           // Consecutive empty reads before giving up, 0 for no limit
}

// Stats counts what the controller has moved so far.
type Stats struct {
	Frames    int
	Samples   int
	Underruns int           // Empty reads while the stream was expected to continue
	Played    time.Duration // Stream time written to the sink
}

// Controller pulls frames from a source and pushes them to a sink.
type Controller struct {
	mu sync.Mutex

	source FrameSource
	sink   FrameSink
	config Config

	state    State
	stats    Stats
	resumeCh chan struct{} // Closed on Resume, non-nil only while paused
}

// NewController creates a new playback controller.
func NewController(source FrameSource, sink FrameSink, config Config) *Controller {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Millisecond
	}
	return &Controller{
		source: source,
		sink:   sink,
		config: config,
		state:  StateIdle,
	}
}

// Run moves frames until the source ends, ctx is done, the sink fails or the
// source starves.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return errors.Newf("controller already %s", c.state)
	}
	c.state = StateRunning
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
	}()

	format := c.source.GetFrameFormat()
	zlog.Info().Msgf("playback: started: format=%s frame_size=%d realtime=%t",
		format, c.source.GetFrameSize(), c.config.Realtime)

	deadline := time.Now()
	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		paused, err := c.waitWhilePaused(ctx)
		if err != nil {
			return err
		}
		if paused {
			deadline = time.Now()
		}

		frame, ok := c.source.ReadFrame()
		if ok {
			idle = 0
			if err := c.sink.WriteFrame(frame); err != nil {
				return errors.Wrap(err, "sink write failed")
			}
			c.record(frame)

			if c.config.Realtime {
				deadline = deadline.Add(frame.Duration())
				if err := sleepUntil(ctx, deadline); err != nil {
					return err
				}
			}
			continue
		}

		if c.source.GetState() == playlist.StateEnded {
			stats := c.Stats()
			zlog.Info().Msgf("playback: finished: frames=%d played=%s underruns=%d",
				stats.Frames, stats.Played, stats.Underruns)
			return nil
		}

		idle++
		c.mu.Lock()
		c.stats.Underruns++
		c.mu.Unlock()
		if c.config.MaxIdlePolls > 0 && idle > c.config.MaxIdlePolls {
			return errors.Wrapf(ErrStarved, "no frame after %d polls", idle-1)
		}
		if idle == 1 {
			zlog.Debug().Msg("playback: waiting for frames")
		}
		if err := sleepUntil(ctx, time.Now().Add(c.config.PollInterval)); err != nil {
			return err
		}
		// Restart pacing after a stall
		deadline = time.Now()
	}
}

// Pause holds the stream after the frame being written.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return ErrNotRunning
	}
	c.state = StatePaused
	c.resumeCh = make(chan struct{})
	zlog.Info().Msg("playback: paused")
	return nil
}

// Resume continues a paused stream.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return ErrNotPaused
	}
	c.state = StateRunning
	close(c.resumeCh)
	c.resumeCh = nil
	zlog.Info().Msg("playback: resumed")
	return nil
}

// GetState returns the controller state.
func (c *Controller) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) record(frame audio.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Frames++
	c.stats.Samples += frame.Len()
	c.stats.Played += frame.Duration()
}

// waitWhilePaused blocks until Resume. Returns true if it had to wait.
func (c *Controller) waitWhilePaused(ctx context.Context) (bool, error) {
	c.mu.Lock()
	resumeCh := c.resumeCh
	c.mu.Unlock()
	if resumeCh == nil {
		return false, nil
	}

	select {
	case <-resumeCh:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// sleepUntil waits for the wall clock to reach t.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
