package loader

import (
	"sync"

	"github.com/osa030/gaplessbox/internal/domain/audio"
)

// FrameBuffer is the mutex guarded FIFO shared by the background worker and
// the consumer. Each operation holds the lock only for one push or pop.
type FrameBuffer struct {
	mu     sync.Mutex
	frames []audio.Frame
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Push appends a frame.
func (b *FrameBuffer) Push(frame audio.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, frame)
}

// Pop removes and returns the oldest frame.
func (b *FrameBuffer) Pop() (audio.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return audio.Frame{}, false
	}
	frame := b.frames[0]
	b.frames[0] = audio.Frame{}
	b.frames = b.frames[1:]
	if len(b.frames) == 0 {
		b.frames = nil
	}
	return frame, true
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Clear drops every buffered frame.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
}
