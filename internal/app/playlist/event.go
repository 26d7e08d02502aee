package playlist

// Event is a playlist lifecycle notification. The concrete types are
// SongBeganEvent, SongAddedEvent, SongRemovedEvent and PlaybackEndedEvent.
type Event interface {
	EventName() string
}

// SongBeganEvent is posted when a track becomes the current track.
type SongBeganEvent[T any] struct {
	Index          int // Index of the new current track
	Offset         int // Difference from the previous position (+1 next, -1 previous)
	AssociatedData T
}

// SongAddedEvent is posted when a track is enqueued.
type SongAddedEvent[T any] struct {
	Index          int
	AssociatedData T
}

// SongRemovedEvent is posted when a track is removed.
type SongRemovedEvent struct {
	Index int
}

// PlaybackEndedEvent is posted once when every track has been read.
type PlaybackEndedEvent struct{}

// EventName implements Event.
func (SongBeganEvent[T]) EventName() string { return "song_began" }

// EventName implements Event.
func (SongAddedEvent[T]) EventName() string { return "song_added" }

// EventName implements Event.
func (SongRemovedEvent) EventName() string { return "song_removed" }

// EventName implements Event.
func (PlaybackEndedEvent) EventName() string { return "playback_ended" }
