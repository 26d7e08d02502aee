package playlist

// State represents the position of the current track pointer.
type State int

const (
	StateEmpty   State = iota // Nothing has played yet, or the playing track was removed
	StatePlaying              // A track is current or its frames are still being read
	StateEnded                // Every track was drained and PlaybackEndedEvent was sent
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
