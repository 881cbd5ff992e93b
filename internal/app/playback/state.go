// Package playback drives the queue through a backend: the player state
// machine, its signal mailbox and the notifications it raises.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // No stream on air
	StatePlaying              // A stream is on air and audible
	StatePaused               // A stream is on air and halted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
