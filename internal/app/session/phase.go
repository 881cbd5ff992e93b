package session

// Phase represents the session lifecycle phase.
type Phase int32

const (
	PhaseWaiting    Phase = iota // Created, main loop not running
	PhaseActive                  // Main loop running
	PhaseTerminated              // Stopped; cannot be restarted
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
