package mux

// State is the lifecycle state of a Multiplexer.
type State int32

const (
	Active State = iota
	Ending
	Ended
	Destroyed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Ending:
		return "ending"
	case Ended:
		return "ended"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
