package session

// State is the session lifecycle state.
type State int

const (
	Closed State = iota
	Open
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}
