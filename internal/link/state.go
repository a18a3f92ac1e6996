package link

// State is the association state owned by Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Provisioning
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Provisioning:
		return "provisioning"
	default:
		return "unknown"
	}
}
