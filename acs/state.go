package acs

// State is a node of the Session's state machine:
//
//	Disconnected -> Connecting -> Connected -> LoggingIn -> Authenticated
//	                                                       -> Disconnecting -> Disconnected
//	                                                       -> Lost -> Disconnected
//
// Only Authenticated permits command traffic other than the initial
// handshakes.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
	LoggingIn
	Authenticated
	Disconnecting
	Lost
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case LoggingIn:
		return "logging_in"
	case Authenticated:
		return "authenticated"
	case Disconnecting:
		return "disconnecting"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}
