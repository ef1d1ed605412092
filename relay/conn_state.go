package relay

import "time"

// ConnState represents the lifecycle stage of the link to the companion process.
type ConnState uint32

// Connection states. Exactly one is active at a time, owned by the Manager.
const (
	// StateDisabled indicates the feature is turned off.
	StateDisabled ConnState = iota
	// StateDisconnected indicates the feature is on but no connection exists yet.
	StateDisconnected
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting
	// StateConnected indicates an established, healthy connection.
	StateConnected
	// StateReconnecting indicates a lost connection being restored under backoff.
	StateReconnecting
)

// IsConnected returns whether the state is StateConnected.
func (cs ConnState) IsConnected() bool { return cs == StateConnected }

// IsDisabled returns whether the state is StateDisabled.
func (cs ConnState) IsDisabled() bool { return cs == StateDisabled }

// String returns the string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case StateDisabled:
		return "disabled"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateChange describes one state transition of a Manager.
type StateChange struct {
	Prev ConnState
	Cur  ConnState
	At   time.Time
}

// StateChangeHandler is invoked when the manager's state changes.
//
// Note: handlers run in blocking mode on the thread driving the transition.
// Take care with long-running implementations.
type StateChangeHandler func(prev ConnState, cur ConnState)
