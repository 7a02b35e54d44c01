package eventstream

// ConnectionState is the client's lifecycle state. Exactly one value is
// active at a time; transitions are broadcast to the observer registered
// with WithStateHandler.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being
	// attempted. This is the initial state and the state after Close.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connection attempt is in flight.
	StateConnecting

	// StateConnected means a readable stream has been obtained and the
	// read loop is running.
	StateConnected

	// StateReconnecting means a failed or ended connection is waiting
	// out its backoff delay before the next attempt.
	StateReconnecting

	// StateError means the last connection attempt failed. If the retry
	// budget is exhausted this is terminal.
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
