// Package live maintains the websocket push link to the analytics
// pipeline: dialing, reconnecting with backoff, and decoding push frames
// into events for the view state.
package live

// State describes the websocket link lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
