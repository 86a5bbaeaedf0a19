package client

// State is the lifecycle state of a Receiver.
type State int32

const (
	// Idle waits for a connect request.
	Idle State = iota
	// Connecting is opening the socket and sending the display name.
	Connecting
	// Streaming is reading frames.
	Streaming
	// Retrying waits out the backoff after a transport failure.
	Retrying
	// Aborting has observed the abort signal and is unwinding.
	Aborting
	// Terminated is final; the worker has exited.
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Retrying:
		return "retrying"
	case Aborting:
		return "aborting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
