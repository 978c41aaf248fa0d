package cursor

// State is the lifecycle position of a Reader.
type State int

const (
	// StateNotStarted is the state before any successful advance.
	StateNotStarted State = iota
	// StatePositioned means a row is buffered and readable.
	StatePositioned
	// StateExhausted means the engine signaled end of stream, or an advance
	// was cancelled.
	StateExhausted
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StatePositioned:
		return "positioned"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// startPosition is the row position before the first advance.
const startPosition = -1
