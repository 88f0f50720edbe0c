package transfer

// State is a step of the submission state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateAwaitingConfirmation
	StateConverting
	StateRecording
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateValidating:
		return "Validating"
	case StateSubmitting:
		return "Submitting"
	case StateAwaitingConfirmation:
		return "AwaitingConfirmation"
	case StateConverting:
		return "Converting"
	case StateRecording:
		return "Recording"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
