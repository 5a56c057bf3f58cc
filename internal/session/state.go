// Package session carries each input image through the interactive review state machine.
package session

// State is a step of the per-image review.
type State int

const (
	StateIdle         State = iota // nothing loaded
	StatePreprocessed              // model input ready
	StateInferred                  // probability map cached for the session
	StatePreviewing                // overlay on screen, waiting for the operator
	StateConfirmed                 // threshold and probability map frozen
	StateSaved                     // artifacts written; terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreprocessed:
		return "preprocessed"
	case StateInferred:
		return "inferred"
	case StatePreviewing:
		return "previewing"
	case StateConfirmed:
		return "confirmed"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}
