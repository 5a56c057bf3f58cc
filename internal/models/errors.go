package models

import "errors"

var (
	// ErrInvalidImage marks an image that cannot enter review (unsupported channel count, empty decode).
	ErrInvalidImage = errors.New("invalid image")

	// ErrModelLoad marks a failure to initialize the inference engine. It aborts the run.
	ErrModelLoad = errors.New("model load failed")

	// ErrArtifactWrite marks a failure while persisting the output artifacts of a confirmed image.
	ErrArtifactWrite = errors.New("artifact write failed")

	// ErrNoActiveSession reports input or a redraw that arrived while no image is under review.
	ErrNoActiveSession = errors.New("no active session")

	// ErrThresholdRange is returned for control values outside [0,100].
	ErrThresholdRange = errors.New("threshold control value out of range")

	// ErrInvalidTransition is returned when a session operation is called from the wrong state.
	ErrInvalidTransition = errors.New("invalid session transition")
)
