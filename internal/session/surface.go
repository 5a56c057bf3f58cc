package session

import (
	"errors"
	"image"

	"mask-calibrator/internal/models"
)

// ErrSurfaceClosed is returned when the operator closes the review surface mid-session.
var ErrSurfaceClosed = errors.New("review surface closed")

// Event is an operator input delivered by a Surface.
type Event interface {
	event()
}

// ThresholdChanged carries a new slider position in control units [0,100].
type ThresholdChanged struct {
	Units int
}

// Confirm accepts the overlay currently on screen.
type Confirm struct{}

func (ThresholdChanged) event() {}
func (Confirm) event()          {}

// Frame is one redisplay of the image under review.
type Frame struct {
	Name       string
	Overlay    *image.RGBA // RGB order, model resolution
	Threshold  models.Threshold
	Units      int
	Foreground float64
}

// Surface shows frames and reports operator input. Display may be called from the
// session goroutine and must not block on the operator. Events is closed when the
// surface goes away.
type Surface interface {
	Display(frame Frame)
	Events() <-chan Event
}

// Releaser is implemented by surfaces that must know when the image on screen stops
// taking input. Release runs on the session goroutine after the image's last Display.
type Releaser interface {
	Release()
}
