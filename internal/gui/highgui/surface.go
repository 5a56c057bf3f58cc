// Package highgui is the OpenCV window review surface: a trackbar for the threshold
// and a key for confirmation.
package highgui

import (
	"context"
	"fmt"
	"runtime"
	"unicode"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/opencv/conversion"
	"mask-calibrator/internal/session"

	"gocv.io/x/gocv"
)

const (
	trackbarName = "Threshold"
	trackbarMax  = 100
	pollDelayMs  = 10
)

// Surface owns one OpenCV window. Display and Events are safe from any goroutine;
// Run must be called on the main goroutine because highgui is not thread-safe.
type Surface struct {
	title      string
	confirmKey rune
	units      int

	frames chan session.Frame
	events chan session.Event
	logger logger.Logger
}

func New(title string, confirmKey rune, initialUnits int, log logger.Logger) *Surface {
	return &Surface{
		title:      title,
		confirmKey: confirmKey,
		units:      initialUnits,
		frames:     make(chan session.Frame, 1),
		events:     make(chan session.Event, 64),
		logger:     log,
	}
}

// Display queues frame for the next window refresh, replacing any frame not yet shown.
func (s *Surface) Display(frame session.Frame) {
	for {
		select {
		case s.frames <- frame:
			return
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

func (s *Surface) Events() <-chan session.Event {
	return s.events
}

// Run shows the window and polls it until ctx ends or the operator closes it.
func (s *Surface) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.events)

	window := gocv.NewWindow(s.title)
	defer window.Close()

	trackbar := window.CreateTrackbar(trackbarName, trackbarMax)
	trackbar.SetPos(s.units)
	slider := trackbarState{last: s.units}

	s.logger.Info("HighGUI", "review window opened", map[string]interface{}{
		"title":       s.title,
		"confirm_key": string(s.confirmKey),
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-s.frames:
			s.show(window, frame)
		default:
		}

		if pos, moved := slider.moved(trackbar.GetPos()); moved {
			if !s.emit(ctx, session.ThresholdChanged{Units: pos}) {
				return nil
			}
		}

		key := window.WaitKey(pollDelayMs)
		if s.isConfirmKey(key) {
			if !s.emit(ctx, session.Confirm{}) {
				return nil
			}
		}

		if !window.IsOpen() {
			s.logger.Info("HighGUI", "review window closed by operator", nil)
			return nil
		}
	}
}

// trackbarState remembers the last trackbar position reported as an event. The
// trackbar is the only writer of the threshold in this surface, so frames never move it.
type trackbarState struct {
	last int
}

func (t *trackbarState) moved(pos int) (int, bool) {
	if pos == t.last {
		return 0, false
	}
	t.last = pos
	return pos, true
}

func (s *Surface) show(window *gocv.Window, frame session.Frame) {
	mat, err := conversion.DisplayMat(frame.Overlay)
	if err != nil {
		s.logger.Error("HighGUI", "overlay not displayed", err, map[string]interface{}{"image": frame.Name})
		return
	}
	defer mat.Close()

	window.IMShow(mat.GetMat())
	window.SetWindowTitle(fmt.Sprintf("%s | %s | threshold %.2f | foreground %.1f%%",
		s.title, frame.Name, float64(frame.Threshold), frame.Foreground*100))
}

func (s *Surface) emit(ctx context.Context, ev session.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Surface) isConfirmKey(key int) bool {
	if key < 0 {
		return false
	}
	r := rune(key & 0xFF)
	return r == s.confirmKey || unicode.ToLower(r) == unicode.ToLower(s.confirmKey)
}
