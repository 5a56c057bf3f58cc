// Package desktop is the fyne review surface.
package desktop

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unicode"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	ImageAreaWidth  = models.ModelSize
	ImageAreaHeight = models.ModelSize
)

// Surface is a fyne window with the overlay, a 0..100 slider and a confirm button.
// Widgets are only touched on the fyne thread; Display schedules through fyne.Do.
type Surface struct {
	app        fyne.App
	window     fyne.Window
	confirmKey rune

	image   *canvas.Image
	slider  *widget.Slider
	units   *widget.Label
	status  *widget.Label
	confirm *widget.Button
	syncing bool

	mu     sync.Mutex
	closed bool
	events chan session.Event
	logger logger.Logger
}

func New(a fyne.App, title string, confirmKey rune, initialUnits int, log logger.Logger) *Surface {
	s := &Surface{
		app:        a,
		window:     a.NewWindow(title),
		confirmKey: confirmKey,
		events:     make(chan session.Event, 64),
		logger:     log,
	}
	s.createComponents(initialUnits)
	s.setupLayout()
	return s
}

func (s *Surface) createComponents(initialUnits int) {
	s.image = canvas.NewImageFromImage(nil)
	s.image.FillMode = canvas.ImageFillContain
	s.image.ScaleMode = canvas.ImageScaleSmooth
	s.image.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))

	s.units = widget.NewLabel(thresholdText(initialUnits))
	s.status = widget.NewLabel("Waiting for the first image")

	s.slider = widget.NewSlider(0, 100)
	s.slider.Step = 1
	s.slider.SetValue(float64(initialUnits))
	s.slider.OnChanged = s.onSliderChanged

	s.confirm = widget.NewButton(fmt.Sprintf("Confirm (%c)", unicode.ToUpper(s.confirmKey)), func() {
		s.emit(session.Confirm{})
	})
	s.confirm.Importance = widget.HighImportance
}

func (s *Surface) setupLayout() {
	controls := container.NewBorder(nil, nil, s.units, s.confirm, s.slider)
	content := container.NewBorder(
		s.status,
		controls,
		nil, nil,
		s.image,
	)

	s.window.SetContent(content)
	s.window.Canvas().SetOnTypedRune(func(r rune) {
		if unicode.ToLower(r) == unicode.ToLower(s.confirmKey) {
			s.emit(session.Confirm{})
		}
	})
	s.window.SetOnClosed(s.closeEvents)
}

func (s *Surface) onSliderChanged(value float64) {
	units := int(math.Round(value))
	s.units.SetText(thresholdText(units))
	if s.syncing {
		return
	}
	s.emit(session.ThresholdChanged{Units: units})
}

func (s *Surface) Display(frame session.Frame) {
	fyne.Do(func() {
		s.image.Image = frame.Overlay
		s.image.Refresh()

		s.syncing = true
		s.slider.SetValue(float64(frame.Units))
		s.syncing = false

		s.status.SetText(fmt.Sprintf("%s  |  foreground %.1f%%", frame.Name, frame.Foreground*100))
	})
}

func (s *Surface) Events() <-chan session.Event {
	return s.events
}

// Run shows the window and blocks in the fyne event loop until ctx ends or the
// window is closed. It must be called on the main goroutine.
func (s *Surface) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			s.app.Quit()
		})
	}()

	s.window.Resize(fyne.NewSize(ImageAreaWidth+40, ImageAreaHeight+120))
	s.window.ShowAndRun()
	s.closeEvents()
	return nil
}

// emit never blocks the fyne thread; input beyond the buffer is dropped.
func (s *Surface) emit(ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warning("DesktopSurface", "event queue full, dropping input", map[string]interface{}{
			"event": fmt.Sprintf("%T", ev),
		})
	}
}

func (s *Surface) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func thresholdText(units int) string {
	return fmt.Sprintf("Threshold %.2f", float64(units)/100)
}
