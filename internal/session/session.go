package session

import (
	"context"
	"errors"
	"fmt"

	"mask-calibrator/internal/mask"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/timing"
)

// Session reviews a single image. All methods must be called from one goroutine,
// which becomes the sole owner of the threshold and probability map while the
// session is previewing.
type Session struct {
	sc    *Context
	name  string
	state State

	input models.ModelInput
	image models.Image
	prob  models.ProbabilityMap

	confirmedThreshold models.Threshold
	confirmedProb      models.ProbabilityMap
	foreground         float64
}

func New(sc *Context, name string) *Session {
	return &Session{sc: sc, name: name, state: StateIdle}
}

func (s *Session) Name() string { return s.name }

func (s *Session) State() State { return s.state }

// Confirmed returns the frozen threshold once the operator has confirmed.
func (s *Session) Confirmed() (models.Threshold, bool) {
	if s.state != StateConfirmed && s.state != StateSaved {
		return 0, false
	}
	return s.confirmedThreshold, true
}

// Foreground is the foreground fraction of the most recently derived mask.
func (s *Session) Foreground() float64 { return s.foreground }

func (s *Session) expect(from State, op string) error {
	if s.state != from {
		return fmt.Errorf("%w: %s from %s", models.ErrInvalidTransition, op, s.state)
	}
	return nil
}

// Preprocess: Idle -> Preprocessed.
func (s *Session) Preprocess(raw models.RawImage) error {
	if err := s.expect(StateIdle, "preprocess"); err != nil {
		return err
	}

	stop := s.sc.Timings.Start(timing.StagePreprocess)
	input, err := s.sc.Preprocessor.Prepare(raw)
	stop()
	if err != nil {
		return err
	}

	s.input = input
	s.image = input.Image()
	s.state = StatePreprocessed
	return nil
}

// Infer: Preprocessed -> Inferred. The model runs here and nowhere else.
func (s *Session) Infer(ctx context.Context) error {
	if err := s.expect(StatePreprocessed, "infer"); err != nil {
		return err
	}

	stop := s.sc.Timings.Start(timing.StageInference)
	prob, err := s.sc.Engine.Predict(ctx, s.input)
	elapsed := stop()
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	if prob.Width != s.image.Width || prob.Height != s.image.Height {
		return fmt.Errorf("inference: probability map %dx%d does not match input %dx%d",
			prob.Width, prob.Height, s.image.Width, s.image.Height)
	}

	s.sc.Logger.Debug("ReviewSession", "inference complete", map[string]interface{}{
		"image":    s.name,
		"duration": elapsed.String(),
	})

	s.prob = prob
	s.state = StateInferred
	return nil
}

// Preview: Inferred -> Previewing. Input queued on the surface before this image was
// shown is drained first: slider moves still apply, confirmations are dropped so an
// image is never accepted unseen.
func (s *Session) Preview() error {
	if err := s.expect(StateInferred, "preview"); err != nil {
		return err
	}

	if err := s.drainStale(); err != nil {
		return err
	}

	s.state = StatePreviewing
	s.sc.Controller.Attach(s)
	s.Redraw(s.sc.Controller.Current())
	return nil
}

func (s *Session) drainStale() error {
	events := s.sc.Surface.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return ErrSurfaceClosed
			}
			switch e := ev.(type) {
			case ThresholdChanged:
				s.applyThreshold(e.Units)
			case Confirm:
				s.sc.Logger.Debug("ReviewSession", "discarding confirmation queued before preview", map[string]interface{}{
					"image": s.name,
				})
			}
		default:
			return nil
		}
	}
}

// Redraw recomputes the mask and overlay at t and hands the frame to the surface.
func (s *Session) Redraw(t models.Threshold) {
	if s.state != StatePreviewing {
		s.sc.Logger.Warning("ReviewSession", models.ErrNoActiveSession.Error(), map[string]interface{}{
			"image": s.name,
			"state": s.state.String(),
		})
		return
	}

	m := s.sc.Deriver.Mask(s.prob, t)
	overlay, err := s.sc.Deriver.Overlay(s.image, m)
	if err != nil {
		s.sc.Logger.Error("ReviewSession", "overlay not rendered", err, map[string]interface{}{"image": s.name})
		return
	}
	s.foreground = mask.ForegroundFraction(m)

	s.sc.Surface.Display(Frame{
		Name:       s.name,
		Overlay:    overlay,
		Threshold:  t,
		Units:      s.sc.Controller.ControlUnits(),
		Foreground: s.foreground,
	})
}

// Await is the Previewing self-loop. It blocks on operator input with no time limit
// until Confirm arrives (Previewing -> Confirmed), the surface closes, or ctx ends.
func (s *Session) Await(ctx context.Context) error {
	if err := s.expect(StatePreviewing, "await"); err != nil {
		return err
	}

	events := s.sc.Surface.Events()
	for {
		select {
		case <-ctx.Done():
			s.leavePreview()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.leavePreview()
				return ErrSurfaceClosed
			}
			switch e := ev.(type) {
			case ThresholdChanged:
				s.applyThreshold(e.Units)
			case Confirm:
				s.confirm()
				return nil
			}
		}
	}
}

func (s *Session) applyThreshold(units int) {
	if _, err := s.sc.Controller.SetFromControlUnits(units); err != nil {
		s.sc.Logger.Warning("ReviewSession", "ignoring threshold change", map[string]interface{}{
			"image": s.name,
			"error": err.Error(),
		})
	}
}

// leavePreview stops redraws and tells the surface this image no longer takes input.
func (s *Session) leavePreview() {
	s.sc.Controller.Detach()
	if r, ok := s.sc.Surface.(Releaser); ok {
		r.Release()
	}
}

func (s *Session) confirm() {
	s.leavePreview()
	s.confirmedThreshold = s.sc.Controller.Current()
	s.confirmedProb = s.prob.Clone()
	s.state = StateConfirmed

	s.sc.Logger.Info("ReviewSession", "threshold confirmed", map[string]interface{}{
		"image":     s.name,
		"threshold": float64(s.confirmedThreshold),
	})
}

// Save: Confirmed -> Saved. Writes the artifacts of the confirmed pair into dest.
func (s *Session) Save(dest string) error {
	if err := s.expect(StateConfirmed, "save"); err != nil {
		return err
	}

	artifacts, err := s.sc.Deriver.Artifacts(s.image, s.confirmedProb, s.confirmedThreshold)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrArtifactWrite, err)
	}
	s.foreground = mask.ForegroundFraction(s.sc.Deriver.Mask(s.confirmedProb, s.confirmedThreshold))

	stop := s.sc.Timings.Start(timing.StageSave)
	err = s.sc.Writer.Write(dest, artifacts)
	stop()
	if err != nil {
		return err
	}

	s.state = StateSaved
	return nil
}

// Run drives a fresh session from Idle to Saved.
func (s *Session) Run(ctx context.Context, raw models.RawImage, dest string) error {
	steps := []func() error{
		func() error { return s.Preprocess(raw) },
		func() error { return s.Infer(ctx) },
		s.Preview,
		func() error { return s.Await(ctx) },
		func() error { return s.Save(dest) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Interrupted reports whether err ends the whole run rather than just this image.
func Interrupted(err error) bool {
	return errors.Is(err, ErrSurfaceClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
