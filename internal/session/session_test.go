package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/mask"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/threshold"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSurface records frames. When script is set, each Display queues the next
// batch of scripted events, imitating an operator reacting to what is shown.
type fakeSurface struct {
	events chan Event
	frames []Frame
	script [][]Event

	// released counts Release calls; framesAtRelease is len(frames) at the last one.
	released        int
	framesAtRelease int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{events: make(chan Event, 16)}
}

func (f *fakeSurface) Display(frame Frame) {
	f.frames = append(f.frames, frame)
	if len(f.script) > 0 {
		next := f.script[0]
		f.script = f.script[1:]
		for _, ev := range next {
			f.events <- ev
		}
	}
}

func (f *fakeSurface) Events() <-chan Event { return f.events }

func (f *fakeSurface) Release() {
	f.released++
	f.framesAtRelease = len(f.frames)
}

func (f *fakeSurface) last() Frame { return f.frames[len(f.frames)-1] }

type identityPreprocessor struct{}

// Prepare treats the raw image as already at model resolution.
func (identityPreprocessor) Prepare(raw models.RawImage) (models.ModelInput, error) {
	if raw.Channels < 3 {
		return models.ModelInput{}, models.ErrInvalidImage
	}
	data := make([]float32, raw.Width*raw.Height*3)
	for i := 0; i < raw.Width*raw.Height; i++ {
		for c := 0; c < 3; c++ {
			data[i*3+c] = float32(raw.Pix[i*raw.Channels+c]) / 255
		}
	}
	return models.ModelInput{Shape: [4]int{1, raw.Height, raw.Width, 3}, Data: data}, nil
}

// rampEngine predicts the red channel as the foreground probability.
type rampEngine struct {
	calls int
	err   error
}

func (e *rampEngine) Predict(_ context.Context, in models.ModelInput) (models.ProbabilityMap, error) {
	e.calls++
	if e.err != nil {
		return models.ProbabilityMap{}, e.err
	}
	values := make([]float32, in.Shape[1]*in.Shape[2])
	for i := range values {
		values[i] = in.Data[i*3]
	}
	return models.ProbabilityMap{Width: in.Shape[2], Height: in.Shape[1], Values: values}, nil
}

type recordingWriter struct {
	dests []string
	sets  []models.ArtifactSet
	err   error
}

func (w *recordingWriter) Write(dest string, a models.ArtifactSet) error {
	if w.err != nil {
		return w.err
	}
	w.dests = append(w.dests, dest)
	w.sets = append(w.sets, a)
	return nil
}

type fixture struct {
	sc      *Context
	surface *fakeSurface
	engine  *rampEngine
	writer  *recordingWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl, err := threshold.NewController(0.20, logger.NoOpLogger{})
	require.NoError(t, err)

	f := &fixture{surface: newFakeSurface(), engine: &rampEngine{}, writer: &recordingWriter{}}
	f.sc = &Context{
		Controller:   ctrl,
		Surface:      f.surface,
		Preprocessor: identityPreprocessor{},
		Engine:       f.engine,
		Deriver:      mask.NewDeriver(),
		Writer:       f.writer,
		Logger:       logger.NoOpLogger{},
	}
	return f
}

// rampImage has red values 0, 0.25*255 ... across four pixels.
func rampImage() models.RawImage {
	return models.RawImage{Width: 4, Height: 1, Channels: 3, Pix: []uint8{
		0, 10, 10,
		64, 10, 10,
		153, 10, 10,
		255, 10, 10,
	}}
}

func previewing(t *testing.T, f *fixture) *Session {
	t.Helper()
	s := New(f.sc, "ramp.png")
	require.NoError(t, s.Preprocess(rampImage()))
	require.NoError(t, s.Infer(context.Background()))
	require.NoError(t, s.Preview())
	return s
}

func TestSessionWalksEveryState(t *testing.T) {
	f := newFixture(t)
	s := New(f.sc, "ramp.png")
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Preprocess(rampImage()))
	assert.Equal(t, StatePreprocessed, s.State())

	require.NoError(t, s.Infer(context.Background()))
	assert.Equal(t, StateInferred, s.State())

	require.NoError(t, s.Preview())
	assert.Equal(t, StatePreviewing, s.State())
	require.Len(t, f.surface.frames, 1)
	assert.Equal(t, models.Threshold(0.20), f.surface.last().Threshold)
	assert.Equal(t, 20, f.surface.last().Units)

	f.surface.events <- ThresholdChanged{Units: 50}
	f.surface.events <- Confirm{}
	require.NoError(t, s.Await(context.Background()))
	assert.Equal(t, StateConfirmed, s.State())
	require.Len(t, f.surface.frames, 2)
	assert.InDelta(t, 0.5, f.surface.last().Foreground, 1e-9)

	require.NoError(t, s.Save("out/ramp"))
	assert.Equal(t, StateSaved, s.State())
	require.Len(t, f.writer.sets, 1)
	assert.Equal(t, []uint8{0, 0, 255, 255}, f.writer.sets[0].PredictedMask.Pix)
	assert.Equal(t, []string{"out/ramp"}, f.writer.dests)
}

func TestThresholdChangesNeverReinfer(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)

	for _, units := range []int{10, 30, 60, 90} {
		f.surface.events <- ThresholdChanged{Units: units}
	}
	f.surface.events <- Confirm{}
	require.NoError(t, s.Await(context.Background()))

	assert.Equal(t, 1, f.engine.calls)
	assert.Len(t, f.surface.frames, 5)
}

func TestConfirmationFreezesThreshold(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)

	f.surface.events <- ThresholdChanged{Units: 50}
	f.surface.events <- Confirm{}
	require.NoError(t, s.Await(context.Background()))
	frames := len(f.surface.frames)

	// A late slider move lands after confirmation.
	_, err := f.sc.Controller.SetFromControlUnits(90)
	require.NoError(t, err)
	assert.Len(t, f.surface.frames, frames)

	confirmed, ok := s.Confirmed()
	require.True(t, ok)
	assert.InDelta(t, 0.5, float64(confirmed), 1e-12)

	require.NoError(t, s.Save("out"))
	assert.Equal(t, []uint8{0, 0, 255, 255}, f.writer.sets[0].PredictedMask.Pix)
}

func TestStaleConfirmIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.surface.events <- Confirm{}
	f.surface.events <- ThresholdChanged{Units: 70}

	s := previewing(t, f)

	assert.Equal(t, StatePreviewing, s.State())
	require.Len(t, f.surface.frames, 1)
	assert.InDelta(t, 0.70, float64(f.surface.last().Threshold), 1e-12)
	assert.Empty(t, f.surface.events)
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	s := New(f.sc, "x.png")

	assert.ErrorIs(t, s.Infer(context.Background()), models.ErrInvalidTransition)
	assert.ErrorIs(t, s.Preview(), models.ErrInvalidTransition)
	assert.ErrorIs(t, s.Await(context.Background()), models.ErrInvalidTransition)
	assert.ErrorIs(t, s.Save("out"), models.ErrInvalidTransition)

	require.NoError(t, s.Preprocess(rampImage()))
	assert.ErrorIs(t, s.Preprocess(rampImage()), models.ErrInvalidTransition)

	_, ok := s.Confirmed()
	assert.False(t, ok)
}

func TestPreprocessRejectsGray(t *testing.T) {
	f := newFixture(t)
	s := New(f.sc, "gray.png")

	err := s.Preprocess(models.RawImage{Width: 1, Height: 1, Channels: 1, Pix: []uint8{1}})
	assert.ErrorIs(t, err, models.ErrInvalidImage)
	assert.Equal(t, StateIdle, s.State())
}

func TestInferError(t *testing.T) {
	f := newFixture(t)
	f.engine.err = errors.New("model crashed")
	s := New(f.sc, "x.png")
	require.NoError(t, s.Preprocess(rampImage()))

	assert.Error(t, s.Infer(context.Background()))
	assert.Equal(t, StatePreprocessed, s.State())
}

func TestAwaitSurfaceClosed(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)
	close(f.surface.events)

	err := s.Await(context.Background())
	assert.ErrorIs(t, err, ErrSurfaceClosed)
	assert.True(t, Interrupted(err))
	assert.False(t, f.sc.Controller.Active())
}

func TestAwaitContextCancelled(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatePreviewing, s.State())
}

func TestOutOfRangeUnitsIgnored(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)

	f.surface.events <- ThresholdChanged{Units: 400}
	f.surface.events <- Confirm{}
	require.NoError(t, s.Await(context.Background()))

	confirmed, _ := s.Confirmed()
	assert.Equal(t, models.Threshold(0.20), confirmed)
	assert.Len(t, f.surface.frames, 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "previewing", StatePreviewing.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSurfaceReleasedAfterLastFrame(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)
	assert.Zero(t, f.surface.released)

	f.surface.events <- ThresholdChanged{Units: 50}
	f.surface.events <- Confirm{}
	require.NoError(t, s.Await(context.Background()))

	assert.Equal(t, 1, f.surface.released)
	assert.Equal(t, len(f.surface.frames), f.surface.framesAtRelease)
}

func TestSurfaceReleasedWhenReviewEnds(t *testing.T) {
	f := newFixture(t)
	s := previewing(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Await(ctx), context.Canceled)
	assert.Equal(t, 1, f.surface.released)
	assert.False(t, f.sc.Controller.Active())
}
