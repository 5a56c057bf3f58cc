package threshold

import (
	"testing"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRedrawer struct {
	calls []models.Threshold
}

func (r *recordingRedrawer) Redraw(t models.Threshold) {
	r.calls = append(r.calls, t)
}

func newController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(0.20, logger.NoOpLogger{})
	require.NoError(t, err)
	return c
}

func TestSetFromControlUnits(t *testing.T) {
	tests := []struct {
		units int
		want  models.Threshold
	}{
		{0, 0},
		{20, 0.20},
		{55, 0.55},
		{100, 1},
	}

	c := newController(t)
	for _, tt := range tests {
		got, err := c.SetFromControlUnits(tt.units)
		require.NoError(t, err)
		assert.InDelta(t, float64(tt.want), float64(got), 1e-12)
		assert.Equal(t, got, c.Current())
		assert.Equal(t, tt.units, c.ControlUnits())
	}
}

func TestSetFromControlUnitsOutOfRange(t *testing.T) {
	c := newController(t)
	r := &recordingRedrawer{}
	c.Attach(r)

	for _, units := range []int{-1, 101} {
		_, err := c.SetFromControlUnits(units)
		assert.ErrorIs(t, err, models.ErrThresholdRange)
	}

	assert.Equal(t, models.Threshold(0.20), c.Current())
	assert.Empty(t, r.calls)
}

func TestNoRedrawWithoutSession(t *testing.T) {
	c := newController(t)
	assert.False(t, c.Active())

	_, err := c.SetFromControlUnits(40)
	require.NoError(t, err)

	assert.InDelta(t, 0.40, float64(c.Current()), 1e-12)
}

func TestRedrawWhileAttached(t *testing.T) {
	c := newController(t)
	r := &recordingRedrawer{}

	c.Attach(r)
	_, err := c.SetFromControlUnits(30)
	require.NoError(t, err)
	c.Detach()
	_, err = c.SetFromControlUnits(70)
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.InDelta(t, 0.30, float64(r.calls[0]), 1e-12)
	assert.InDelta(t, 0.70, float64(c.Current()), 1e-12)
}

func TestDefaultControlUnits(t *testing.T) {
	assert.Equal(t, 20, newController(t).ControlUnits())
}

func TestNewControllerRejectsInvalid(t *testing.T) {
	_, err := NewController(1.5, logger.NoOpLogger{})
	assert.ErrorIs(t, err, models.ErrThresholdRange)
}
