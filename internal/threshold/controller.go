package threshold

import (
	"fmt"
	"math"
	"sync"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
)

const (
	MinUnits = 0
	MaxUnits = 100
)

// Redrawer recomputes and redisplays the overlay of the image under review.
type Redrawer interface {
	Redraw(t models.Threshold)
}

// Controller owns the run-wide threshold. The value survives across images;
// only the attached Redrawer changes per session.
type Controller struct {
	mu       sync.RWMutex
	current  models.Threshold
	redrawer Redrawer
	logger   logger.Logger
}

func NewController(initial models.Threshold, log logger.Logger) (*Controller, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: %v", models.ErrThresholdRange, float64(initial))
	}
	return &Controller{current: initial, logger: log}, nil
}

// SetFromControlUnits maps a slider position in [0,100] to units/100 and redraws the
// active session, if any.
func (c *Controller) SetFromControlUnits(units int) (models.Threshold, error) {
	if units < MinUnits || units > MaxUnits {
		return c.Current(), fmt.Errorf("%w: %d control units", models.ErrThresholdRange, units)
	}

	t := models.Threshold(float64(units) / 100.0)

	c.mu.Lock()
	c.current = t
	r := c.redrawer
	c.mu.Unlock()

	c.logger.Debug("ThresholdController", "threshold changed", map[string]interface{}{
		"units":     units,
		"threshold": float64(t),
		"redraw":    r != nil,
	})

	if r != nil {
		r.Redraw(t)
	}
	return t, nil
}

func (c *Controller) Current() models.Threshold {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// ControlUnits is the slider position matching the current threshold.
func (c *Controller) ControlUnits() int {
	return int(math.Round(float64(c.Current()) * 100))
}

// Attach marks r as the active session. Subsequent changes redraw through it.
func (c *Controller) Attach(r Redrawer) {
	c.mu.Lock()
	c.redrawer = r
	c.mu.Unlock()
}

func (c *Controller) Detach() {
	c.mu.Lock()
	c.redrawer = nil
	c.mu.Unlock()
}

// Active reports whether a session is attached.
func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redrawer != nil
}
