// Package inference runs the segmentation model and caches its probability maps.
package inference

import (
	"context"

	"mask-calibrator/internal/models"
)

// Engine maps a preprocessed input of shape (1, H, W, 3) to a per-pixel probability map.
// Predict blocks until the model returns and is called exactly once per image.
type Engine interface {
	Predict(ctx context.Context, input models.ModelInput) (models.ProbabilityMap, error)
	Close() error
}
