package session

import (
	"context"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/mask"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/threshold"
	"mask-calibrator/internal/timing"
)

// Preprocessor turns a decoded image into model input.
type Preprocessor interface {
	Prepare(raw models.RawImage) (models.ModelInput, error)
}

// Predictor is the part of inference.Engine a session needs.
type Predictor interface {
	Predict(ctx context.Context, input models.ModelInput) (models.ProbabilityMap, error)
}

// Writer persists the artifacts of a confirmed session.
type Writer interface {
	Write(dest string, artifacts models.ArtifactSet) error
}

// Context is shared by every session of a run. The threshold controller lives here so
// the operator's last value carries over to the next image.
type Context struct {
	Controller   *threshold.Controller
	Surface      Surface
	Preprocessor Preprocessor
	Engine       Predictor
	Deriver      *mask.Deriver
	Writer       Writer
	Logger       logger.Logger
	Timings      *timing.Tracker // optional
}
