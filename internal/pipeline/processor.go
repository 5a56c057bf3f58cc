package pipeline

import (
	"fmt"

	"mask-calibrator/internal/models"
	"mask-calibrator/internal/opencv/conversion"

	"gocv.io/x/gocv"
)

// Preprocessor normalizes raw images into model input.
type Preprocessor struct {
	size          int
	interpolation gocv.InterpolationFlags
}

// NewPreprocessor returns a preprocessor targeting the fixed model resolution.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		size:          models.ModelSize,
		interpolation: gocv.InterpolationLinear,
	}
}

// Prepare strips alpha, scales to [0,1], resizes to the model size and adds the batch dimension.
// The result always has shape (1, 512, 512, 3).
func (p *Preprocessor) Prepare(raw models.RawImage) (models.ModelInput, error) {
	if err := raw.Validate(); err != nil {
		return models.ModelInput{}, err
	}
	if raw.Channels < 3 {
		return models.ModelInput{}, fmt.Errorf("%w: %d channels, need at least 3", models.ErrInvalidImage, raw.Channels)
	}

	rgb := StripAlpha(raw)

	floatMat, err := conversion.FloatMatFromRGB(rgb)
	if err != nil {
		return models.ModelInput{}, err
	}
	defer floatMat.Close()

	resized, err := conversion.ResizeMat(floatMat, p.size, p.size, p.interpolation)
	if err != nil {
		return models.ModelInput{}, fmt.Errorf("resize to model input: %w", err)
	}
	defer resized.Close()

	img, err := conversion.ImageFromFloatMat(resized)
	if err != nil {
		return models.ModelInput{}, err
	}

	return models.ModelInput{
		Shape: [4]int{1, p.size, p.size, 3},
		Data:  img.Pix,
	}, nil
}

// StripAlpha drops every channel past the third. The remaining channels are copied unchanged.
func StripAlpha(raw models.RawImage) models.RawImage {
	if raw.Channels == 3 {
		return raw
	}

	pixels := raw.Width * raw.Height
	pix := make([]uint8, pixels*3)
	for i := 0; i < pixels; i++ {
		copy(pix[i*3:i*3+3], raw.Pix[i*raw.Channels:i*raw.Channels+3])
	}

	return models.RawImage{Width: raw.Width, Height: raw.Height, Channels: 3, Pix: pix}
}

