// Package mask turns probability maps into masks, overlays and the saved visualizations.
package mask

import (
	"fmt"
	"image"
	"math"

	"mask-calibrator/internal/models"
)

const (
	// ProbabilityGain brightens the probability visualizations before 8-bit encoding.
	ProbabilityGain = 1.5

	foreground = 255
)

// Deriver computes every image derived from (Image, ProbabilityMap, Threshold). It holds no state.
type Deriver struct {
	gain float32
}

func NewDeriver() *Deriver {
	return &Deriver{gain: ProbabilityGain}
}

// Mask binarizes p at t. The comparison is strict and done at the map's float32 precision,
// so a probability equal to the threshold is background.
func (d *Deriver) Mask(p models.ProbabilityMap, t models.Threshold) models.Mask {
	cut := float32(t)
	pix := make([]uint8, len(p.Values))
	for i, v := range p.Values {
		if v > cut {
			pix[i] = foreground
		}
	}
	return models.Mask{Width: p.Width, Height: p.Height, Pix: pix}
}

// Overlay forces every foreground pixel of img to full brightness. img must already be at
// mask resolution. The result is in the image's natural RGB order.
func (d *Deriver) Overlay(img models.Image, m models.Mask) (*image.RGBA, error) {
	if img.Width != m.Width || img.Height != m.Height {
		return nil, fmt.Errorf("overlay size mismatch: image %dx%d, mask %dx%d",
			img.Width, img.Height, m.Width, m.Height)
	}

	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, v := range m.Pix {
		o := i * 4
		if v > 0 {
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = 255, 255, 255
		} else {
			s := i * 3
			out.Pix[o] = Encode8(img.Pix[s])
			out.Pix[o+1] = Encode8(img.Pix[s+1])
			out.Pix[o+2] = Encode8(img.Pix[s+2])
		}
		out.Pix[o+3] = 255
	}
	return out, nil
}

// InvertedMask computes 1 - mask/255 from the already thresholded mask.
func (d *Deriver) InvertedMask(m models.Mask) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		out.Pix[i] = Encode8(1 - float32(v)/255)
	}
	return out
}

// Probabilities renders p scaled by the visualization gain, clamped at white.
func (d *Deriver) Probabilities(p models.ProbabilityMap) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	for i, v := range p.Values {
		out.Pix[i] = Encode8(v * d.gain)
	}
	return out
}

// InvertedProbabilities renders 1 - gain*p, computed before encoding and clamped at black.
func (d *Deriver) InvertedProbabilities(p models.ProbabilityMap) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	for i, v := range p.Values {
		out.Pix[i] = Encode8(1 - v*d.gain)
	}
	return out
}

// Artifacts builds the five saved images for a confirmed (probability map, threshold) pair.
func (d *Deriver) Artifacts(img models.Image, p models.ProbabilityMap, t models.Threshold) (models.ArtifactSet, error) {
	m := d.Mask(p, t)
	overlay, err := d.Overlay(img, m)
	if err != nil {
		return models.ArtifactSet{}, err
	}

	return models.ArtifactSet{
		PredictedMask:          m.Gray(),
		OverlaidImage:          overlay,
		InvertedMask:           d.InvertedMask(m),
		PredictedProbabilities: d.Probabilities(p),
		InvertedProbabilities:  d.InvertedProbabilities(p),
	}, nil
}

// ForegroundFraction is the share of foreground pixels in m.
func ForegroundFraction(m models.Mask) float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	count := 0
	for _, v := range m.Pix {
		if v > 0 {
			count++
		}
	}
	return float64(count) / float64(len(m.Pix))
}

// Encode8 maps a [0,1] value to 8 bits, rounding and clamping out-of-range values.
func Encode8(v float32) uint8 {
	scaled := math.Round(float64(v) * 255)
	switch {
	case scaled <= 0 || math.IsNaN(scaled):
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled)
	}
}
