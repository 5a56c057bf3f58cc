package mask

import (
	"testing"

	"mask-calibrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probMap(values ...float32) models.ProbabilityMap {
	return models.ProbabilityMap{Width: len(values), Height: 1, Values: values}
}

func uniformImage(w, h int, v float32) models.Image {
	pix := make([]float32, w*h*3)
	for i := range pix {
		pix[i] = v
	}
	return models.Image{Width: w, Height: h, Pix: pix}
}

func TestMaskIsStrictlyGreaterThan(t *testing.T) {
	d := NewDeriver()

	m := d.Mask(probMap(0.1, 0.2, 0.3, 0.9), 0.2)

	assert.Equal(t, []uint8{0, 0, 255, 255}, m.Pix)
	assert.Equal(t, 4, m.Width)
	assert.Equal(t, 1, m.Height)
}

func TestMaskBoundaries(t *testing.T) {
	d := NewDeriver()
	p := probMap(0, 0.5, 1)

	assert.Equal(t, []uint8{0, 255, 255}, d.Mask(p, 0).Pix)
	assert.Equal(t, []uint8{0, 0, 0}, d.Mask(p, 1).Pix)
}

func TestMaskMonotoneInThreshold(t *testing.T) {
	d := NewDeriver()
	p := probMap(0.05, 0.15, 0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85, 0.95)

	prev := d.Mask(p, 0)
	for units := 1; units <= 100; units++ {
		next := d.Mask(p, models.Threshold(float64(units)/100))
		for i := range next.Pix {
			if next.Pix[i] == 255 {
				assert.Equal(t, uint8(255), prev.Pix[i], "pixel %d gained foreground at %d", i, units)
			}
		}
		prev = next
	}
}

func TestMaskIdempotent(t *testing.T) {
	d := NewDeriver()
	p := probMap(0.1, 0.4, 0.6)

	assert.Equal(t, d.Mask(p, 0.5), d.Mask(p, 0.5))
}

func TestInvertedMaskComplementsMask(t *testing.T) {
	d := NewDeriver()
	m := d.Mask(probMap(0.1, 0.6, 0.4, 0.9), 0.5)

	inv := d.InvertedMask(m)

	require.Len(t, inv.Pix, len(m.Pix))
	for i := range m.Pix {
		assert.Equal(t, 255, int(m.Pix[i])+int(inv.Pix[i]))
	}
}

func TestOverlayWithEmptyMaskIsResizedImage(t *testing.T) {
	d := NewDeriver()
	img := models.Image{Width: 2, Height: 1, Pix: []float32{0, 0.2, 0.4, 0.6, 0.8, 1}}
	m := d.Mask(probMap(0, 0), 0.5)

	overlay, err := d.Overlay(img, m)
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 51, 102, 255, 153, 204, 255, 255}, overlay.Pix)
}

func TestOverlayAllForegroundIsWhite(t *testing.T) {
	d := NewDeriver()
	img := uniformImage(3, 1, 0.3)
	m := d.Mask(probMap(1, 1, 1), 0)

	overlay, err := d.Overlay(img, m)
	require.NoError(t, err)

	for _, v := range overlay.Pix {
		assert.Equal(t, uint8(255), v)
	}
}

func TestOverlayRejectsSizeMismatch(t *testing.T) {
	d := NewDeriver()

	_, err := d.Overlay(uniformImage(2, 2, 0), d.Mask(probMap(0, 0, 0), 0.5))
	assert.Error(t, err)
}

func TestProbabilityVisualizationsClamp(t *testing.T) {
	d := NewDeriver()
	p := probMap(0, 0.4, 0.8, 1)

	// 0.4*1.5 = 0.6 -> 153; 0.8 and 1 saturate.
	assert.Equal(t, []uint8{0, 153, 255, 255}, d.Probabilities(p).Pix)
	// 1-0.6 = 0.4 -> 102; negatives clamp to black.
	assert.Equal(t, []uint8{255, 102, 0, 0}, d.InvertedProbabilities(p).Pix)
}

func TestArtifactsComplete(t *testing.T) {
	d := NewDeriver()

	set, err := d.Artifacts(uniformImage(2, 1, 0.5), probMap(0.1, 0.9), 0.5)
	require.NoError(t, err)

	assert.True(t, set.Complete())
	assert.Equal(t, []uint8{0, 255}, set.PredictedMask.Pix)
	assert.Equal(t, []uint8{255, 0}, set.InvertedMask.Pix)
}

func TestForegroundFraction(t *testing.T) {
	d := NewDeriver()

	assert.InDelta(t, 0.5, ForegroundFraction(d.Mask(probMap(0.1, 0.9, 0.2, 0.8), 0.5)), 1e-9)
	assert.Zero(t, ForegroundFraction(models.Mask{}))
}

func TestEncode8(t *testing.T) {
	assert.Equal(t, uint8(0), Encode8(-0.5))
	assert.Equal(t, uint8(128), Encode8(0.5))
	assert.Equal(t, uint8(255), Encode8(1.7))
}
