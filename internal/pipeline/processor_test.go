package pipeline

import (
	"testing"

	"mask-calibrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidRaw(w, h, channels int, values ...uint8) models.RawImage {
	pix := make([]uint8, 0, w*h*channels)
	for i := 0; i < w*h; i++ {
		pix = append(pix, values[:channels]...)
	}
	return models.RawImage{Width: w, Height: h, Channels: channels, Pix: pix}
}

func TestPrepareShape(t *testing.T) {
	input, err := NewPreprocessor().Prepare(solidRaw(64, 48, 3, 255, 0, 51))
	require.NoError(t, err)

	assert.Equal(t, [4]int{1, models.ModelSize, models.ModelSize, 3}, input.Shape)
	require.Len(t, input.Data, models.ModelSize*models.ModelSize*3)

	r, g, b := input.Image().At(100, 200)
	assert.InDelta(t, 1.0, r, 1e-5)
	assert.InDelta(t, 0.0, g, 1e-5)
	assert.InDelta(t, 0.2, b, 1e-5)
}

func TestPrepareIgnoresAlpha(t *testing.T) {
	p := NewPreprocessor()

	rgb, err := p.Prepare(solidRaw(20, 10, 3, 10, 20, 30, 0))
	require.NoError(t, err)
	rgba, err := p.Prepare(solidRaw(20, 10, 4, 10, 20, 30, 77))
	require.NoError(t, err)

	assert.Equal(t, rgb.Data, rgba.Data)
}

func TestPrepareRejectsGray(t *testing.T) {
	_, err := NewPreprocessor().Prepare(solidRaw(4, 4, 1, 9))
	assert.ErrorIs(t, err, models.ErrInvalidImage)
}

func TestPrepareRejectsShortBuffer(t *testing.T) {
	_, err := NewPreprocessor().Prepare(models.RawImage{Width: 2, Height: 2, Channels: 3, Pix: []uint8{1, 2, 3}})
	assert.ErrorIs(t, err, models.ErrInvalidImage)
}

func TestStripAlpha(t *testing.T) {
	raw := models.RawImage{Width: 2, Height: 1, Channels: 4, Pix: []uint8{1, 2, 3, 4, 5, 6, 7, 8}}

	out := StripAlpha(raw)

	assert.Equal(t, 3, out.Channels)
	assert.Equal(t, []uint8{1, 2, 3, 5, 6, 7}, out.Pix)
}
