package models

import (
	"fmt"
	"image"
)

// ModelSize is the fixed spatial resolution the segmentation model consumes and produces.
const ModelSize = 512

// RawImage is a decoded 8-bit image in its source channel order (Gray, RGB or RGBA),
// stored row-major with interleaved channels.
type RawImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// Validate checks that the pixel buffer matches the declared geometry.
func (r RawImage) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, r.Width, r.Height)
	}
	if r.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrInvalidImage, r.Channels)
	}
	if len(r.Pix) != r.Width*r.Height*r.Channels {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d",
			ErrInvalidImage, len(r.Pix), r.Width*r.Height*r.Channels)
	}
	return nil
}

// Image is a 3-channel RGB image with values normalized to [0,1].
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// At returns the RGB triple at (x, y).
func (im Image) At(x, y int) (r, g, b float32) {
	i := (y*im.Width + x) * 3
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// ModelInput is the preprocessed tensor handed to the inference engine, shape (1, H, W, 3).
type ModelInput struct {
	Shape [4]int
	Data  []float32
}

// Image returns the input without its batch dimension. The pixel slice is shared.
func (in ModelInput) Image() Image {
	return Image{Width: in.Shape[2], Height: in.Shape[1], Pix: in.Data}
}

// ProbabilityMap holds one foreground likelihood in [0,1] per pixel.
type ProbabilityMap struct {
	Width  int
	Height int
	Values []float32
}

// Clone returns a deep copy so callers can hold a frozen snapshot.
func (p ProbabilityMap) Clone() ProbabilityMap {
	values := make([]float32, len(p.Values))
	copy(values, p.Values)
	return ProbabilityMap{Width: p.Width, Height: p.Height, Values: values}
}

// Mask is a binary per-pixel classification encoded as 0 (background) or 255 (foreground).
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// Gray exposes the mask as a grayscale image for encoding.
func (m Mask) Gray() *image.Gray {
	return &image.Gray{Pix: m.Pix, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
}

// Threshold is the probability cutoff above which a pixel is foreground.
type Threshold float64

// Valid reports whether the threshold lies within [0,1].
func (t Threshold) Valid() bool {
	return t >= 0 && t <= 1
}
