package conversion

import (
	"fmt"
	"image"

	"mask-calibrator/internal/models"
	"mask-calibrator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// RawFromMat converts a decoded OpenCV Mat (BGR/BGRA/Gray, 8 or 16 bit) into a
// RawImage in the source's natural RGB/RGBA channel order.
func RawFromMat(src *safe.Mat) (models.RawImage, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to raw conversion"); err != nil {
		return models.RawImage{}, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}

	channels := src.Channels()
	eightBit, err := safe.EightBitType(channels)
	if err != nil {
		return models.RawImage{}, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}

	work := src.GetMat()
	if safe.Is16Bit(src.Type()) {
		scaled := gocv.NewMat()
		defer scaled.Close()
		work.ConvertToWithParams(&scaled, eightBit, 1.0/257.0, 0)
		work = scaled
	}

	ordered := gocv.NewMat()
	defer ordered.Close()
	switch channels {
	case 3:
		gocv.CvtColor(work, &ordered, gocv.ColorBGRToRGB)
	case 4:
		gocv.CvtColor(work, &ordered, gocv.ColorBGRAToRGBA)
	default:
		work.CopyTo(&ordered)
	}

	return models.RawImage{
		Width:    ordered.Cols(),
		Height:   ordered.Rows(),
		Channels: channels,
		Pix:      ordered.ToBytes(),
	}, nil
}

// FloatMatFromRGB builds a CV_32FC3 Mat in [0,1] from an 8-bit RGB raw image.
func FloatMatFromRGB(raw models.RawImage) (*safe.Mat, error) {
	if raw.Channels != 3 {
		return nil, fmt.Errorf("%w: expected 3 channels, got %d", models.ErrInvalidImage, raw.Channels)
	}

	byteMat, err := safe.FromBytes(raw.Height, raw.Width, gocv.MatTypeCV8UC3, raw.Pix, "rgb_u8")
	if err != nil {
		return nil, err
	}
	defer byteMat.Close()

	bytes := byteMat.GetMat()
	floatMat := gocv.NewMat()
	bytes.ConvertToWithParams(&floatMat, gocv.MatTypeCV32FC3, 1.0/255.0, 0)
	return safe.Wrap(floatMat, "rgb_f32")
}

// ResizeMat resizes src to width x height with the given interpolation.
func ResizeMat(src *safe.Mat, width, height int, interpolation gocv.InterpolationFlags) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "resize"); err != nil {
		return nil, err
	}
	if err := safe.ValidateDimensions(width, height, "resize"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.Resize(src.GetMat(), &dst, image.Pt(width, height), 0, 0, interpolation)
	return safe.Wrap(dst, src.Tag()+"_resized")
}

// ImageFromFloatMat copies a CV_32FC3 Mat into a models.Image.
func ImageFromFloatMat(src *safe.Mat) (models.Image, error) {
	if err := safe.ValidateMatForOperation(src, "float Mat to image"); err != nil {
		return models.Image{}, err
	}
	if src.Type() != gocv.MatTypeCV32FC3 {
		return models.Image{}, fmt.Errorf("expected CV_32FC3 Mat, got type %d", int(src.Type()))
	}

	m := src.GetMat()
	data, err := m.DataPtrFloat32()
	if err != nil {
		return models.Image{}, fmt.Errorf("access float data: %w", err)
	}

	pix := make([]float32, len(data))
	copy(pix, data)
	return models.Image{Width: src.Cols(), Height: src.Rows(), Pix: pix}, nil
}

// DisplayMat converts an RGBA overlay into the BGR channel order OpenCV windows expect.
func DisplayMat(img *image.RGBA) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	rgba, err := safe.FromBytes(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC4, img.Pix, "display_rgba")
	if err != nil {
		return nil, err
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgba.GetMat(), &bgr, gocv.ColorRGBAToBGR)
	return safe.Wrap(bgr, "display_bgr")
}
