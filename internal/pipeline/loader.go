package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/opencv/conversion"
	"mask-calibrator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Loader enumerates and decodes input images.
type Loader struct {
	logger logger.Logger
}

func NewLoader(log logger.Logger) *Loader {
	return &Loader{logger: log}
}

// ListInputs returns the PNG/JPEG files in dir, sorted by file name.
func (l *Loader) ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			l.logger.Debug("ImageLoader", "skipping unsupported file", map[string]interface{}{
				"file": entry.Name(),
			})
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	return paths, nil
}

// Load decodes path with its channels unchanged, in RGB(A) order.
func (l *Loader) Load(path string) (models.RawImage, error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		mat.Close()
		return models.RawImage{}, fmt.Errorf("%w: cannot decode %s", models.ErrInvalidImage, filepath.Base(path))
	}

	safeMat, err := safe.Wrap(mat, "loaded_image")
	if err != nil {
		return models.RawImage{}, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}
	defer safeMat.Close()

	raw, err := conversion.RawFromMat(safeMat)
	if err != nil {
		return models.RawImage{}, err
	}

	l.logger.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"file":     filepath.Base(path),
		"width":    raw.Width,
		"height":   raw.Height,
		"channels": raw.Channels,
	})

	return raw, nil
}

// OutputName is the per-image output directory name: the base file name without extension.
func OutputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
