package pipeline

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
)

// Saver is the OutputWriter: it persists the five artifacts of a confirmed review.
type Saver struct {
	logger logger.Logger
}

func NewSaver(log logger.Logger) *Saver {
	return &Saver{logger: log}
}

// Write creates dest and encodes every artifact into it. It stops at the first failure;
// artifacts already written are left in place.
func (s *Saver) Write(dest string, artifacts models.ArtifactSet) error {
	if !artifacts.Complete() {
		return fmt.Errorf("%w: incomplete artifact set", models.ErrArtifactWrite)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", models.ErrArtifactWrite, dest, err)
	}

	for _, artifact := range artifacts.Files() {
		path := filepath.Join(dest, artifact.Name)
		if err := s.writePNG(path, artifact.Image); err != nil {
			s.logger.Error("ImageSaver", "artifact not written", err, map[string]interface{}{
				"path": path,
			})
			return fmt.Errorf("%w: %s: %v", models.ErrArtifactWrite, artifact.Name, err)
		}
	}

	s.logger.Info("ImageSaver", "artifacts saved", map[string]interface{}{
		"dir":   dest,
		"count": len(artifacts.Files()),
	})

	return nil
}

func (s *Saver) writePNG(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("no image data to save")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
