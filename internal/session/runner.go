package session

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"mask-calibrator/internal/models"
	"mask-calibrator/internal/pipeline"
)

// Loader lists and decodes the run's inputs.
type Loader interface {
	ListInputs(dir string) ([]string, error)
	Load(path string) (models.RawImage, error)
}

// Status is the outcome of one image.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result describes one finished image.
type Result struct {
	Image      string
	OutputDir  string
	Threshold  models.Threshold
	Foreground float64
	Status     Status
	Err        error
	At         time.Time
}

// Recorder is notified of every finished image.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total   int
	Saved   int
	Skipped int
	Failed  int
}

// Runner reviews every input strictly in order. The next image is not loaded until
// the current one is saved or has failed.
type Runner struct {
	sc        *Context
	loader    Loader
	inputDir  string
	outputDir string
	recorder  Recorder
}

func NewRunner(sc *Context, loader Loader, inputDir, outputDir string) *Runner {
	return &Runner{sc: sc, loader: loader, inputDir: inputDir, outputDir: outputDir}
}

// WithRecorder attaches an optional result recorder.
func (r *Runner) WithRecorder(rec Recorder) *Runner {
	r.recorder = rec
	return r
}

// Run reviews all inputs. Per-image failures are logged and counted; the batch goes on.
// It returns early only when ctx ends or the surface closes.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	paths, err := r.loader.ListInputs(r.inputDir)
	if err != nil {
		return Summary{}, err
	}

	r.sc.Logger.Info("Runner", "Reading images.", map[string]interface{}{
		"dir":   r.inputDir,
		"count": len(paths),
	})

	summary := Summary{Total: len(paths)}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := r.review(ctx, path)
		if result.Err != nil && Interrupted(result.Err) {
			r.sc.Logger.Warning("Runner", "review interrupted", map[string]interface{}{
				"image":     result.Image,
				"remaining": len(paths) - i,
			})
			return summary, result.Err
		}

		switch result.Status {
		case StatusSaved:
			summary.Saved++
			r.sc.Logger.Info("Runner", "image saved", map[string]interface{}{
				"image":      result.Image,
				"output":     result.OutputDir,
				"threshold":  float64(result.Threshold),
				"foreground": result.Foreground,
			})
		case StatusSkipped:
			summary.Skipped++
			r.logFailure(result)
		default:
			summary.Failed++
			r.logFailure(result)
		}

		r.record(ctx, result)
	}

	if fields := r.sc.Timings.Fields(); len(fields) > 0 {
		r.sc.Logger.Info("Runner", "stage timings", fields)
	}
	return summary, nil
}

func (r *Runner) review(ctx context.Context, path string) Result {
	name := pipeline.OutputName(path)
	dest := filepath.Join(r.outputDir, name)
	result := Result{Image: filepath.Base(path), OutputDir: dest, At: time.Now()}

	raw, err := r.loader.Load(path)
	if err != nil {
		result.Status, result.Err = classify(err), err
		return result
	}

	s := New(r.sc, result.Image)
	err = s.Run(ctx, raw, dest)
	result.Foreground = s.Foreground()
	if t, ok := s.Confirmed(); ok {
		result.Threshold = t
	}
	result.At = time.Now()
	if err != nil {
		result.Status, result.Err = classify(err), err
		return result
	}

	result.Status = StatusSaved
	return result
}

func (r *Runner) logFailure(result Result) {
	r.sc.Logger.Error("Runner", failureMessage(result), result.Err, map[string]interface{}{
		"image":  result.Image,
		"status": string(result.Status),
	})
}

// failureMessage is the terminal line for an image that did not reach Saved.
func failureMessage(result Result) string {
	switch {
	case result.Status == StatusSkipped:
		return "image skipped"
	case errors.Is(result.Err, models.ErrArtifactWrite):
		return "artifacts not written"
	default:
		return "image review failed"
	}
}

func (r *Runner) record(ctx context.Context, result Result) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, result); err != nil {
		r.sc.Logger.Warning("Runner", "could not record result", map[string]interface{}{
			"image": result.Image,
			"error": err.Error(),
		})
	}
}

func classify(err error) Status {
	if errors.Is(err, models.ErrInvalidImage) {
		return StatusSkipped
	}
	return StatusFailed
}
