package app

import (
	"context"
	"errors"
	"fmt"

	"mask-calibrator/internal/session"
)

// ErrInterrupted reports a run that ended before every image was reviewed, either by a
// signal or by the operator closing the review surface.
var ErrInterrupted = errors.New("run interrupted")

type runOutcome struct {
	summary session.Summary
	err     error
}

// Run reviews every input. The surface keeps the calling goroutine, which must be the
// main goroutine for the GUI toolkits; the sessions run on their own goroutine and
// talk to the surface only through frames and events.
func (a *Application) Run() error {
	a.shutdown.Listen()
	defer a.shutdown.Shutdown()

	ctx, cancel := context.WithCancel(a.shutdown.Context())
	defer cancel()

	outcome := make(chan runOutcome, 1)
	go func() {
		summary, err := a.runner.Run(ctx)
		cancel()
		outcome <- runOutcome{summary: summary, err: err}
	}()

	surfaceErr := a.surface.Run(ctx)
	cancel()

	return a.finish(<-outcome, surfaceErr)
}

// finish logs the run summary and maps the outcome to the error Run returns.
func (a *Application) finish(res runOutcome, surfaceErr error) error {
	fields := map[string]interface{}{
		"total":   res.summary.Total,
		"saved":   res.summary.Saved,
		"skipped": res.summary.Skipped,
		"failed":  res.summary.Failed,
	}

	if surfaceErr != nil {
		a.logger.Error("Application", "review surface failed", surfaceErr, fields)
		return surfaceErr
	}
	if res.err != nil {
		if session.Interrupted(res.err) {
			fields["remaining"] = res.summary.Total - res.summary.Saved - res.summary.Skipped - res.summary.Failed
			a.logger.Warning("Application", "run interrupted", fields)
			return fmt.Errorf("%w: %v", ErrInterrupted, res.err)
		}
		a.logger.Error("Application", "run failed", res.err, fields)
		return res.err
	}

	a.logger.Info("Application", "Completed.", fields)
	return nil
}
